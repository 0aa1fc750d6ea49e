package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/sundial/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByGoogleID はsubject識別子でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	user := &model.User{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, google_id, metadata, created_at FROM users WHERE google_id = $1`,
		googleID,
	).Scan(&user.ID, &user.GoogleID, &metadata, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google_id: %w", err)
	}

	user.Metadata = json.RawMessage(metadata)
	return user, nil
}

// Create はユーザーを作成し、採番済みの行を返す。
// lib/pqは[]byteをbyteaとして送るため、JSONは文字列で渡す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	created := &model.User{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (google_id, metadata)
		 VALUES ($1, $2::jsonb)
		 RETURNING id, google_id, metadata, created_at`,
		user.GoogleID, string(model.MetadataOrEmpty(user.Metadata)),
	).Scan(&created.ID, &created.GoogleID, &metadata, &created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	created.Metadata = json.RawMessage(metadata)
	return created, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
