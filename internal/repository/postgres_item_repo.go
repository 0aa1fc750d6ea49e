package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/sundial/internal/model"
)

// itemColumns はitemsテーブルから読み出す列。scanItemの順序と一致させること。
const itemColumns = `id, user_id, name, date, metadata`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresItemRepo はPostgreSQLを使用した記録リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// Create は記録を作成し、採番済みの行を返す。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO items (user_id, name, date, metadata)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING `+itemColumns,
		item.UserID, item.Name, item.Date, string(model.MetadataOrEmpty(item.Metadata)),
	)

	created, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("記録の作成に失敗しました: %w", err)
	}
	return created, nil
}

// ListByUserID はユーザーの記録をdate降順で返す。
// 同じdateの記録はid降順に並べる。
func (r *PostgresItemRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 FROM items
		 WHERE user_id = $1
		 ORDER BY date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("記録のスキャンに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記録一覧の読み出しに失敗しました: %w", err)
	}

	return items, nil
}

// UpdateOwned はidとuser_idの両方に一致する行を更新する。
// 存在しない場合と他ユーザーの所有である場合を区別しないため、単一のUPDATEで判定する。
func (r *PostgresItemRepo) UpdateOwned(ctx context.Context, item *model.Item) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE items
		 SET name = $1, date = $2, metadata = $3::jsonb
		 WHERE id = $4 AND user_id = $5
		 RETURNING `+itemColumns,
		item.Name, item.Date, string(model.MetadataOrEmpty(item.Metadata)), item.ID, item.UserID,
	)

	updated, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記録の更新に失敗しました: %w", err)
	}
	return updated, nil
}

// DeleteOwned はidとuser_idの両方に一致する行を削除し、削除件数を返す。
func (r *PostgresItemRepo) DeleteOwned(ctx context.Context, id, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("記録の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// scanItem は1行をmodel.Itemに読み出す。
func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var metadata []byte
	if err := s.Scan(&item.ID, &item.UserID, &item.Name, &item.Date, &metadata); err != nil {
		return nil, err
	}
	item.Metadata = json.RawMessage(metadata)
	return item, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
