// Package user はsubject識別子から内部ユーザーを解決するディレクトリを提供する。
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hitoshi/sundial/internal/model"
	"github.com/hitoshi/sundial/internal/repository"
)

// DirectoryConfig はDirectoryの設定。
type DirectoryConfig struct {
	// QueryTimeout は1回のストア操作に許す時間。0の場合はタイムアウトを設けない。
	QueryTimeout time.Duration

	// RaceRetryInterval は初回ログイン競合時の再読込の初期間隔。
	RaceRetryInterval time.Duration

	// RaceMaxRetries は初回ログイン競合時の再読込の最大回数。
	RaceMaxRetries uint64
}

// DefaultDirectoryConfig はデフォルト設定を返す。
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		QueryTimeout:      5 * time.Second,
		RaceRetryInterval: 10 * time.Millisecond,
		RaceMaxRetries:    3,
	}
}

// Directory はsubject識別子をユーザーレコードに対応付ける。
// 未登録のsubjectは初回解決時に作成する。
type Directory struct {
	repo   repository.UserRepository
	config DirectoryConfig
}

// NewDirectory はDirectoryを生成する。
func NewDirectory(repo repository.UserRepository, config DirectoryConfig) *Directory {
	return &Directory{
		repo:   repo,
		config: config,
	}
}

// Resolve はsubjectIDに対応するユーザーを返す。
//
// 既存ユーザーの場合は保存済みのレコードをそのまま返し、metadataは無視する。
// 未登録の場合はmetadata（nilなら空オブジェクト）で作成して返す。
// 同一subjectの同時初回ログインでINSERTが一意制約に負けた場合は、
// 先着側の行を読み直して同じユーザーを返す。
// ストア障害はmodel.ErrStoreUnavailableをラップして返す。
func (d *Directory) Resolve(ctx context.Context, subjectID string, metadata json.RawMessage) (*model.User, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject ID is required: %w", model.ErrInvalidParameters)
	}

	existing, err := d.find(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := d.create(ctx, subjectID, metadata)
	if err == nil {
		slog.Info("new user created",
			slog.Int64("user_id", created.ID),
		)
		return created, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("failed to create user: %w: %w", model.ErrStoreUnavailable, err)
	}

	slog.Warn("concurrent first login detected, reloading user")
	return d.reloadAfterRace(ctx, subjectID)
}

// reloadAfterRace は競合で先着した側のユーザーを短い指数バックオフで読み直す。
func (d *Directory) reloadAfterRace(ctx context.Context, subjectID string) (*model.User, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.config.RaceRetryInterval
	exp.Multiplier = 2
	exp.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(exp, d.config.RaceMaxRetries), ctx)

	var user *model.User
	err := backoff.Retry(func() error {
		found, err := d.find(ctx, subjectID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if found == nil {
			return errors.New("user not visible yet")
		}
		user = found
		return nil
	}, b)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to reload user after concurrent insert: %w: %w", model.ErrStoreUnavailable, err)
	}

	return user, nil
}

func (d *Directory) find(ctx context.Context, subjectID string) (*model.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	user, err := d.repo.FindByGoogleID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w: %w", model.ErrStoreUnavailable, err)
	}
	return user, nil
}

func (d *Directory) create(ctx context.Context, subjectID string, metadata json.RawMessage) (*model.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	return d.repo.Create(ctx, &model.User{
		GoogleID: subjectID,
		Metadata: model.MetadataOrEmpty(metadata),
	})
}

func (d *Directory) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.config.QueryTimeout)
}
