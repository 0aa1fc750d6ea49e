// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/sundial/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 初回ログインの競合で後着側のINSERTが失敗した場合に返る。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByGoogleID はsubject識別子でユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成し、採番済みの行を返す。
	// google_idが既に存在する場合はErrDuplicateをラップして返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)
}

// ItemRepository は記録データの永続化インターフェース。
// すべての操作は所有ユーザーIDで絞り込む。
type ItemRepository interface {
	// Create は記録を作成し、採番済みの行を返す。
	Create(ctx context.Context, item *model.Item) (*model.Item, error)

	// ListByUserID はユーザーの記録をdate降順で返す。該当なしの場合は空スライスを返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Item, error)

	// UpdateOwned はitem.IDとitem.UserIDの両方に一致する行のname, date, metadataを更新し、
	// 更新後の行を返す。一致する行がない場合はnilを返す。
	UpdateOwned(ctx context.Context, item *model.Item) (*model.Item, error)

	// DeleteOwned はidとuserIDの両方に一致する行を削除し、削除件数を返す。
	DeleteOwned(ctx context.Context, id, userID int64) (int64, error)
}

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
