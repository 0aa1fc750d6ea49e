// Package operation は外部に公開する5つの操作（ログインと記録のCRUD）を提供する。
//
// 各操作は必ずresponse.Envelopeを返し、エラーを呼び出し元に投げない。
// 処理順は、トークン有無の確認、必須フィールドの確認、認証ゲート、記録ストアの順。
package operation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hitoshi/sundial/internal/metrics"
	"github.com/hitoshi/sundial/internal/model"
	"github.com/hitoshi/sundial/internal/response"
)

// 操作名。メトリクスのラベルとログに使う。
const (
	OpLogin      = "login"
	OpListItems  = "list_items"
	OpCreateItem = "create_item"
	OpUpdateItem = "update_item"
	OpDeleteItem = "delete_item"
)

// Authenticator はトークンから呼び出し元のユーザーを確定する。
// auth.Gateが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int64, error)
	Login(ctx context.Context, token string, metadata json.RawMessage) (*model.User, error)
}

// ItemStore は所有者で絞り込んだ記録の操作を提供する。
// item.Serviceが実装する。
type ItemStore interface {
	Create(ctx context.Context, userID int64, in model.ItemInput) (*model.Item, error)
	List(ctx context.Context, userID int64) ([]*model.Item, error)
	Update(ctx context.Context, itemID, userID int64, in model.ItemInput) (*model.Item, error)
	Delete(ctx context.Context, itemID, userID int64) error
}

// Config は操作層の設定。
type Config struct {
	// ExposeErrorDetail がtrueの場合、失敗エンベロープのerrorフィールドに下位のエラー文字列を載せる。
	ExposeErrorDetail bool
}

// Operations は認証ゲートと記録ストアを組み合わせて各操作を実行する。
type Operations struct {
	auth    Authenticator
	items   ItemStore
	config  Config
	metrics metrics.MetricsCollector
}

// New はOperationsを生成する。collectorはnilでもよい。
func New(auth Authenticator, items ItemStore, config Config, collector metrics.MetricsCollector) *Operations {
	return &Operations{
		auth:    auth,
		items:   items,
		config:  config,
		metrics: collector,
	}
}

// Login はIDトークンを検証し、ユーザーを返す。未登録の場合は作成する。
// tokenとmetadataはどちらも必須。
func (o *Operations) Login(ctx context.Context, token string, metadata json.RawMessage) response.Envelope {
	if token == "" || isAbsent(metadata) {
		return o.finish(OpLogin, o.invalidParameters(), nil)
	}

	user, err := o.auth.Login(ctx, token, metadata)
	if err != nil {
		return o.finish(OpLogin, o.fail(response.Messages.Login.Failure, err), err)
	}

	return o.finish(OpLogin, response.OK(response.Messages.Login.Success, user), nil)
}

// ListItems は呼び出し元の記録をdate降順で返す。
func (o *Operations) ListItems(ctx context.Context, token string) response.Envelope {
	if token == "" {
		return o.finish(OpListItems, o.unauthenticated(nil), nil)
	}

	userID, err := o.auth.Authenticate(ctx, token)
	if err != nil {
		return o.finish(OpListItems, o.unauthenticated(err), err)
	}

	items, err := o.items.List(ctx, userID)
	if err != nil {
		return o.finish(OpListItems, o.fail(response.Messages.GetItems.Failure, err), err)
	}

	return o.finish(OpListItems, response.OK(response.Messages.GetItems.Success, items), nil)
}

// CreateItem は呼び出し元の記録を作成する。nameとdateは必須、metadataは任意。
func (o *Operations) CreateItem(ctx context.Context, token string, in model.ItemInput) response.Envelope {
	if token == "" {
		return o.finish(OpCreateItem, o.unauthenticated(nil), nil)
	}
	if in.Name == "" || in.Date == "" {
		return o.finish(OpCreateItem, o.invalidParameters(), nil)
	}

	userID, err := o.auth.Authenticate(ctx, token)
	if err != nil {
		return o.finish(OpCreateItem, o.unauthenticated(err), err)
	}

	created, err := o.items.Create(ctx, userID, in)
	if err != nil {
		return o.finish(OpCreateItem, o.fail(response.Messages.NewItem.Failure, err), err)
	}

	return o.finish(OpCreateItem, response.OK(response.Messages.NewItem.Success, created), nil)
}

// UpdateItem は呼び出し元が所有する記録を更新する。
// itemID, name, date, metadataはすべて必須。
func (o *Operations) UpdateItem(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope {
	if token == "" {
		return o.finish(OpUpdateItem, o.unauthenticated(nil), nil)
	}
	if itemID <= 0 || in.Name == "" || in.Date == "" || isAbsent(in.Metadata) {
		return o.finish(OpUpdateItem, o.invalidParameters(), nil)
	}

	userID, err := o.auth.Authenticate(ctx, token)
	if err != nil {
		return o.finish(OpUpdateItem, o.unauthenticated(err), err)
	}

	updated, err := o.items.Update(ctx, itemID, userID, in)
	if err != nil {
		return o.finish(OpUpdateItem, o.fail(response.Messages.EditItem.Failure, err), err)
	}

	return o.finish(OpUpdateItem, response.OK(response.Messages.EditItem.Success, updated), nil)
}

// DeleteItem は呼び出し元が所有する記録を削除する。
// 対象が存在しない場合も成功を返し、dataは常に空配列。
func (o *Operations) DeleteItem(ctx context.Context, token string, itemID int64) response.Envelope {
	if token == "" {
		return o.finish(OpDeleteItem, o.unauthenticated(nil), nil)
	}
	if itemID <= 0 {
		return o.finish(OpDeleteItem, o.invalidParameters(), nil)
	}

	userID, err := o.auth.Authenticate(ctx, token)
	if err != nil {
		return o.finish(OpDeleteItem, o.unauthenticated(err), err)
	}

	if err := o.items.Delete(ctx, itemID, userID); err != nil {
		return o.finish(OpDeleteItem, o.fail(response.Messages.DeleteItem.Failure, err), err)
	}

	return o.finish(OpDeleteItem, response.OK(response.Messages.DeleteItem.Success, []any{}), nil)
}

func (o *Operations) invalidParameters() response.Envelope {
	return response.Fail(response.Messages.InvalidParameters, response.KindInvalidParameters)
}

func (o *Operations) unauthenticated(err error) response.Envelope {
	return o.withDetail(response.Fail(response.Messages.Unauthenticated, response.KindUnauthenticated), err)
}

// fail はエラー種別に応じた失敗エンベロープを返す。
// 入力不備は共通の入力不備メッセージ、それ以外は操作ごとの失敗メッセージを使う。
func (o *Operations) fail(message string, err error) response.Envelope {
	kind := response.KindOf(err)
	if kind == response.KindInvalidParameters {
		message = response.Messages.InvalidParameters
	}
	return o.withDetail(response.Fail(message, kind), err)
}

func (o *Operations) withDetail(env response.Envelope, err error) response.Envelope {
	if !o.config.ExposeErrorDetail {
		return env
	}
	return env.WithDetail(err)
}

// finish は結果をログとメトリクスに記録してエンベロープを返す。
func (o *Operations) finish(op string, env response.Envelope, err error) response.Envelope {
	if env.Kind == response.KindInternal {
		slog.Error("operation failed",
			slog.String("operation", op),
			slog.String("error", errorString(err)),
		)
	} else if err != nil {
		slog.Info("operation rejected",
			slog.String("operation", op),
			slog.String("kind", env.Kind.String()),
			slog.String("error", err.Error()),
		)
	}

	if o.metrics != nil {
		o.metrics.RecordOperation(op, env.Kind.String())
	}
	return env
}

// isAbsent はJSON値が未指定（空またはnull）かどうかを返す。
func isAbsent(m json.RawMessage) bool {
	return len(m) == 0 || string(m) == "null"
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
