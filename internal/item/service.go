// Package item は所有ユーザーで絞り込んだ記録のCRUDを提供する。
package item

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/sundial/internal/model"
	"github.com/hitoshi/sundial/internal/repository"
	"github.com/hitoshi/sundial/internal/security"
)

// ServiceConfig は記録サービスの設定。
type ServiceConfig struct {
	// QueryTimeout は1回のストア操作に許す時間。0の場合はタイムアウトを設けない。
	QueryTimeout time.Duration
}

// Service は記録の作成・一覧・更新・削除を提供する。
// すべての操作は解決済みのuserIDを受け取り、そのユーザーの記録だけを対象にする。
type Service struct {
	repo      repository.ItemRepository
	sanitizer security.ContentSanitizerService
	config    ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ItemRepository,
	sanitizer security.ContentSanitizerService,
	config ServiceConfig,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		config:    config,
	}
}

// Create は記録を作成し、採番済みの記録を返す。
// metadataが未指定の場合は空オブジェクトを保存する。
func (s *Service) Create(ctx context.Context, userID int64, in model.ItemInput) (*model.Item, error) {
	item, err := s.buildItem(userID, in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w: %w", model.ErrStoreUnavailable, err)
	}
	return created, nil
}

// List はユーザーの記録をdate降順で返す。
// 記録がない場合はエラーではなく空スライスを返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Item, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w: %w", model.ErrStoreUnavailable, err)
	}
	if items == nil {
		items = []*model.Item{}
	}
	return items, nil
}

// Update は記録のname, date, metadataを更新し、更新後の記録を返す。
// IDと所有者は変更しない。
// 記録が存在しない場合と他ユーザーの所有である場合はどちらも
// model.ErrNotFoundOrForbiddenを返す。
func (s *Service) Update(ctx context.Context, itemID, userID int64, in model.ItemInput) (*model.Item, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("item ID is required: %w", model.ErrInvalidParameters)
	}

	item, err := s.buildItem(userID, in)
	if err != nil {
		return nil, err
	}
	item.ID = itemID

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	updated, err := s.repo.UpdateOwned(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w: %w", model.ErrStoreUnavailable, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, model.ErrNotFoundOrForbidden)
	}
	return updated, nil
}

// Delete は記録を削除する。
// 対象が存在しない、または他ユーザーの所有であっても成功として扱う（冪等）。
func (s *Service) Delete(ctx context.Context, itemID, userID int64) error {
	if itemID <= 0 {
		return fmt.Errorf("item ID is required: %w", model.ErrInvalidParameters)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.repo.DeleteOwned(ctx, itemID, userID); err != nil {
		return fmt.Errorf("failed to delete item: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// buildItem は入力を検証し、保存用のmodel.Itemを組み立てる。
func (s *Service) buildItem(userID int64, in model.ItemInput) (*model.Item, error) {
	// 名前は受け取ったまま保存し、マークアップを含む場合は書き換えずに拒否する
	name := in.Name
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("item name is required: %w", model.ErrInvalidParameters)
	}
	if s.sanitizer != nil && !s.sanitizer.IsPlainText(name) {
		return nil, fmt.Errorf("item name must not contain markup: %w", model.ErrInvalidParameters)
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}

	metadata := model.MetadataOrEmpty(in.Metadata)
	if !json.Valid(metadata) {
		return nil, fmt.Errorf("item metadata is not valid JSON: %w", model.ErrInvalidParameters)
	}

	return &model.Item{
		UserID:   userID,
		Name:     name,
		Date:     date,
		Metadata: metadata,
	}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}
