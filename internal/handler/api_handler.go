// Package handler はHTTPリクエストを操作層の呼び出しに変換するハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/sundial/internal/middleware"
	"github.com/hitoshi/sundial/internal/model"
	"github.com/hitoshi/sundial/internal/response"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// OperationsInterface はAPIハンドラーが必要とする操作層のインターフェース。
// operation.Operationsが実装する。
type OperationsInterface interface {
	Login(ctx context.Context, token string, metadata json.RawMessage) response.Envelope
	ListItems(ctx context.Context, token string) response.Envelope
	CreateItem(ctx context.Context, token string, in model.ItemInput) response.Envelope
	UpdateItem(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope
	DeleteItem(ctx context.Context, token string, itemID int64) response.Envelope
}

// APIHandler はログインと記録操作のHTTPハンドラー。
type APIHandler struct {
	ops OperationsInterface
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(ops OperationsInterface) *APIHandler {
	return &APIHandler{ops: ops}
}

// --- リクエスト型 ---

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Token    string          `json:"token"`
	Metadata json.RawMessage `json:"metadata"`
}

// itemRequest は記録の作成・更新・削除リクエストのボディ。
type itemRequest struct {
	ItemID       itemID          `json:"itemId"`
	ItemName     string          `json:"itemName"`
	ItemDate     string          `json:"itemDate"`
	ItemMetadata json.RawMessage `json:"itemMetadata"`
}

func (r itemRequest) input() model.ItemInput {
	return model.ItemInput{
		Name:     r.ItemName,
		Date:     r.ItemDate,
		Metadata: r.ItemMetadata,
	}
}

// itemID は数値と数値文字列のどちらでも受け付ける記録ID。
type itemID int64

// UnmarshalJSON は 42 と "42" の両方を解析する。nullと空文字は0として扱う。
func (id *itemID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid itemId %q: %w", s, err)
	}
	*id = itemID(v)
	return nil
}

// Login はIDトークンでログインする。
// POST /login
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	decodeBody(w, r, &req)

	middleware.WriteEnvelope(w, h.ops.Login(r.Context(), req.Token, req.Metadata))
}

// ListItems は呼び出し元の記録一覧を返す。
// POST /items/get
func (h *APIHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	middleware.WriteEnvelope(w, h.ops.ListItems(r.Context(), tokenFrom(r)))
}

// CreateItem は記録を作成する。
// POST /item/new
func (h *APIHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	decodeBody(w, r, &req)

	middleware.WriteEnvelope(w, h.ops.CreateItem(r.Context(), tokenFrom(r), req.input()))
}

// UpdateItem は記録を更新する。
// POST /item/edit
func (h *APIHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	decodeBody(w, r, &req)

	middleware.WriteEnvelope(w, h.ops.UpdateItem(r.Context(), tokenFrom(r), int64(req.ItemID), req.input()))
}

// DeleteItem は記録を削除する。
// POST /item/delete
func (h *APIHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	decodeBody(w, r, &req)

	middleware.WriteEnvelope(w, h.ops.DeleteItem(r.Context(), tokenFrom(r), int64(req.ItemID)))
}

// tokenFrom はSundial-Tokenヘッダーの値を返す。
func tokenFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(middleware.TokenHeader))
}

// decodeBody はJSONボディをvに読み込む。
// ボディが空または解析できない場合、vはゼロ値のままとなり、
// 操作層が入力不備として扱う。
func decodeBody[T any](w http.ResponseWriter, r *http.Request, v *T) {
	if r.Body == nil {
		return
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return
	}

	slog.Debug("failed to decode request body",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	var zero T
	*v = zero
}
