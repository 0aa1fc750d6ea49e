package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/sundial/internal/model"
	"github.com/hitoshi/sundial/internal/response"
)

// --- モック定義 ---

// mockOperations はOperationsInterfaceのモック実装。
type mockOperations struct {
	loginFn      func(ctx context.Context, token string, metadata json.RawMessage) response.Envelope
	listItemsFn  func(ctx context.Context, token string) response.Envelope
	createItemFn func(ctx context.Context, token string, in model.ItemInput) response.Envelope
	updateItemFn func(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope
	deleteItemFn func(ctx context.Context, token string, itemID int64) response.Envelope
}

func (m *mockOperations) Login(ctx context.Context, token string, metadata json.RawMessage) response.Envelope {
	if m.loginFn != nil {
		return m.loginFn(ctx, token, metadata)
	}
	return response.OK(response.Messages.Login.Success, nil)
}

func (m *mockOperations) ListItems(ctx context.Context, token string) response.Envelope {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, token)
	}
	return response.OK(response.Messages.GetItems.Success, []*model.Item{})
}

func (m *mockOperations) CreateItem(ctx context.Context, token string, in model.ItemInput) response.Envelope {
	if m.createItemFn != nil {
		return m.createItemFn(ctx, token, in)
	}
	return response.OK(response.Messages.NewItem.Success, nil)
}

func (m *mockOperations) UpdateItem(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope {
	if m.updateItemFn != nil {
		return m.updateItemFn(ctx, token, itemID, in)
	}
	return response.OK(response.Messages.EditItem.Success, nil)
}

func (m *mockOperations) DeleteItem(ctx context.Context, token string, itemID int64) response.Envelope {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, token, itemID)
	}
	return response.OK(response.Messages.DeleteItem.Success, []any{})
}

// compile-time interface check
var _ OperationsInterface = (*mockOperations)(nil)

// decodeEnvelope はレスポンスボディをマップとして読み込む。
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

// --- POST /login テスト ---

func TestAPIHandler_Login_PassesTokenAndMetadata(t *testing.T) {
	var gotToken string
	var gotMetadata json.RawMessage
	ops := &mockOperations{
		loginFn: func(ctx context.Context, token string, metadata json.RawMessage) response.Envelope {
			gotToken = token
			gotMetadata = metadata
			return response.OK(response.Messages.Login.Success, &model.User{ID: 1, GoogleID: "sub-1"})
		},
	}
	h := NewAPIHandler(ops)

	body := `{"token":"id-token","metadata":{"name":"Alice"}}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotToken != "id-token" {
		t.Errorf("token = %q, want %q", gotToken, "id-token")
	}
	if string(gotMetadata) != `{"name":"Alice"}` {
		t.Errorf("metadata = %s, want %s", gotMetadata, `{"name":"Alice"}`)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	env := decodeEnvelope(t, rec)
	if env["success"] != true {
		t.Errorf("success = %v, want true", env["success"])
	}
	if env["message"] != response.Messages.Login.Success {
		t.Errorf("message = %v, want %q", env["message"], response.Messages.Login.Success)
	}
}

func TestAPIHandler_Login_InvalidJSON_PassesZeroValues(t *testing.T) {
	called := false
	ops := &mockOperations{
		loginFn: func(ctx context.Context, token string, metadata json.RawMessage) response.Envelope {
			called = true
			if token != "" || len(metadata) != 0 {
				t.Errorf("expected zero values, got token=%q metadata=%s", token, metadata)
			}
			return response.Fail(response.Messages.InvalidParameters, response.KindInvalidParameters)
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"token":"abc",`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if !called {
		t.Fatal("expected Login to be called")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAPIHandler_Login_EmptyBody(t *testing.T) {
	ops := &mockOperations{
		loginFn: func(ctx context.Context, token string, metadata json.RawMessage) response.Envelope {
			if token != "" {
				t.Errorf("token = %q, want empty", token)
			}
			return response.Fail(response.Messages.InvalidParameters, response.KindInvalidParameters)
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// --- POST /items/get テスト ---

func TestAPIHandler_ListItems_ReadsTokenHeader(t *testing.T) {
	var gotToken string
	ops := &mockOperations{
		listItemsFn: func(ctx context.Context, token string) response.Envelope {
			gotToken = token
			return response.OK(response.Messages.GetItems.Success, []*model.Item{{ID: 3, Name: "walk"}})
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/items/get", nil)
	req.Header.Set("Sundial-Token", " tok-1 ")
	rec := httptest.NewRecorder()
	h.ListItems(rec, req)

	if gotToken != "tok-1" {
		t.Errorf("token = %q, want %q", gotToken, "tok-1")
	}
	env := decodeEnvelope(t, rec)
	data, ok := env["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v, want 1 item", env["data"])
	}
}

func TestAPIHandler_ListItems_UnauthenticatedStatus(t *testing.T) {
	ops := &mockOperations{
		listItemsFn: func(ctx context.Context, token string) response.Envelope {
			return response.Fail(response.Messages.Unauthenticated, response.KindUnauthenticated)
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/items/get", nil)
	rec := httptest.NewRecorder()
	h.ListItems(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	env := decodeEnvelope(t, rec)
	if env["success"] != false {
		t.Errorf("success = %v, want false", env["success"])
	}
	if _, ok := env["data"]; ok {
		t.Error("failure envelope must not carry data")
	}
}

// --- POST /item/new テスト ---

func TestAPIHandler_CreateItem_MapsFields(t *testing.T) {
	var gotInput model.ItemInput
	ops := &mockOperations{
		createItemFn: func(ctx context.Context, token string, in model.ItemInput) response.Envelope {
			if token != "tok" {
				t.Errorf("token = %q, want %q", token, "tok")
			}
			gotInput = in
			return response.OK(response.Messages.NewItem.Success, &model.Item{ID: 9})
		},
	}
	h := NewAPIHandler(ops)

	body := `{"itemName":"Run","itemDate":"2024-03-01T10:00:00Z","itemMetadata":{"km":5}}`
	req := httptest.NewRequest(http.MethodPost, "/item/new", strings.NewReader(body))
	req.Header.Set("Sundial-Token", "tok")
	rec := httptest.NewRecorder()
	h.CreateItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotInput.Name != "Run" {
		t.Errorf("Name = %q, want %q", gotInput.Name, "Run")
	}
	if gotInput.Date != "2024-03-01T10:00:00Z" {
		t.Errorf("Date = %q, want %q", gotInput.Date, "2024-03-01T10:00:00Z")
	}
	if string(gotInput.Metadata) != `{"km":5}` {
		t.Errorf("Metadata = %s, want %s", gotInput.Metadata, `{"km":5}`)
	}
}

// --- POST /item/edit テスト ---

func TestAPIHandler_UpdateItem_AcceptsNumericAndStringID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{name: "number", body: `{"itemId":42,"itemName":"a","itemDate":"2024-01-01","itemMetadata":{}}`, want: 42},
		{name: "string", body: `{"itemId":"42","itemName":"a","itemDate":"2024-01-01","itemMetadata":{}}`, want: 42},
		{name: "null", body: `{"itemId":null,"itemName":"a"}`, want: 0},
		{name: "missing", body: `{"itemName":"a"}`, want: 0},
		{name: "not a number", body: `{"itemId":"abc","itemName":"a"}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64 = -1
			ops := &mockOperations{
				updateItemFn: func(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope {
					gotID = itemID
					return response.OK(response.Messages.EditItem.Success, nil)
				},
			}
			h := NewAPIHandler(ops)

			req := httptest.NewRequest(http.MethodPost, "/item/edit", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.UpdateItem(rec, req)

			if gotID != tt.want {
				t.Errorf("itemID = %d, want %d", gotID, tt.want)
			}
		})
	}
}

func TestAPIHandler_UpdateItem_InvalidIDDropsWholeBody(t *testing.T) {
	ops := &mockOperations{
		updateItemFn: func(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope {
			if in.Name != "" {
				t.Errorf("Name = %q, want empty after decode failure", in.Name)
			}
			return response.Fail(response.Messages.InvalidParameters, response.KindInvalidParameters)
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/item/edit", strings.NewReader(`{"itemName":"kept?","itemId":"x1"}`))
	rec := httptest.NewRecorder()
	h.UpdateItem(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAPIHandler_UpdateItem_NotFoundStatus(t *testing.T) {
	ops := &mockOperations{
		updateItemFn: func(ctx context.Context, token string, itemID int64, in model.ItemInput) response.Envelope {
			return response.Fail(response.Messages.EditItem.Failure, response.KindNotFoundOrForbidden)
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/item/edit", strings.NewReader(`{"itemId":1}`))
	rec := httptest.NewRecorder()
	h.UpdateItem(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- POST /item/delete テスト ---

func TestAPIHandler_DeleteItem_EmptyDataArray(t *testing.T) {
	ops := &mockOperations{
		deleteItemFn: func(ctx context.Context, token string, itemID int64) response.Envelope {
			if itemID != 7 {
				t.Errorf("itemID = %d, want 7", itemID)
			}
			return response.OK(response.Messages.DeleteItem.Success, []any{})
		},
	}
	h := NewAPIHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/item/delete", strings.NewReader(`{"itemId":7}`))
	req.Header.Set("Sundial-Token", "tok")
	rec := httptest.NewRecorder()
	h.DeleteItem(rec, req)

	want := `{"success":true,"message":"Successfully deleted item","data":[]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestAPIHandler_OversizedBodyIsDropped(t *testing.T) {
	ops := &mockOperations{
		createItemFn: func(ctx context.Context, token string, in model.ItemInput) response.Envelope {
			if in.Name != "" {
				t.Errorf("Name length = %d, want empty", len(in.Name))
			}
			return response.Fail(response.Messages.InvalidParameters, response.KindInvalidParameters)
		},
	}
	h := NewAPIHandler(ops)

	body := `{"itemName":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/item/new", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateItem(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
