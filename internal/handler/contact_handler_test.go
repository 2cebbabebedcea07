package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatman/internal/contact"
	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/relation"
)

// --- モック定義 ---

// mockContactService はContactServiceInterfaceのモック実装。
type mockContactService struct {
	listContactsFn   func(ctx context.Context, selfID string) (*contact.ContactView, error)
	sendRequestFn    func(ctx context.Context, selfID, otherID string) error
	acceptRequestFn  func(ctx context.Context, selfID, otherID string) error
	cancelRequestFn  func(ctx context.Context, selfID, otherID string) error
	declineRequestFn func(ctx context.Context, selfID, otherID string) error
}

func (m *mockContactService) ListContacts(ctx context.Context, selfID string) (*contact.ContactView, error) {
	if m.listContactsFn != nil {
		return m.listContactsFn(ctx, selfID)
	}
	return &contact.ContactView{}, nil
}

func (m *mockContactService) SendRequest(ctx context.Context, selfID, otherID string) error {
	if m.sendRequestFn != nil {
		return m.sendRequestFn(ctx, selfID, otherID)
	}
	return nil
}

func (m *mockContactService) AcceptRequest(ctx context.Context, selfID, otherID string) error {
	if m.acceptRequestFn != nil {
		return m.acceptRequestFn(ctx, selfID, otherID)
	}
	return nil
}

func (m *mockContactService) CancelRequest(ctx context.Context, selfID, otherID string) error {
	if m.cancelRequestFn != nil {
		return m.cancelRequestFn(ctx, selfID, otherID)
	}
	return nil
}

func (m *mockContactService) DeclineRequest(ctx context.Context, selfID, otherID string) error {
	if m.declineRequestFn != nil {
		return m.declineRequestFn(ctx, selfID, otherID)
	}
	return nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- GET /api/contacts テスト ---

func TestContactHandler_ListContacts_Success(t *testing.T) {
	svc := &mockContactService{
		listContactsFn: func(ctx context.Context, selfID string) (*contact.ContactView, error) {
			if selfID != "user-1" {
				t.Errorf("selfID = %q, want %q", selfID, "user-1")
			}
			return &contact.ContactView{
				Accepted: []relation.Contact{
					{User: model.User{ID: "user-2", FullName: "Hanako Sato"}},
				},
				Available: []relation.Contact{
					{User: model.User{ID: "user-3", FullName: "Jiro Suzuki"}, OutgoingPending: true},
					{User: model.User{ID: "user-4", FullName: "Saburo Tanaka"}, IncomingPending: true},
				},
			}, nil
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.ListContacts(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got contactListResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(got.Accepted) != 1 {
		t.Fatalf("accepted count = %d, want 1", len(got.Accepted))
	}
	if got.Accepted[0].ID != "user-2" {
		t.Errorf("accepted[0].ID = %q, want %q", got.Accepted[0].ID, "user-2")
	}
	if len(got.Available) != 2 {
		t.Fatalf("available count = %d, want 2", len(got.Available))
	}
	if !got.Available[0].OutgoingPending {
		t.Error("available[0].OutgoingPending should be true")
	}
	if !got.Available[1].IncomingPending {
		t.Error("available[1].IncomingPending should be true")
	}
}

func TestContactHandler_ListContacts_SnapshotNotReady(t *testing.T) {
	svc := &mockContactService{
		listContactsFn: func(ctx context.Context, selfID string) (*contact.ContactView, error) {
			return nil, model.NewSnapshotNotReadyError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.ListContacts(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeSnapshotNotReady {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeSnapshotNotReady)
	}
}

func TestContactHandler_ListContacts_WithoutUserID(t *testing.T) {
	h := NewContactHandler(&mockContactService{})

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	w := httptest.NewRecorder()

	h.ListContacts(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- POST /api/contacts/{id}/request テスト ---

func TestContactHandler_SendRequest_Success(t *testing.T) {
	var gotSelf, gotOther string
	svc := &mockContactService{
		sendRequestFn: func(ctx context.Context, selfID, otherID string) error {
			gotSelf, gotOther = selfID, otherID
			return nil
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.SendRequest(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotSelf != "user-1" || gotOther != "user-2" {
		t.Errorf("SendRequest(%q, %q), want (%q, %q)", gotSelf, gotOther, "user-1", "user-2")
	}
}

func TestContactHandler_SendRequest_AlreadyExists(t *testing.T) {
	svc := &mockContactService{
		sendRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewRequestExistsError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.SendRequest(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestContactHandler_SendRequest_ContactNotFound(t *testing.T) {
	svc := &mockContactService{
		sendRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewContactNotFoundError(otherID)
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/unknown/request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "unknown")
	w := httptest.NewRecorder()

	h.SendRequest(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestContactHandler_SendRequest_MissingID(t *testing.T) {
	h := NewContactHandler(&mockContactService{})

	req := httptest.NewRequest(http.MethodPost, "/api/contacts//request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "")
	w := httptest.NewRecorder()

	h.SendRequest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- POST /api/contacts/{id}/accept テスト ---

func TestContactHandler_AcceptRequest_Success(t *testing.T) {
	var gotOther string
	svc := &mockContactService{
		acceptRequestFn: func(ctx context.Context, selfID, otherID string) error {
			gotOther = otherID
			return nil
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/accept", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.AcceptRequest(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotOther != "user-2" {
		t.Errorf("otherID = %q, want %q", gotOther, "user-2")
	}
}

func TestContactHandler_AcceptRequest_NotRecipient(t *testing.T) {
	svc := &mockContactService{
		acceptRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewNotRequestRecipientError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/accept", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.AcceptRequest(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeNotRequestRecipient {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeNotRequestRecipient)
	}
}

func TestContactHandler_AcceptRequest_NotPending(t *testing.T) {
	svc := &mockContactService{
		acceptRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewRequestNotPendingError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/accept", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.AcceptRequest(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// --- DELETE /api/contacts/{id}/request テスト ---

func TestContactHandler_CancelRequest_Success(t *testing.T) {
	called := false
	svc := &mockContactService{
		cancelRequestFn: func(ctx context.Context, selfID, otherID string) error {
			called = true
			return nil
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/contacts/user-2/request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.CancelRequest(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !called {
		t.Error("CancelRequest should be called")
	}
}

func TestContactHandler_CancelRequest_NotInitiator(t *testing.T) {
	svc := &mockContactService{
		cancelRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewNotRequestInitiatorError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/contacts/user-2/request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.CancelRequest(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestContactHandler_CancelRequest_NotFound(t *testing.T) {
	svc := &mockContactService{
		cancelRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewRequestNotFoundError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/contacts/user-2/request", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.CancelRequest(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- POST /api/contacts/{id}/decline テスト ---

func TestContactHandler_DeclineRequest_Success(t *testing.T) {
	called := false
	svc := &mockContactService{
		declineRequestFn: func(ctx context.Context, selfID, otherID string) error {
			called = true
			return nil
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/decline", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.DeclineRequest(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !called {
		t.Error("DeclineRequest should be called")
	}
}

func TestContactHandler_DeclineRequest_StoreUnavailable(t *testing.T) {
	svc := &mockContactService{
		declineRequestFn: func(ctx context.Context, selfID, otherID string) error {
			return model.NewStoreUnavailableError()
		},
	}

	h := NewContactHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contacts/user-2/decline", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "user-2")
	w := httptest.NewRecorder()

	h.DeclineRequest(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}
