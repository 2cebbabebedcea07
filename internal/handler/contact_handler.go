package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatman/internal/contact"
	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/relation"
)

// ContactServiceInterface は連絡先ハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	// ListContacts は承認済み・その他の連絡先一覧を導出する。
	ListContacts(ctx context.Context, selfID string) (*contact.ContactView, error)
	// SendRequest は接続リクエストを送信する。
	SendRequest(ctx context.Context, selfID, otherID string) error
	// AcceptRequest は受信した保留中リクエストを承認する。
	AcceptRequest(ctx context.Context, selfID, otherID string) error
	// CancelRequest は自分が送った保留中リクエストを取り消す。
	CancelRequest(ctx context.Context, selfID, otherID string) error
	// DeclineRequest は受信した保留中リクエストを拒否する。
	DeclineRequest(ctx context.Context, selfID, otherID string) error
}

// ContactHandler は連絡先と接続リクエストのHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// contactResponse は連絡先1件のAPIレスポンス。
type contactResponse struct {
	ID              string `json:"id"`
	FullName        string `json:"fullName"`
	OutgoingPending bool   `json:"outgoingPending"`
	IncomingPending bool   `json:"incomingPending"`
}

// contactListResponse は連絡先一覧のAPIレスポンス。
// acceptedは承認済みの相手、availableはそれ以外の全ユーザー（自分を除く）。
type contactListResponse struct {
	Accepted  []contactResponse `json:"accepted"`
	Available []contactResponse `json:"available"`
}

// ListContacts は連絡先一覧を返す。
// GET /api/contacts
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	selfID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	view, err := h.service.ListContacts(r.Context(), selfID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contactListResponse{
		Accepted:  toContactResponses(view.Accepted),
		Available: toContactResponses(view.Available),
	})
}

// SendRequest は接続リクエストを送信する。
// POST /api/contacts/{id}/request
func (h *ContactHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.SendRequest)
}

// AcceptRequest は受信した保留中リクエストを承認する。
// POST /api/contacts/{id}/accept
func (h *ContactHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.AcceptRequest)
}

// CancelRequest は自分が送った保留中リクエストを取り消す。
// POST /api/contacts/{id}/cancel
func (h *ContactHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.CancelRequest)
}

// DeclineRequest は受信した保留中リクエストを拒否する。
// POST /api/contacts/{id}/decline
func (h *ContactHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.DeclineRequest)
}

// mutate はライフサイクル操作に共通する認証・ID取り出し・エラー変換を行う。
// 成功時は204を返す（操作後の状態はクライアントが一覧を再取得して得る）。
func (h *ContactHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, selfID, otherID string) error) {
	selfID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	otherID := chi.URLParam(r, "id")
	if otherID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "相手ユーザーIDが指定されていません。",
			Category: "validation",
			Action:   "URLのユーザーIDを確認してください。",
		})
		return
	}

	if err := op(r.Context(), selfID, otherID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toContactResponses はrelation.Contactのスライスをレスポンス型に変換する。
func toContactResponses(contacts []relation.Contact) []contactResponse {
	results := make([]contactResponse, len(contacts))
	for i, c := range contacts {
		results[i] = contactResponse{
			ID:              c.User.ID,
			FullName:        c.User.FullName,
			OutgoingPending: c.OutgoingPending,
			IncomingPending: c.IncomingPending,
		}
	}
	return results
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// invalidRequestBodyError はJSONボディ解析失敗のエラーを生成する。
func invalidRequestBodyError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeEmailTaken, model.ErrCodeRequestExists, model.ErrCodeRequestNotPending:
		return http.StatusConflict
	case model.ErrCodeUserNotFound, model.ErrCodeContactNotFound, model.ErrCodeRequestNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotRequestRecipient, model.ErrCodeNotRequestInitiator:
		return http.StatusForbidden
	case model.ErrCodeStoreUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeSnapshotNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
