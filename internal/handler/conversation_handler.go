package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatman/internal/contact"
	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/model"
)

// ConversationServiceInterface は会話ハンドラーが必要とするサービスインターフェース。
type ConversationServiceInterface interface {
	// GetConversation は指定ペアの接続状態と会話トランスクリプトを導出する。
	GetConversation(ctx context.Context, selfID, otherID string) (*contact.ConversationView, error)
	// SendMessage は承認済みペアにチャットメッセージを送信する。
	SendMessage(ctx context.Context, selfID, otherID, text string) error
}

// ConversationHandler は会話表示とメッセージ送信のHTTPハンドラー。
type ConversationHandler struct {
	service ConversationServiceInterface
}

// NewConversationHandler はConversationHandlerを生成する。
func NewConversationHandler(service ConversationServiceInterface) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	Text string `json:"text"`
}

// messageResponse はチャットメッセージ1件のAPIレスポンス。
type messageResponse struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// conversationResponse は会話ビューのAPIレスポンス。
// stateはnone/pending_out/pending_in/acceptedのいずれか。
// messagesはstateがacceptedの場合のみ含まれる。
type conversationResponse struct {
	Counterpart userResponse      `json:"counterpart"`
	State       string            `json:"state"`
	Messages    []messageResponse `json:"messages,omitempty"`
}

// GetConversation は指定ペアの会話ビューを返す。
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	selfID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	otherID := chi.URLParam(r, "id")
	view, err := h.service.GetConversation(r.Context(), selfID, otherID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := conversationResponse{
		Counterpart: toUserResponse(&view.Counterpart),
		State:       string(view.State),
	}
	if len(view.Messages) > 0 {
		resp.Messages = make([]messageResponse, len(view.Messages))
		for i, m := range view.Messages {
			resp.Messages[i] = messageResponse{
				ID:        m.ID,
				FromID:    m.FromID,
				ToID:      m.ToID,
				Text:      m.Text,
				CreatedAt: m.CreatedAt,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SendMessage はチャットメッセージを送信する。
// POST /api/conversations/{id}/messages
// 空のメッセージや未承認状態への送信はサービス層で黙って無視されるため、
// その場合も204を返す。
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	selfID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	otherID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if err := h.service.SendMessage(r.Context(), selfID, otherID, req.Text); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
