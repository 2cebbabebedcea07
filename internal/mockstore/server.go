package mockstore

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Server はUsers/EntriesコレクションのRESTハンドラー。
// 外部ストアと同様に寛容なルールで動作する:
// サーバー側ではリクエストの重複や参照整合性を検証しない。
type Server struct {
	users   UserRepository
	entries EntryRepository
	now     func() time.Time
	newID   func() string
}

// NewServer はServerを生成する。
func NewServer(users UserRepository, entries EntryRepository) *Server {
	return &Server{
		users:   users,
		entries: entries,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Routes はモックストアのルーティングを構成したchi.Routerを返す。
//
//	GET  /auth          - ユーザー一覧
//	POST /auth          - ユーザー作成
//	GET  /messages      - エントリ一覧
//	POST /messages      - エントリ作成
//	PUT  /messages/{id} - エントリ更新
//	DELETE /messages/{id} - エントリ削除
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.createUser)
	})

	r.Route("/messages", func(r chi.Router) {
		r.Get("/", s.listEntries)
		r.Post("/", s.createEntry)
		r.Put("/{id}", s.updateEntry)
		r.Delete("/{id}", s.deleteEntry)
	})

	return r
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "failed to list users", err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var user struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := s.users.Create(r.Context(), newUserRecord(s.newID(), user.FullName, user.Email, user.Password, s.now()))
	if err != nil {
		s.writeStoreError(w, "failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.entries.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var entry entryPayload
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := s.entries.Create(r.Context(), entry.toRecord(s.newID(), s.now()))
	if err != nil {
		s.writeStoreError(w, "failed to create entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var entry entryPayload
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := s.entries.Update(r.Context(), id, entry.toRecord(id, time.Time{}))
	if err != nil {
		s.writeStoreError(w, "failed to update entry", err)
		return
	}
	if updated == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "entry not found"})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := s.entries.Delete(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "failed to delete entry", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "entry not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStoreError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store error"})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}
