package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/chatman/internal/model"
)

// SessionRepository はセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを保存する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID はIDでセッションを検索する。
	// 存在しないか期限切れの場合はnilを返す（エラーにはしない）。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID はIDでセッションを削除する。存在しない場合も成功扱い。
	DeleteByID(ctx context.Context, id string) error
}

// SessionStore はプロセス内メモリ上のセッションストア。
// 唯一の信頼できる状態はリモートストア側にあり、セッションは
// このサービスが再導出した状態へのアクセス許可でしかないため、
// 再起動でセッションが消えても再ログインで済む。永続化はしない。
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewSessionStore はSessionStoreを生成する。
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create はセッションを保存する。
func (s *SessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// FindByID はIDでセッションを検索する。
// 期限切れセッションはこの時点で削除し、nilを返す。
func (s *SessionStore) FindByID(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if s.now().After(session.ExpiresAt) {
		delete(s.sessions, id)
		return nil, nil
	}
	return &session, nil
}

// DeleteByID はIDでセッションを削除する。
func (s *SessionStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// PurgeExpired は期限切れセッションをまとめて削除し、削除件数を返す。
// ポーリングワーカーから定期的に呼ばれる。
func (s *SessionStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged
}

var _ SessionRepository = (*SessionStore)(nil)
