// Package auth はユーザー登録・ログイン・セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/chatman/internal/model"
)

// UserDirectory はリモートストアのユーザーコレクションへのアクセスインターフェース。
// store.Clientの部分集合として定義する。
type UserDirectory interface {
	FetchUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// ユーザー本体はリモートストアが保持し、セッションのみローカルで管理する。
type Service struct {
	users    UserDirectory
	sessions SessionRepository
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(users UserDirectory, sessions SessionRepository, config ServiceConfig) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		config:   config,
	}
}

// emailPattern はメールアドレスの形式検証パターン。
// 厳密なRFC検証ではなく、明らかな入力ミスを弾くための緩い検証。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// 登録フォームの入力制約
const (
	minFullNameLen = 3
	maxFullNameLen = 50
	minPasswordLen = 8
)

// validateRegistration は登録入力を検証する。
func validateRegistration(fullName, email, password string) error {
	if l := len([]rune(fullName)); l < minFullNameLen || l > maxFullNameLen {
		return model.NewValidationError(fmt.Sprintf("名前は%d〜%d文字で入力してください", minFullNameLen, maxFullNameLen))
	}
	if !emailPattern.MatchString(email) {
		return model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if len(password) < minPasswordLen {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください", minPasswordLen))
	}
	return nil
}

// Register は新規ユーザーを登録し、セッションを発行する。
// メールアドレスの重複はリモートストアの全ユーザー取得で検査する。
// ストアには一意性制約がないため、取得と作成の間の競合は防げないが、
// 登録フォームの同時送信程度の頻度では実害がない。
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*model.User, *model.Session, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	// 1. 入力検証
	if err := validateRegistration(fullName, email, password); err != nil {
		return nil, nil, err
	}

	// 2. メールアドレスの重複検査
	users, err := s.users.FetchUsers(ctx)
	if err != nil {
		slog.Error("failed to fetch users for registration",
			slog.String("error", err.Error()),
		)
		return nil, nil, model.NewStoreUnavailableError()
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return nil, nil, model.NewEmailTakenError(email)
		}
	}

	// 3. リモートストアにユーザーを作成（IDはストア側が採番する）
	created, err := s.users.CreateUser(ctx, model.User{
		FullName:  fullName,
		Email:     email,
		Password:  password,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to create user",
			slog.String("error", err.Error()),
		)
		return nil, nil, model.NewStoreUnavailableError()
	}

	slog.Info("new user registered",
		slog.String("user_id", created.ID),
		slog.String("email", created.Email),
	)

	// 4. セッションを発行
	session, err := s.createSession(ctx, created.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sanitizeUser(created), session, nil
}

// Login はメールアドレスとパスワードでログインし、セッションを発行する。
// リモートストアはパスワードを平文で保持するため、照合も平文一致で行う。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	users, err := s.users.FetchUsers(ctx)
	if err != nil {
		slog.Error("failed to fetch users for login",
			slog.String("error", err.Error()),
		)
		return nil, nil, model.NewStoreUnavailableError()
	}

	var matched *model.User
	for i := range users {
		if strings.EqualFold(users[i].Email, email) && users[i].Password == password {
			matched = &users[i]
			break
		}
	}
	if matched == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, matched.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", matched.ID))
	return sanitizeUser(matched), session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	users, err := s.users.FetchUsers(ctx)
	if err != nil {
		slog.Error("failed to fetch users for current user lookup",
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreUnavailableError()
	}
	for i := range users {
		if users[i].ID == session.UserID {
			return sanitizeUser(&users[i]), nil
		}
	}

	// ストア側でユーザーが消えている場合はセッションも無効化する
	_ = s.sessions.DeleteByID(ctx, sessionID)
	return nil, model.NewUserNotFoundError()
}

// createSession はセッションを作成し保存する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// sanitizeUser はレスポンス用にパスワードを除いたコピーを返す。
func sanitizeUser(u *model.User) *model.User {
	copied := *u
	copied.Password = ""
	return &copied
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
