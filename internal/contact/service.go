// Package contact は接続リクエストと会話のライフサイクル制御を提供する。
// 状態はスナップショットのエントリから毎回導出され、ミューテーション後は
// 必ず全件再取得が走る（増分マージは行わない）。
package contact

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/relation"
	"github.com/hitoshi/chatman/internal/store"
)

// EntryWriter はエントリコレクションへの書き込みインターフェース。
// store.Clientの部分集合として定義する。
type EntryWriter interface {
	CreateEntry(ctx context.Context, entry model.Entry) (*model.Entry, error)
	UpdateEntry(ctx context.Context, id string, entry model.Entry) (*model.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// SnapshotReader は最新スナップショットの読み取りインターフェース。
type SnapshotReader interface {
	Current() (store.Snapshot, bool)
}

// Refresher はミューテーション後の全件再取得インターフェース。
// ポーリングワーカーが実装する。
type Refresher interface {
	Refresh(ctx context.Context) error
}

// MessageSanitizer はメッセージ本文のサニタイズインターフェース。
type MessageSanitizer interface {
	Sanitize(raw string) string
}

// MutationRecorder はミューテーション実行の計測インターフェース。
// メトリクス収集が不要な場合はnilを渡してよい。
type MutationRecorder interface {
	RecordMutation(kind string)
}

// Service は接続リクエストのステートマシンとメッセージ送信を制御する。
// 各アクションは最新スナップショット（最大でポーリング間隔分古い）から
// 導出した状態をガードに使い、成功後に無条件で再取得を行う。
type Service struct {
	entries   EntryWriter
	snapshots SnapshotReader
	refresher Refresher
	sanitizer MessageSanitizer
	logger    *slog.Logger
	metrics   MutationRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnil可。
func NewService(
	entries EntryWriter,
	snapshots SnapshotReader,
	refresher Refresher,
	sanitizer MessageSanitizer,
	logger *slog.Logger,
	metrics MutationRecorder,
) *Service {
	return &Service{
		entries:   entries,
		snapshots: snapshots,
		refresher: refresher,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   metrics,
	}
}

// ContactView は連絡先一覧の導出結果を表す。
type ContactView struct {
	Accepted  []relation.Contact
	Available []relation.Contact
}

// ConversationView は選択中ペアの導出結果を表す。
type ConversationView struct {
	Counterpart model.User
	State       relation.PairState
	Messages    []model.Entry
}

// ListContacts は承認済み・その他の連絡先一覧をスナップショットから導出する。
func (s *Service) ListContacts(ctx context.Context, selfID string) (*ContactView, error) {
	snap, ok := s.snapshots.Current()
	if !ok {
		return nil, model.NewSnapshotNotReadyError()
	}

	accepted, available := relation.Partition(snap.Users, snap.Entries, selfID)
	return &ContactView{
		Accepted:  accepted,
		Available: available,
	}, nil
}

// GetConversation は指定ペアの接続状態と会話トランスクリプトを導出する。
func (s *Service) GetConversation(ctx context.Context, selfID, otherID string) (*ConversationView, error) {
	snap, ok := s.snapshots.Current()
	if !ok {
		return nil, model.NewSnapshotNotReadyError()
	}

	other, found := findUser(snap.Users, otherID)
	if !found {
		return nil, model.NewContactNotFoundError(otherID)
	}

	state := relation.StateFor(snap.Entries, selfID, otherID)
	view := &ConversationView{
		Counterpart: other,
		State:       state,
	}
	// 会話はacceptedでのみ描画対象になる
	if state == relation.StateAccepted {
		view.Messages = relation.Conversation(snap.Entries, selfID, otherID)
	}
	return view, nil
}

// SendRequest は接続リクエストを送信する。導出状態がnoneの場合のみ
// 実行でき、それ以外は重複として拒否する（書き込み時の一意性を
// ここで強制する。読み取り側の先勝ち解決はそのまま残る）。
func (s *Service) SendRequest(ctx context.Context, selfID, otherID string) error {
	snap, ok := s.snapshots.Current()
	if !ok {
		return model.NewSnapshotNotReadyError()
	}
	if _, found := findUser(snap.Users, otherID); !found {
		return model.NewContactNotFoundError(otherID)
	}

	if state := relation.StateFor(snap.Entries, selfID, otherID); state != relation.StateNone {
		return model.NewRequestExistsError()
	}

	_, err := s.entries.CreateEntry(ctx, model.Entry{
		FromID:    selfID,
		ToID:      otherID,
		Type:      model.EntryTypeRequest,
		Status:    model.EntryStatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("接続リクエストの作成に失敗しました",
			slog.String("from_id", selfID),
			slog.String("to_id", otherID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError()
	}

	s.recordMutation("send_request")
	s.refreshAfterMutation(ctx)
	return nil
}

// AcceptRequest は受信した保留中リクエストを承認する。
// 導出状態がpending_inの場合のみ実行できる。
func (s *Service) AcceptRequest(ctx context.Context, selfID, otherID string) error {
	snap, ok := s.snapshots.Current()
	if !ok {
		return model.NewSnapshotNotReadyError()
	}

	req := relation.CurrentRequest(snap.Entries, selfID, otherID)
	switch relation.StateFor(snap.Entries, selfID, otherID) {
	case relation.StateNone:
		return model.NewRequestNotFoundError()
	case relation.StateAccepted:
		return model.NewRequestNotPendingError()
	case relation.StatePendingOut:
		return model.NewNotRequestRecipientError()
	}

	updated := *req
	updated.Status = model.EntryStatusAccepted
	if _, err := s.entries.UpdateEntry(ctx, req.ID, updated); err != nil {
		s.logger.Error("接続リクエストの承認に失敗しました",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError()
	}

	s.recordMutation("accept_request")
	s.refreshAfterMutation(ctx)
	return nil
}

// CancelRequest は自分が送信した保留中リクエストを取り下げる。
// 導出状態がpending_outの場合のみ実行でき、エントリを削除して
// ペアをnoneへ戻す。
func (s *Service) CancelRequest(ctx context.Context, selfID, otherID string) error {
	snap, ok := s.snapshots.Current()
	if !ok {
		return model.NewSnapshotNotReadyError()
	}

	req := relation.CurrentRequest(snap.Entries, selfID, otherID)
	switch relation.StateFor(snap.Entries, selfID, otherID) {
	case relation.StateNone:
		return model.NewRequestNotFoundError()
	case relation.StateAccepted:
		return model.NewRequestNotPendingError()
	case relation.StatePendingIn:
		return model.NewNotRequestInitiatorError()
	}

	if err := s.entries.DeleteEntry(ctx, req.ID); err != nil {
		s.logger.Error("接続リクエストの取り下げに失敗しました",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError()
	}

	s.recordMutation("cancel_request")
	s.refreshAfterMutation(ctx)
	return nil
}

// DeclineRequest は受信した保留中リクエストを拒否する。
// 取り下げと同様にエントリを削除する（declined等の終端状態は導入せず、
// 削除後の導出結果は送信前と区別できない）。
func (s *Service) DeclineRequest(ctx context.Context, selfID, otherID string) error {
	snap, ok := s.snapshots.Current()
	if !ok {
		return model.NewSnapshotNotReadyError()
	}

	req := relation.CurrentRequest(snap.Entries, selfID, otherID)
	switch relation.StateFor(snap.Entries, selfID, otherID) {
	case relation.StateNone:
		return model.NewRequestNotFoundError()
	case relation.StateAccepted:
		return model.NewRequestNotPendingError()
	case relation.StatePendingOut:
		return model.NewNotRequestRecipientError()
	}

	if err := s.entries.DeleteEntry(ctx, req.ID); err != nil {
		s.logger.Error("接続リクエストの拒否に失敗しました",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError()
	}

	s.recordMutation("decline_request")
	s.refreshAfterMutation(ctx)
	return nil
}

// SendMessage はチャットメッセージを送信する。
// 導出状態がacceptedでない場合、またはトリム後の本文が空の場合は
// エントリを作成せず黙って成功を返す（no-op）。
func (s *Service) SendMessage(ctx context.Context, selfID, otherID, text string) error {
	snap, ok := s.snapshots.Current()
	if !ok {
		return model.NewSnapshotNotReadyError()
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if relation.StateFor(snap.Entries, selfID, otherID) != relation.StateAccepted {
		return nil
	}

	_, err := s.entries.CreateEntry(ctx, model.Entry{
		FromID:    selfID,
		ToID:      otherID,
		Type:      model.EntryTypeChat,
		Status:    model.EntryStatusAccepted,
		Text:      s.sanitizer.Sanitize(trimmed),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("メッセージの送信に失敗しました",
			slog.String("from_id", selfID),
			slog.String("to_id", otherID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError()
	}

	s.recordMutation("send_message")
	s.refreshAfterMutation(ctx)
	return nil
}

// refreshAfterMutation はミューテーション成功後の全件再取得を実行する。
// 失敗してもミューテーション自体は成功しているため、ログのみ記録して
// 次のポーリングに委ねる。
func (s *Service) refreshAfterMutation(ctx context.Context) {
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("ミューテーション後の再取得に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// recordMutation はメトリクスレコーダーが設定されている場合のみ記録する。
func (s *Service) recordMutation(kind string) {
	if s.metrics != nil {
		s.metrics.RecordMutation(kind)
	}
}

// findUser はユーザー一覧から指定IDのユーザーを検索する。
func findUser(users []model.User, id string) (model.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}
