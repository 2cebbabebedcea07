// Package poll はリモートストアの定期ポーリングを提供する。
// ティッカー駆動で全エントリ・全ユーザーを再取得し、スナップショットを
// 置き換える。差分取得はしない（ストア側にその手段がない）。
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/chatman/internal/model"
)

// CollectionFetcher はリモートストアの全件取得インターフェース。
// store.Clientの部分集合として定義する。
type CollectionFetcher interface {
	FetchEntries(ctx context.Context) ([]model.Entry, error)
	FetchUsers(ctx context.Context) ([]model.User, error)
}

// SnapshotWriter はスナップショットの置き換えインターフェース。
type SnapshotWriter interface {
	Replace(entries []model.Entry, users []model.User, startedAt time.Time) bool
}

// SessionPurger は期限切れセッションの一括削除インターフェース。
// 専用のクリーンアップワーカーを持つほどの量ではないため、
// ポーリングサイクルに相乗りして実行する。
type SessionPurger interface {
	PurgeExpired() int
}

// PollRecorder はポーリング実行の計測インターフェース。
// メトリクス収集が不要な場合はnilを渡してよい。
type PollRecorder interface {
	RecordPollSuccess(duration time.Duration, entryCount, userCount int)
	RecordPollFailure()
}

// Poller はリモートストアのポーリングワーカー。
// contact.Refresherを実装し、ミューテーション直後の再取得にも使われる。
type Poller struct {
	fetcher   CollectionFetcher
	snapshots SnapshotWriter
	sessions  SessionPurger
	logger    *slog.Logger
	metrics   PollRecorder
}

// NewPoller はPollerの新しいインスタンスを生成する。
// sessionsとmetricsはnil可。
func NewPoller(
	fetcher CollectionFetcher,
	snapshots SnapshotWriter,
	sessions SessionPurger,
	logger *slog.Logger,
	metrics PollRecorder,
) *Poller {
	return &Poller{
		fetcher:   fetcher,
		snapshots: snapshots,
		sessions:  sessions,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start は指定間隔のティッカーでポーリングを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("ポーリングワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := p.Refresh(ctx); err != nil {
		p.logger.Error("ポーリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ポーリングワーカーを停止しました")
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Error("ポーリングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
			if p.sessions != nil {
				if purged := p.sessions.PurgeExpired(); purged > 0 {
					p.logger.Info("期限切れセッションを削除しました",
						slog.Int("purged", purged),
					)
				}
			}
		}
	}
}

// Refresh はストアの全エントリ・全ユーザーを1回取得し、
// スナップショットを置き換える。取得失敗時は既存のスナップショットを
// 変更せずエラーを返す（次回のサイクルで回復する）。
func (p *Poller) Refresh(ctx context.Context) error {
	startedAt := time.Now()

	entries, err := p.fetcher.FetchEntries(ctx)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to fetch entries: %w", err)
	}

	users, err := p.fetcher.FetchUsers(ctx)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to fetch users: %w", err)
	}

	applied := p.snapshots.Replace(entries, users, startedAt)
	duration := time.Since(startedAt)

	if !applied {
		// 並行する再取得がより新しい結果を先に適用した場合
		p.logger.Info("古い取得結果を破棄しました",
			slog.Time("started_at", startedAt),
		)
		return nil
	}

	if p.metrics != nil {
		p.metrics.RecordPollSuccess(duration, len(entries), len(users))
	}
	p.logger.Info("ポーリングサイクルが完了しました",
		slog.Int("entry_count", len(entries)),
		slog.Int("user_count", len(users)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

func (p *Poller) recordFailure() {
	if p.metrics != nil {
		p.metrics.RecordPollFailure()
	}
}
