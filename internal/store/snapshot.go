package store

import (
	"sync"
	"time"

	"github.com/hitoshi/chatman/internal/model"
)

// Snapshot はリモートストアの最終取得結果を表す。
// クライアント側はこのスナップショットから状態を毎回導出するだけで、
// 権威あるキャッシュは一切持たない（ストアが唯一の真実の情報源）。
type Snapshot struct {
	Entries   []model.Entry
	Users     []model.User
	FetchedAt time.Time // この取得が開始された時刻
	Seq       uint64    // 適用順序を示す単調増加の通し番号
}

// SnapshotHolder は最新のSnapshotを保持し、更新を購読者へ通知する。
// ポーリングとミューテーション後の再取得は並行して完了しうるため、
// より古い時点で開始された取得結果は適用せずに破棄する
// （遅いレスポンスが新しい状態を上書きする競合の防止）。
type SnapshotHolder struct {
	mu       sync.RWMutex
	current  Snapshot
	ready    bool
	nextSeq  uint64
	nextSub  int
	watchers map[int]chan Snapshot
}

// NewSnapshotHolder はSnapshotHolderの新しいインスタンスを生成する。
func NewSnapshotHolder() *SnapshotHolder {
	return &SnapshotHolder{
		watchers: make(map[int]chan Snapshot),
	}
}

// Replace は取得結果でスナップショットを置き換える。
// startedAtが現在のスナップショットの取得開始時刻より古い場合は
// 適用せずfalseを返す。適用した場合は購読者へ通知しtrueを返す。
func (h *SnapshotHolder) Replace(entries []model.Entry, users []model.User, startedAt time.Time) bool {
	h.mu.Lock()
	if h.ready && startedAt.Before(h.current.FetchedAt) {
		h.mu.Unlock()
		return false
	}
	h.nextSeq++
	h.current = Snapshot{
		Entries:   entries,
		Users:     users,
		FetchedAt: startedAt,
		Seq:       h.nextSeq,
	}
	h.ready = true
	snap := h.current
	watchers := make([]chan Snapshot, 0, len(h.watchers))
	for _, ch := range h.watchers {
		watchers = append(watchers, ch)
	}
	h.mu.Unlock()

	// 受信が追いついていない購読者への送信はスキップする（ブロックしない）
	for _, ch := range watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	return true
}

// Current は最新のスナップショットを返す。
// 初回取得が完了していない場合は2番目の戻り値がfalseになる。
func (h *SnapshotHolder) Current() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.ready
}

// Subscribe はスナップショット更新の通知チャネルと購読解除関数を返す。
// チャネルのバッファは1で、溜まっている間の更新は上書きされず破棄される。
func (h *SnapshotHolder) Subscribe() (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Snapshot, 1)
	h.watchers[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers, id)
	}
	return ch, cancel
}
