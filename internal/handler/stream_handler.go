package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/chatman/internal/store"
)

const (
	// streamWriteTimeout は1フレームの書き込みタイムアウト。
	streamWriteTimeout = 10 * time.Second
	// streamPingInterval はキープアライブpingの送信間隔。
	streamPingInterval = 30 * time.Second
	// streamPongTimeout はpong応答の待機時間。
	streamPongTimeout = 60 * time.Second
)

// SnapshotSubscriber はスナップショット更新の購読インターフェース。
// store.SnapshotHolderの部分集合として定義する。
type SnapshotSubscriber interface {
	Current() (store.Snapshot, bool)
	Subscribe() (<-chan store.Snapshot, func())
}

// StreamRecorder はWebSocket購読者数の計測インターフェース。
// メトリクス収集が不要な場合はnilを渡してよい。
type StreamRecorder interface {
	StreamClientConnected()
	StreamClientDisconnected()
}

// StreamHandler はスナップショット更新のWebSocketストリームハンドラー。
// ペイロードにはエントリ本体を含めず、更新の通し番号のみを配信する。
// クライアントは通知を受けてREST API側を再取得する
// （ポーリングの代替ではなく、再取得タイミングの通知手段）。
type StreamHandler struct {
	snapshots SnapshotSubscriber
	metrics   StreamRecorder
	upgrader  websocket.Upgrader
}

// NewStreamHandler はStreamHandlerを生成する。
// allowedOriginはCORS設定と同じオリジンを渡す。metricsはnil可。
func NewStreamHandler(snapshots SnapshotSubscriber, allowedOrigin string, metrics StreamRecorder) *StreamHandler {
	return &StreamHandler{
		snapshots: snapshots,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 同一オリジンのリクエスト（Originヘッダーなし）は許可
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// streamEvent はWebSocketで配信する更新通知。
type streamEvent struct {
	Type       string    `json:"type"`
	Seq        uint64    `json:"seq"`
	FetchedAt  time.Time `json:"fetchedAt"`
	EntryCount int       `json:"entryCount"`
	UserCount  int       `json:"userCount"`
}

func toStreamEvent(snap store.Snapshot) streamEvent {
	return streamEvent{
		Type:       "snapshot",
		Seq:        snap.Seq,
		FetchedAt:  snap.FetchedAt,
		EntryCount: len(snap.Entries),
		UserCount:  len(snap.Users),
	}
}

// Stream はWebSocket接続にアップグレードし、スナップショット更新を配信する。
// GET /api/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeは失敗時に自身でエラーレスポンスを書き込む
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.StreamClientConnected()
		defer h.metrics.StreamClientDisconnected()
	}

	updates, cancel := h.snapshots.Subscribe()
	defer cancel()

	// クライアントからの切断検知用の読み取りループ。
	// データフレームは使わないため内容は破棄する。
	done := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
		return nil
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 接続直後に現在のスナップショットを通知
	if snap, ok := h.snapshots.Current(); ok {
		if err := h.writeEvent(conn, toStreamEvent(snap)); err != nil {
			return
		}
	}

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if err := h.writeEvent(conn, toStreamEvent(snap)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeEvent は更新通知をJSONテキストフレームで書き込む。
func (h *StreamHandler) writeEvent(conn *websocket.Conn, event streamEvent) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
