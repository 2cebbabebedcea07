package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordPollSuccess はポーリング成功でカウンタ・レイテンシ・ゲージが更新されることを検証する。
func TestRecordPollSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollSuccess(120*time.Millisecond, 42, 7)
	c.RecordPollSuccess(80*time.Millisecond, 40, 7)

	success := gatherMetric(t, reg, "chatman_poll_success_total")
	if success == nil {
		t.Fatal("chatman_poll_success_total not found")
	}
	if got := success.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("poll_success_total = %v, want 2", got)
	}

	entries := gatherMetric(t, reg, "chatman_snapshot_entries")
	if entries == nil {
		t.Fatal("chatman_snapshot_entries not found")
	}
	// ゲージは最後の値を保持する
	if got := entries.GetMetric()[0].GetGauge().GetValue(); got != 40 {
		t.Errorf("snapshot_entries = %v, want 40", got)
	}

	latency := gatherMetric(t, reg, "chatman_poll_latency_seconds")
	if latency == nil {
		t.Fatal("chatman_poll_latency_seconds not found")
	}
	if got := latency.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("poll_latency sample count = %v, want 2", got)
	}
}

// TestRecordPollFailure は失敗カウンタの増加を検証する。
func TestRecordPollFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollFailure()

	fail := gatherMetric(t, reg, "chatman_poll_fail_total")
	if fail == nil {
		t.Fatal("chatman_poll_fail_total not found")
	}
	if got := fail.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("poll_fail_total = %v, want 1", got)
	}
}

// TestRecordMutation はミューテーション種別ラベル付きカウンタを検証する。
func TestRecordMutation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMutation("send_request")
	c.RecordMutation("send_request")
	c.RecordMutation("accept_request")

	mutations := gatherMetric(t, reg, "chatman_mutations_total")
	if mutations == nil {
		t.Fatal("chatman_mutations_total not found")
	}

	counts := make(map[string]float64)
	for _, m := range mutations.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "kind" {
				counts[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if counts["send_request"] != 2 {
		t.Errorf("mutations{kind=send_request} = %v, want 2", counts["send_request"])
	}
	if counts["accept_request"] != 1 {
		t.Errorf("mutations{kind=accept_request} = %v, want 1", counts["accept_request"])
	}
}

// TestRecordStoreHTTPStatus はステータスコード別カウンタを検証する。
func TestRecordStoreHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStoreHTTPStatus(200)
	c.RecordStoreHTTPStatus(200)
	c.RecordStoreHTTPStatus(500)

	status := gatherMetric(t, reg, "chatman_store_http_status_total")
	if status == nil {
		t.Fatal("chatman_store_http_status_total not found")
	}

	counts := make(map[string]float64)
	for _, m := range status.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status_code" {
				counts[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if counts["200"] != 2 {
		t.Errorf("store_http_status{status_code=200} = %v, want 2", counts["200"])
	}
	if counts["500"] != 1 {
		t.Errorf("store_http_status{status_code=500} = %v, want 1", counts["500"])
	}
}

// TestStreamClientGauge はWebSocket購読者ゲージの増減を検証する。
func TestStreamClientGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.StreamClientConnected()
	c.StreamClientConnected()
	c.StreamClientDisconnected()

	clients := gatherMetric(t, reg, "chatman_stream_clients")
	if clients == nil {
		t.Fatal("chatman_stream_clients not found")
	}
	if got := clients.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("stream_clients = %v, want 1", got)
	}
}
