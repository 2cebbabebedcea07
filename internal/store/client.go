// Package store はリモートエントリストアへのアクセスを提供する。
// ユーザーコレクションとエントリコレクション（mockapi互換のREST資源）への
// HTTP JSONクライアントと、最新取得結果を保持するスナップショットを含む。
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chatman/internal/model"
)

// StatusRecorder はストアHTTPレスポンスの計測インターフェース。
// メトリクス収集が不要な場合はnilを渡してよい。
type StatusRecorder interface {
	RecordStoreHTTPStatus(statusCode int)
}

// Client はリモートストアのHTTP JSONクライアント。
// リトライ・バックオフは行わない。失敗は呼び出し元でログし、
// 次のポーリングまで古いスナップショットを使い続ける。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	usersURL   string
	entriesURL string
	metrics    StatusRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsはnil可。
func NewClient(httpClient *http.Client, logger *slog.Logger, usersURL, entriesURL string, metrics StatusRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		usersURL:   usersURL,
		entriesURL: entriesURL,
		metrics:    metrics,
	}
}

// FetchEntries はエントリコレクション全件を取得する。
// 増分取得は行わない（全件再取得がスナップショットの正しさを保証する）。
func (c *Client) FetchEntries(ctx context.Context) ([]model.Entry, error) {
	var entries []model.Entry
	if err := c.getJSON(ctx, c.entriesURL, &entries); err != nil {
		return nil, fmt.Errorf("エントリ一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// FetchUsers はユーザーコレクション全件を取得する。
func (c *Client) FetchUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.getJSON(ctx, c.usersURL, &users); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// CreateEntry はエントリを作成し、ストアがIDを採番した結果を返す。
func (c *Client) CreateEntry(ctx context.Context, entry model.Entry) (*model.Entry, error) {
	var created model.Entry
	if err := c.sendJSON(ctx, http.MethodPost, c.entriesURL, entry, &created); err != nil {
		return nil, fmt.Errorf("エントリの作成に失敗しました: %w", err)
	}
	return &created, nil
}

// UpdateEntry は指定IDのエントリを全体置換で更新する。
func (c *Client) UpdateEntry(ctx context.Context, id string, entry model.Entry) (*model.Entry, error) {
	var updated model.Entry
	url := fmt.Sprintf("%s/%s", c.entriesURL, id)
	if err := c.sendJSON(ctx, http.MethodPut, url, entry, &updated); err != nil {
		return nil, fmt.Errorf("エントリの更新に失敗しました: %w", err)
	}
	return &updated, nil
}

// DeleteEntry は指定IDのエントリを削除する。
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/%s", c.entriesURL, id)
	if err := c.sendJSON(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("エントリの削除に失敗しました: %w", err)
	}
	return nil
}

// CreateUser はユーザーを登録し、ストアがIDを採番した結果を返す。
func (c *Client) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	var created model.User
	if err := c.sendJSON(ctx, http.MethodPost, c.usersURL, user, &created); err != nil {
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}
	return &created, nil
}

// getJSON はGETリクエストを実行しレスポンスJSONをデコードする。
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Chatman/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ストアへのリクエストに失敗しました",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	c.recordStatus(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ストアがエラーステータスを返しました",
			slog.String("url", url),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("ストアがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// sendJSON はボディ付きリクエストを実行する。outがnilでなければ
// レスポンスJSONをデコードする。
func (c *Client) sendJSON(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("リクエストJSONのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Chatman/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ストアへのリクエストに失敗しました",
			slog.String("method", method),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	c.recordStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("ストアがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("ストアがステータス %d を返しました", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// recordStatus はメトリクスレコーダーが設定されている場合のみ記録する。
func (c *Client) recordStatus(statusCode int) {
	if c.metrics != nil {
		c.metrics.RecordStoreHTTPStatus(statusCode)
	}
}
