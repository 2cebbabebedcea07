// Package model はドメインモデルを定義する。
package model

import "time"

// Entry はリモートストアのエントリコレクションの1レコードを表す。
// typeフィールドによりチャット接続リクエストとチャットメッセージの両方を表現する。
// JSONタグはリモートストア（mockapi互換）のワイヤフォーマットに合わせている。
type Entry struct {
	ID        string      `json:"id"`
	FromID    string      `json:"fromId"`
	ToID      string      `json:"toId"`
	Type      EntryType   `json:"type"`
	Status    EntryStatus `json:"status"`
	Text      string      `json:"text,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// EntryType はエントリの種別を表す。
type EntryType string

const (
	// EntryTypeRequest はチャット接続リクエストのエントリ。
	EntryTypeRequest EntryType = "request"
	// EntryTypeChat はチャットメッセージのエントリ。
	EntryTypeChat EntryType = "chat"
)

// EntryStatus はエントリのステータスを表す。
// requestエントリはpendingで作成され、承認によりacceptedへ遷移する。
// chatエントリは承認済みリクエストの下でのみ作成されるため常にacceptedを持つ。
type EntryStatus string

const (
	// EntryStatusPending は未承認のリクエスト状態。
	EntryStatusPending EntryStatus = "pending"
	// EntryStatusAccepted は承認済みの状態。
	EntryStatusAccepted EntryStatus = "accepted"
)

// Involves はエントリが指定された2ユーザー間のもの（方向不問）かを返す。
func (e Entry) Involves(userA, userB string) bool {
	return (e.FromID == userA && e.ToID == userB) ||
		(e.FromID == userB && e.ToID == userA)
}

// Counterpart は指定ユーザーから見た相手方のユーザーIDを返す。
// エントリが指定ユーザーに関与しない場合は空文字を返す。
func (e Entry) Counterpart(userID string) string {
	switch userID {
	case e.FromID:
		return e.ToID
	case e.ToID:
		return e.FromID
	default:
		return ""
	}
}
