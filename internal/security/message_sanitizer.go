// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizerService はチャットメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// メッセージはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyで全HTMLタグを除去する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// chatエントリの保存前に使用される。
type MessageSanitizerService interface {
	// Sanitize はメッセージ本文から全HTMLタグを除去して返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// チャットメッセージに書式は不要なため、タグを一切許可しない
// StrictPolicyを使用する（script・iframe・on*属性などはすべて除去される）。
func NewMessageSanitizer() *messageSanitizer {
	return &messageSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメッセージ本文から全HTMLタグを除去して返す。
func (s *messageSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
