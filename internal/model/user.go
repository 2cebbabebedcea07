// Package model はドメインモデルを定義する。
package model

import "time"

// User はリモートストアのユーザーコレクションの1レコードを表す。
// リモートストアはパスワードを平文で保持する（モックバックエンドの仕様に従う）。
// JSONタグはリモートストア（mockapi互換）のワイヤフォーマットに合わせている。
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
