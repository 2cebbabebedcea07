// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, contact, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeContactNotFound      = "CONTACT_NOT_FOUND"
	ErrCodeRequestNotFound      = "REQUEST_NOT_FOUND"
	ErrCodeRequestExists        = "REQUEST_ALREADY_EXISTS"
	ErrCodeRequestNotPending    = "REQUEST_NOT_PENDING"
	ErrCodeNotRequestRecipient  = "NOT_REQUEST_RECIPIENT"
	ErrCodeNotRequestInitiator  = "NOT_REQUEST_INITIATOR"
	ErrCodeStoreUnavailable     = "STORE_UNAVAILABLE"
	ErrCodeSnapshotNotReady     = "SNAPSHOT_NOT_READY"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewContactNotFoundError は相手ユーザー未検出エラーを生成する。
func NewContactNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeContactNotFound,
		Message:  fmt.Sprintf("指定された相手ユーザーが見つかりません: %s", userID),
		Category: "contact",
		Action:   "連絡先一覧から相手を選択し直してください。",
	}
}

// NewRequestNotFoundError はリクエスト未検出エラーを生成する。
func NewRequestNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotFound,
		Message:  "この相手との接続リクエストが見つかりません。",
		Category: "contact",
		Action:   "最新の状態を確認し、必要ならリクエストを送信してください。",
	}
}

// NewRequestExistsError はリクエスト重複エラーを生成する。
func NewRequestExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestExists,
		Message:  "この相手との接続リクエストは既に存在します。",
		Category: "contact",
		Action:   "既存のリクエストの承認またはキャンセルを待ってください。",
	}
}

// NewRequestNotPendingError は保留中でないリクエストへの操作エラーを生成する。
func NewRequestNotPendingError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotPending,
		Message:  "このリクエストは保留中ではありません。",
		Category: "contact",
		Action:   "承認・キャンセル・拒否は保留中のリクエストに対してのみ実行できます。",
	}
}

// NewNotRequestRecipientError は受信者以外による承認・拒否エラーを生成する。
func NewNotRequestRecipientError() *APIError {
	return &APIError{
		Code:     ErrCodeNotRequestRecipient,
		Message:  "このリクエストの受信者ではありません。",
		Category: "contact",
		Action:   "承認・拒否はリクエストを受け取った側のみ実行できます。",
	}
}

// NewNotRequestInitiatorError は送信者以外によるキャンセルエラーを生成する。
func NewNotRequestInitiatorError() *APIError {
	return &APIError{
		Code:     ErrCodeNotRequestInitiator,
		Message:  "このリクエストの送信者ではありません。",
		Category: "contact",
		Action:   "キャンセルはリクエストを送信した側のみ実行できます。",
	}
}

// NewStoreUnavailableError はリモートストア通信失敗エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一時的な障害として通知する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "ストアとの通信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSnapshotNotReadyError はスナップショット未取得エラーを生成する。
// 起動直後、最初のポーリングが完了する前にのみ発生する。
func NewSnapshotNotReadyError() *APIError {
	return &APIError{
		Code:     ErrCodeSnapshotNotReady,
		Message:  "エントリの初回取得が完了していません。",
		Category: "system",
		Action:   "数秒待ってから再度お試しください。",
	}
}
