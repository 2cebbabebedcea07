package mockstore

import (
	"time"

	"github.com/hitoshi/chatman/internal/model"
)

// entryPayload はエントリ作成・更新リクエストのボディ。
// IDと作成日時はサーバー側で採番するため受け付けない。
type entryPayload struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Text   string `json:"text"`
}

// toRecord はペイロードを採番済みのエントリレコードに変換する。
func (p entryPayload) toRecord(id string, createdAt time.Time) model.Entry {
	return model.Entry{
		ID:        id,
		FromID:    p.FromID,
		ToID:      p.ToID,
		Type:      model.EntryType(p.Type),
		Status:    model.EntryStatus(p.Status),
		Text:      p.Text,
		CreatedAt: createdAt.UTC(),
	}
}

// newUserRecord は採番済みのユーザーレコードを組み立てる。
func newUserRecord(id, fullName, email, password string, createdAt time.Time) model.User {
	return model.User{
		ID:        id,
		FullName:  fullName,
		Email:     email,
		Password:  password,
		CreatedAt: createdAt.UTC(),
	}
}
