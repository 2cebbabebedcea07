// Package relation はエントリ一覧からの関係状態の純粋導出を提供する。
// 本パッケージの関数はすべて参照透過であり、同一のエントリ配列と
// 同一のユーザーペアに対して常に同一の結果を返す。導出結果を
// キャッシュ・保存してはならない（エントリが唯一の真実の情報源）。
package relation

import (
	"sort"

	"github.com/hitoshi/chatman/internal/model"
)

// PairState はあるユーザーペアの導出された接続状態を表す。
// エントリから毎回導出される値であり、どこにも保存されない。
type PairState string

const (
	// StateNone はリクエストエントリが存在しない状態。
	StateNone PairState = "none"
	// StatePendingOut は自分が送信した保留中リクエストが存在する状態。
	StatePendingOut PairState = "pending_out"
	// StatePendingIn は相手から受信した保留中リクエストが存在する状態。
	StatePendingIn PairState = "pending_in"
	// StateAccepted はリクエストが承認済みの状態。メッセージ送信が可能になる。
	StateAccepted PairState = "accepted"
)

// Requests はエントリ一覧からrequestエントリのみを抽出する。
func Requests(entries []model.Entry) []model.Entry {
	var result []model.Entry
	for _, e := range entries {
		if e.Type == model.EntryTypeRequest {
			result = append(result, e)
		}
	}
	return result
}

// Chats はエントリ一覧から承認済みchatエントリのみを抽出する。
// 承認されていないchatエントリは描画対象外のため除外する。
func Chats(entries []model.Entry) []model.Entry {
	var result []model.Entry
	for _, e := range entries {
		if e.Type == model.EntryTypeChat && e.Status == model.EntryStatusAccepted {
			result = append(result, e)
		}
	}
	return result
}

// CurrentRequest は指定ペア（方向不問）のrequestエントリを返す。
// 重複が存在する場合はコレクション順で最初の1件のみを採用し、
// 以降は無視する（書き込み時の一意性はストアが保証しないため）。
// 見つからない場合はnilを返す。
func CurrentRequest(entries []model.Entry, selfID, otherID string) *model.Entry {
	for _, e := range entries {
		if e.Type == model.EntryTypeRequest && e.Involves(selfID, otherID) {
			found := e
			return &found
		}
	}
	return nil
}

// StateFor は指定ペアの接続状態をselfID視点で導出する。
// 戻り値は StateNone / StatePendingOut / StatePendingIn / StateAccepted の
// いずれかであり、相手視点の導出結果とは鏡像関係になる
// （自分のpending_outは相手のpending_in）。
func StateFor(entries []model.Entry, selfID, otherID string) PairState {
	req := CurrentRequest(entries, selfID, otherID)
	if req == nil {
		return StateNone
	}
	if req.Status == model.EntryStatusAccepted {
		return StateAccepted
	}
	if req.FromID == selfID {
		return StatePendingOut
	}
	return StatePendingIn
}

// AcceptedIDs は指定ユーザーが関与する承認済みリクエストの相手方ID一覧を返す。
// 方向は正規化される（常に「相手側」のIDに解決される）。
func AcceptedIDs(entries []model.Entry, selfID string) []string {
	var ids []string
	for _, e := range entries {
		if e.Type != model.EntryTypeRequest || e.Status != model.EntryStatusAccepted {
			continue
		}
		if other := e.Counterpart(selfID); other != "" {
			ids = append(ids, other)
		}
	}
	return ids
}

// Contact は一覧描画用の連絡先1件を表す。
// バッジフラグは描画ごとにエントリから再計算され、保存されない。
type Contact struct {
	User            model.User
	OutgoingPending bool // 自分が送った保留中リクエストがある
	IncomingPending bool // 相手から受けた保留中リクエストがある
}

// Partition は全ユーザーを承認済み連絡先とその他の連絡先に分割する。
// 承認済み関係を持たないユーザー（未接触・保留中のみの両ケース）は
// 同一に扱い、availableに含める。selfID自身は常に除外する。
func Partition(users []model.User, entries []model.Entry, selfID string) (accepted, available []Contact) {
	acceptedSet := make(map[string]bool)
	for _, id := range AcceptedIDs(entries, selfID) {
		acceptedSet[id] = true
	}

	for _, u := range users {
		if u.ID == selfID {
			continue
		}
		c := Contact{
			User:            u,
			OutgoingPending: hasPending(entries, selfID, u.ID),
			IncomingPending: hasPending(entries, u.ID, selfID),
		}
		if acceptedSet[u.ID] {
			accepted = append(accepted, c)
		} else {
			available = append(available, c)
		}
	}
	return accepted, available
}

// hasPending はfromID発・toID宛の保留中リクエストが存在するかを返す。
func hasPending(entries []model.Entry, fromID, toID string) bool {
	for _, e := range entries {
		if e.Type == model.EntryTypeRequest &&
			e.Status == model.EntryStatusPending &&
			e.FromID == fromID && e.ToID == toID {
			return true
		}
	}
	return false
}

// Conversation は指定ペア間の会話トランスクリプトを導出する。
// 承認済みchatエントリを方向不問で抽出し、createdAt昇順で返す。
// 同時刻のエントリは元のコレクション順を維持する（安定ソート）。
func Conversation(entries []model.Entry, selfID, otherID string) []model.Entry {
	var convo []model.Entry
	for _, e := range Chats(entries) {
		if e.Involves(selfID, otherID) {
			convo = append(convo, e)
		}
	}
	sort.SliceStable(convo, func(i, j int) bool {
		return convo[i].CreatedAt.Before(convo[j].CreatedAt)
	})
	return convo
}
