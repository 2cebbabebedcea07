// Package mockstore はUsers/EntriesコレクションのローカルREST実装を提供する。
// 本番で利用する外部ストアと同じワイヤフォーマットをPostgreSQLバックエンドで
// 再現し、開発・結合テストを外部サービスから切り離す。
package mockstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chatman/internal/model"
)

// UserRepository はユーザーコレクションの永続化インターフェース。
type UserRepository interface {
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, user model.User) (*model.User, error)
}

// EntryRepository はエントリコレクションの永続化インターフェース。
type EntryRepository interface {
	List(ctx context.Context) ([]model.Entry, error)
	Create(ctx context.Context, entry model.Entry) (*model.Entry, error)
	Update(ctx context.Context, id string, entry model.Entry) (*model.Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// List は全ユーザーを作成日時の昇順で取得する。
func (r *PostgresUserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, full_name, email, password, created_at FROM users ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.FullName, &user.Email, &user.Password, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Create はユーザーを作成する。IDと作成日時は呼び出し側で採番済みであること。
func (r *PostgresUserRepo) Create(ctx context.Context, user model.User) (*model.User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, full_name, email, password, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.FullName, user.Email, user.Password, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// PostgresEntryRepo はPostgreSQLを使用したエントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// List は全エントリを作成日時の昇順で取得する。
func (r *PostgresEntryRepo) List(ctx context.Context) ([]model.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, type, status, text, created_at FROM entries ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		var entry model.Entry
		if err := rows.Scan(&entry.ID, &entry.FromID, &entry.ToID, &entry.Type, &entry.Status, &entry.Text, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// Create はエントリを作成する。IDと作成日時は呼び出し側で採番済みであること。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry model.Entry) (*model.Entry, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (id, from_id, to_id, type, status, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.FromID, entry.ToID, entry.Type, entry.Status, entry.Text, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	return &entry, nil
}

// Update は指定IDのエントリを全フィールド置換する。
// 見つからない場合はnilを返す。
func (r *PostgresEntryRepo) Update(ctx context.Context, id string, entry model.Entry) (*model.Entry, error) {
	updated := model.Entry{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE entries
		 SET from_id = $2, to_id = $3, type = $4, status = $5, text = $6
		 WHERE id = $1
		 RETURNING id, from_id, to_id, type, status, text, created_at`,
		id, entry.FromID, entry.ToID, entry.Type, entry.Status, entry.Text,
	).Scan(&updated.ID, &updated.FromID, &updated.ToID, &updated.Type, &updated.Status, &updated.Text, &updated.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	return &updated, nil
}

// Delete は指定IDのエントリを削除する。削除した場合はtrueを返す。
func (r *PostgresEntryRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface checks
var (
	_ UserRepository  = (*PostgresUserRepo)(nil)
	_ EntryRepository = (*PostgresEntryRepo)(nil)
)
