// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/chirp/internal/model"
)

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// ListPage は投稿のページと総件数を同一トランザクション内で取得する。
	// page*limit件スキップしたcreated_at降順（同時刻はid降順）のスライスを返す。
	// authorIDが空でない場合は投稿者でフィルタし、総件数も同じフィルタを反映する。
	ListPage(ctx context.Context, page int, authorID string, limit int) ([]model.Post, int, error)

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListRecentByAuthor は指定投稿者の投稿をcreated_at降順で最大limit件返す。
	ListRecentByAuthor(ctx context.Context, authorID string, limit int) ([]model.Post, error)

	// Create は新規投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// UpdateContent は投稿の本文と更新日時を更新する。
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error

	// DeleteByID は指定IDの投稿を完全に削除する。論理削除は行わない。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションの発行は外部認証レイヤーが行い、本システムは検証と破棄のみを行う。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
