package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/chirp/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// ListPage は投稿のページと総件数を同一トランザクション内で取得する。
// ページのスライスと総件数が同じスナップショットに対して評価されるよう、
// REPEATABLE READの読み取り専用トランザクションで両クエリを発行する。
func (r *PostgresPostRepo) ListPage(ctx context.Context, page int, authorID string, limit int) ([]model.Post, int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("ページ取得トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	countQuery := `SELECT count(*) FROM posts`
	listQuery := `SELECT id, user_id, content, created_at, updated_at
		 FROM posts`

	var countArgs []interface{}
	listArgs := []interface{}{}
	if authorID != "" {
		countQuery += ` WHERE user_id = $1`
		listQuery += ` WHERE user_id = $1`
		countArgs = append(countArgs, authorID)
		listArgs = append(listArgs, authorID)
	}

	var total int
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("投稿総件数の取得に失敗しました: %w", err)
	}

	// created_atが同時刻の場合に順序が安定するよう、idを第2ソートキーとする
	listQuery += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		len(listArgs)+1, len(listArgs)+2)
	listArgs = append(listArgs, limit, page*limit)

	rows, err := tx.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("投稿ページの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("ページ取得トランザクションのコミットに失敗しました: %w", err)
	}

	return posts, total, nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at, updated_at
		 FROM posts WHERE id = $1`,
		id,
	).Scan(&post.ID, &post.UserID, &post.Content, &post.CreatedAt, &post.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}

	return post, nil
}

// ListRecentByAuthor は指定投稿者の投稿をcreated_at降順で最大limit件返す。
func (r *PostgresPostRepo) ListRecentByAuthor(ctx context.Context, authorID string, limit int) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at, updated_at
		 FROM posts
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		authorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿者別投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Create は新規投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.UserID, post.Content, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateContent は投稿の本文と更新日時を更新する。
func (r *PostgresPostRepo) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET content = $2, updated_at = $3 WHERE id = $1`,
		id, content, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの投稿を完全に削除する。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return nil
}

// scanPosts は投稿行のスキャンを共通化する。
func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
