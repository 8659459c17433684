package repository

import (
	"testing"

	"github.com/hitoshi/chirp/internal/model"
)

// TestPostgresPostRepo_ImplementsInterface はPostgresPostRepoがPostRepositoryを実装することを検証する。
func TestPostgresPostRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresPostRepoがPostRepositoryを満たすことを検証
	var _ PostRepository = (*PostgresPostRepo)(nil)
}

// TestPostgresSessionRepo_ImplementsInterface はPostgresSessionRepoがSessionRepositoryを実装することを検証する。
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresSessionRepoがSessionRepositoryを満たすことを検証
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// TestMaxPostContentLength は投稿本文の最大文字数が280であることを検証する。
func TestMaxPostContentLength(t *testing.T) {
	if model.MaxPostContentLength != 280 {
		t.Errorf("MaxPostContentLength = %d, want 280", model.MaxPostContentLength)
	}
}
