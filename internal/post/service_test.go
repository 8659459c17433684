package post

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/ratelimit"
	"github.com/hitoshi/chirp/internal/security"
)

// --- テスト用モック ---

// mockPostRepo はテスト用のPostRepositoryモック。
// 保存された投稿をメモリ上に保持する。
type mockPostRepo struct {
	posts    map[string]*model.Post
	createFn func(ctx context.Context, post *model.Post) error
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[string]*model.Post)}
}

func (m *mockPostRepo) ListPage(_ context.Context, _ int, _ string, _ int) ([]model.Post, int, error) {
	return nil, 0, nil
}

func (m *mockPostRepo) FindByID(_ context.Context, id string) (*model.Post, error) {
	post, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

func (m *mockPostRepo) ListRecentByAuthor(_ context.Context, _ string, _ int) ([]model.Post, error) {
	return nil, nil
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *mockPostRepo) UpdateContent(_ context.Context, id, content string, updatedAt time.Time) error {
	if post, ok := m.posts[id]; ok {
		post.Content = content
		post.UpdatedAt = updatedAt
	}
	return nil
}

func (m *mockPostRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.posts, id)
	return nil
}

// failingLimiter は常にエラーを返すリミッター。ストア障害のシミュレーション用。
type failingLimiter struct{}

func (failingLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return false, errors.New("store unavailable")
}

func newTestService(repo *mockPostRepo, limiter ratelimit.Limiter) *Service {
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(3, time.Minute)
	}
	return NewService(repo, limiter, security.NewContentSanitizer(), slog.Default(), nil)
}

// --- Create テスト ---

// TestCreate_PersistsPost は有効な本文で投稿が作成されることをテストする。
func TestCreate_PersistsPost(t *testing.T) {
	repo := newMockPostRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Create(context.Background(), "user-1", "hello chirp")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created.ID == "" {
		t.Error("created post should have an ID")
	}
	if created.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", created.UserID, "user-1")
	}
	if created.Content != "hello chirp" {
		t.Errorf("Content = %q, want %q", created.Content, "hello chirp")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
	if _, ok := repo.posts[created.ID]; !ok {
		t.Error("post should be persisted in repository")
	}
}

// TestCreate_ContentBoundaries は本文長の境界値をテストする。
// 空および281文字は失敗し、280文字ちょうどは成功する。
func TestCreate_ContentBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		wantCode string // 空文字列なら成功を期待
	}{
		{"空文字列", "", model.ErrCodeValidationFailed},
		{"1文字", "a", ""},
		{"280文字", strings.Repeat("x", 280), ""},
		{"281文字", strings.Repeat("x", 281), model.ErrCodeValidationFailed},
		{"マルチバイト280文字", strings.Repeat("あ", 280), ""},
		{"マルチバイト281文字", strings.Repeat("あ", 281), model.ErrCodeValidationFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockPostRepo()
			svc := newTestService(repo, nil)

			_, err := svc.Create(context.Background(), "user-1", tc.content)

			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("Create returned unexpected error: %v", err)
				}
				return
			}

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tc.wantCode)
			}
		})
	}
}

// TestCreate_SanitizesBeforeValidation はタグ除去後の本文で文字数検証されることをテストする。
func TestCreate_SanitizesBeforeValidation(t *testing.T) {
	repo := newMockPostRepo()
	svc := newTestService(repo, nil)

	// タグを除去すると空になる入力はバリデーションエラー
	_, err := svc.Create(context.Background(), "user-1", "<b></b>")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("markup-only content should fail validation, got %v", err)
	}

	// タグ部分を除いた本文が保存される
	created, err := svc.Create(context.Background(), "user-1", "hi <script>x()</script>there")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Content != "hi there" {
		t.Errorf("Content = %q, want %q", created.Content, "hi there")
	}
}

// TestCreate_RateLimited は同一ユーザーの4件目の作成が拒否されることをテストする。
func TestCreate_RateLimited(t *testing.T) {
	repo := newMockPostRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "user-1", "chirp"); err != nil {
			t.Fatalf("create %d returned error: %v", i+1, err)
		}
	}

	_, err := svc.Create(ctx, "user-1", "one too many")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeRateLimited)
	}

	// 別ユーザーは影響を受けない
	if _, err := svc.Create(ctx, "user-2", "chirp"); err != nil {
		t.Errorf("other user should not be rate limited: %v", err)
	}
}

// TestCreate_LimiterFailureFailsClosed はリミッターのストア障害時に
// 投稿が拒否されることをテストする（フェイルクローズ）。
func TestCreate_LimiterFailureFailsClosed(t *testing.T) {
	repo := newMockPostRepo()
	svc := newTestService(repo, failingLimiter{})

	_, err := svc.Create(context.Background(), "user-1", "chirp")
	if err == nil {
		t.Fatal("expected error when limiter store is unavailable")
	}
	if len(repo.posts) != 0 {
		t.Error("no post should be persisted when limiter fails")
	}
}

// --- Update テスト ---

// seedPost はテスト用の既存投稿をリポジトリに登録する。
func seedPost(repo *mockPostRepo, id, userID, content string) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.posts[id] = &model.Post{
		ID: id, UserID: userID, Content: content,
		CreatedAt: now, UpdatedAt: now,
	}
}

// TestUpdate_ByOwner は所有者による更新が本文と更新日時を変更することをテストする。
func TestUpdate_ByOwner(t *testing.T) {
	repo := newMockPostRepo()
	seedPost(repo, "post-1", "user-1", "before")
	svc := newTestService(repo, nil)

	if err := svc.Update(context.Background(), "user-1", "post-1", "after"); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	updated := repo.posts["post-1"]
	if updated.Content != "after" {
		t.Errorf("Content = %q, want %q", updated.Content, "after")
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("UpdatedAt should be refreshed")
	}
}

// TestUpdate_ByNonOwner は非所有者による更新が認可エラーになることをテストする。
func TestUpdate_ByNonOwner(t *testing.T) {
	repo := newMockPostRepo()
	seedPost(repo, "post-1", "user-1", "before")
	svc := newTestService(repo, nil)

	err := svc.Update(context.Background(), "user-2", "post-1", "hijack")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeForbidden)
	}
	if repo.posts["post-1"].Content != "before" {
		t.Error("post should be unchanged after denied update")
	}
}

// TestUpdate_ValidatesContent は更新時も作成と同じ文字数検証が行われることをテストする。
func TestUpdate_ValidatesContent(t *testing.T) {
	repo := newMockPostRepo()
	seedPost(repo, "post-1", "user-1", "before")
	svc := newTestService(repo, nil)

	err := svc.Update(context.Background(), "user-1", "post-1", strings.Repeat("x", 281))

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("over-length update should fail validation, got %v", err)
	}
}

// TestUpdate_NotFound は存在しない投稿の更新がNotFoundエラーになることをテストする。
func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService(newMockPostRepo(), nil)

	err := svc.Update(context.Background(), "user-1", "missing", "content")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Errorf("expected POST_NOT_FOUND, got %v", err)
	}
}

// --- Delete テスト ---

// TestDelete_ByOwner は所有者による削除で投稿が完全に削除されることをテストする。
func TestDelete_ByOwner(t *testing.T) {
	repo := newMockPostRepo()
	seedPost(repo, "post-1", "user-1", "bye")
	svc := newTestService(repo, nil)

	if err := svc.Delete(context.Background(), "user-1", "post-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, ok := repo.posts["post-1"]; ok {
		t.Error("post should be removed from repository")
	}
}

// TestDelete_ByNonOwner は非所有者による削除が認可エラーになり、投稿が残ることをテストする。
func TestDelete_ByNonOwner(t *testing.T) {
	repo := newMockPostRepo()
	seedPost(repo, "post-1", "user-1", "keep")
	svc := newTestService(repo, nil)

	err := svc.Delete(context.Background(), "user-2", "post-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeForbidden)
	}
	if _, ok := repo.posts["post-1"]; !ok {
		t.Error("post should remain after denied delete")
	}
}

// TestDelete_RateLimited は削除も作成と同じレート制限でゲートされることをテストする。
func TestDelete_RateLimited(t *testing.T) {
	repo := newMockPostRepo()
	limiter := ratelimit.NewMemoryLimiter(3, time.Minute)
	svc := newTestService(repo, limiter)
	ctx := context.Background()

	// ウィンドウを使い切る
	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, "user-1")
	}

	seedPost(repo, "post-1", "user-1", "keep")
	err := svc.Delete(ctx, "user-1", "post-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRateLimited {
		t.Errorf("expected RATE_LIMITED, got %v", err)
	}
	if _, ok := repo.posts["post-1"]; !ok {
		t.Error("post should remain when delete is rate limited")
	}
}

// TestDelete_NotFound は存在しない投稿の削除がNotFoundエラーになることをテストする。
func TestDelete_NotFound(t *testing.T) {
	svc := newTestService(newMockPostRepo(), nil)

	err := svc.Delete(context.Background(), "user-1", "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Errorf("expected POST_NOT_FOUND, got %v", err)
	}
}

// --- CheckPermissions テスト ---

// TestCheckPermissions は所有者判定の真偽値が正しいことをテストする。
func TestCheckPermissions(t *testing.T) {
	repo := newMockPostRepo()
	seedPost(repo, "post-1", "user-1", "mine")
	svc := newTestService(repo, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		callerID string
		postID   string
		want     bool
	}{
		{"所有者", "user-1", "post-1", true},
		{"非所有者", "user-2", "post-1", false},
		{"存在しない投稿", "user-1", "missing", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CheckPermissions(ctx, tc.callerID, tc.postID)
			if err != nil {
				t.Fatalf("CheckPermissions returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("CheckPermissions = %v, want %v", got, tc.want)
			}
		})
	}
}
