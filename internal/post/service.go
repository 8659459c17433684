// Package post は投稿の作成・編集・削除のドメインロジックを提供する。
// すべての操作は認証済みの呼び出し元ユーザーIDを明示的な引数として受け取る。
// 暗黙のグローバルな認証状態には依存しない。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/ratelimit"
	"github.com/hitoshi/chirp/internal/repository"
	"github.com/hitoshi/chirp/internal/security"
)

// MetricsRecorder は投稿操作のメトリクス記録のインターフェース。
type MetricsRecorder interface {
	// RecordPostCreated は投稿作成を記録する。
	RecordPostCreated()
	// RecordPostDeleted は投稿削除を記録する。
	RecordPostDeleted()
	// RecordRateLimited はレート制限による拒否を記録する。
	RecordRateLimited()
}

// Service は投稿の作成・編集・削除のサービス層。
// 作成と削除はスライディングウィンドウレート制限でゲートされる。
type Service struct {
	postRepo  repository.PostRepository
	limiter   ratelimit.Limiter
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	metrics   MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// limiterは共有ストアを背後に持つ実装を注入する（テストではインメモリ実装）。
// metricsはnilを許容する（記録をスキップする）。
func NewService(
	postRepo repository.PostRepository,
	limiter ratelimit.Limiter,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		postRepo:  postRepo,
		limiter:   limiter,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   metrics,
	}
}

// Create は新規投稿を作成する。
// 本文はサニタイズ後に1〜280文字であることを検証し、呼び出し元ユーザーの
// レート制限（直近60秒で3件）を確認してから永続化する。
func (s *Service) Create(ctx context.Context, callerID, content string) (*model.Post, error) {
	sanitized, err := s.validateContent(content)
	if err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, callerID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	post := &model.Post{
		ID:        uuid.NewString(),
		UserID:    callerID,
		Content:   sanitized,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPostCreated()
	}

	return post, nil
}

// Update は投稿の本文を更新し、更新日時をリフレッシュする。
// 本文のバリデーションと所有者チェックをCreate/Deleteと対称に実施する。
func (s *Service) Update(ctx context.Context, callerID, postID, content string) error {
	sanitized, err := s.validateContent(content)
	if err != nil {
		return err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return model.NewPostNotFoundError(postID)
	}
	if post.UserID != callerID {
		return model.NewNotPostOwnerError(postID)
	}

	return s.postRepo.UpdateContent(ctx, postID, sanitized, time.Now().UTC())
}

// Delete は投稿を完全に削除する。論理削除は行わない。
// 所有者チェックの後、作成と同じレート制限でゲートする。
func (s *Service) Delete(ctx context.Context, callerID, postID string) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return model.NewPostNotFoundError(postID)
	}
	if post.UserID != callerID {
		return model.NewNotPostOwnerError(postID)
	}

	if err := s.checkRateLimit(ctx, callerID); err != nil {
		return err
	}

	if err := s.postRepo.DeleteByID(ctx, postID); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordPostDeleted()
	}

	return nil
}

// CheckPermissions は投稿が存在し、かつ呼び出し元が所有者である場合にtrueを返す。
// クライアントが編集・削除UIの表示可否を判断するために使用する。
// これ自体はセキュリティ境界ではない（実際のチェックはDelete/Update内で再度行われる）。
func (s *Service) CheckPermissions(ctx context.Context, callerID, postID string) (bool, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return false, err
	}
	if post == nil {
		return false, nil
	}
	return post.UserID == callerID, nil
}

// validateContent は本文をサニタイズし、文字数（rune数）を検証する。
func (s *Service) validateContent(content string) (string, error) {
	sanitized := s.sanitizer.Sanitize(content)

	length := utf8.RuneCountInString(sanitized)
	if length == 0 {
		return "", model.NewEmptyContentError()
	}
	if length > model.MaxPostContentLength {
		return "", model.NewContentTooLongError(length)
	}

	return sanitized, nil
}

// checkRateLimit は呼び出し元のレート制限を確認する。
// ストア障害時は制限超過と同様に書き込みを拒否する（フェイルクローズ）。
func (s *Service) checkRateLimit(ctx context.Context, callerID string) error {
	allowed, err := s.limiter.Allow(ctx, callerID)
	if err != nil {
		s.logger.Error("レート制限ストアの確認に失敗しました",
			slog.String("user_id", callerID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レート制限の確認に失敗しました: %w", err)
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.RecordRateLimited()
		}
		s.logger.Warn("投稿レート制限を超過しました",
			slog.String("user_id", callerID),
		)
		return model.NewRateLimitedError()
	}
	return nil
}
