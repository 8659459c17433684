// Package feed はフィード（投稿タイムライン）取得のドメインロジックを提供する。
// ページ単位の投稿取得と、外部IDプロバイダから取得した投稿者プロフィールとの
// JOINを統括する。
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/chirp/internal/identity"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/repository"
)

// PostsPerPage は1ページあたりの投稿件数。ページネーション契約全体で共有される定数。
const PostsPerPage = 5

// maxRecentPosts は投稿者別一覧の最大取得件数。
const maxRecentPosts = 100

// MetricsRecorder はフィード取得のメトリクス記録のインターフェース。
type MetricsRecorder interface {
	// RecordFeedQuery はページ取得の所要時間を記録する。
	RecordFeedQuery(duration time.Duration)
	// RecordAuthorJoinFailure は投稿者プロフィールの解決失敗を記録する。
	RecordAuthorJoinFailure()
}

// Config はフィード取得の動作設定。
type Config struct {
	// SkipMissingAuthors がtrueの場合、投稿者プロフィールを解決できない投稿を
	// 警告ログ付きでページから除外する。false（デフォルト）の場合は
	// ページ全体の読み取りを整合性エラーとして失敗させる。
	SkipMissingAuthors bool
}

// PageResult はGetPageの戻り値。
// TotalCountはページスライスとは独立に、同じフィルタ条件の総件数を表す。
// 次ページの有無は (page+1)*PostsPerPage < TotalCount で判定できる。
type PageResult struct {
	Items      []model.PostWithAuthor
	TotalCount int
}

// Service はフィード取得のサービス層。
type Service struct {
	postRepo repository.PostRepository
	profiles identity.ProfileFetcher
	logger   *slog.Logger
	metrics  MetricsRecorder
	config   Config
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（記録をスキップする）。
func NewService(
	postRepo repository.PostRepository,
	profiles identity.ProfileFetcher,
	logger *slog.Logger,
	metrics MetricsRecorder,
	config Config,
) *Service {
	return &Service{
		postRepo: postRepo,
		profiles: profiles,
		logger:   logger,
		metrics:  metrics,
		config:   config,
	}
}

// GetPage は投稿のページを投稿者プロフィール付きで取得する。
// pageは0始まり。authorIDが空でない場合は投稿者でフィルタし、
// TotalCountにも同じフィルタを反映する。
// 未知のauthorIDは空のItemsとTotalCount=0を返す（エラーにはしない）。
func (s *Service) GetPage(ctx context.Context, page int, authorID string) (*PageResult, error) {
	if page < 0 {
		return nil, model.NewInvalidPageError(page)
	}

	start := time.Now()

	posts, total, err := s.postRepo.ListPage(ctx, page, authorID, PostsPerPage)
	if err != nil {
		return nil, err
	}

	items, err := s.joinAuthors(ctx, posts)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordFeedQuery(time.Since(start))
	}

	return &PageResult{
		Items:      items,
		TotalCount: total,
	}, nil
}

// GetPost は単一の投稿を投稿者プロフィール付きで取得する。
// 見つからない場合はPostNotFoundエラーを返す。
func (s *Service) GetPost(ctx context.Context, postID string) (*model.PostWithAuthor, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	items, err := s.joinAuthors(ctx, []model.Post{*post})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		// SkipMissingAuthors設定で投稿者未解決の投稿が除外された場合
		return nil, model.NewAuthorNotFoundError(postID)
	}

	return &items[0], nil
}

// ListRecentByAuthor は指定投稿者の最新投稿をプロフィール付きで最大100件返す。
func (s *Service) ListRecentByAuthor(ctx context.Context, authorID string) ([]model.PostWithAuthor, error) {
	posts, err := s.postRepo.ListRecentByAuthor(ctx, authorID, maxRecentPosts)
	if err != nil {
		return nil, err
	}
	return s.joinAuthors(ctx, posts)
}

// joinAuthors は投稿のスライスを投稿者プロフィールとJOINする。
// ページ内の投稿者IDの重複を除去し、IDプロバイダへの問い合わせを1回にまとめる。
// プロフィールを解決できない投稿は、設定に応じてページ全体のエラーまたは
// 警告ログ付きの除外として扱う。
func (s *Service) joinAuthors(ctx context.Context, posts []model.Post) ([]model.PostWithAuthor, error) {
	if len(posts) == 0 {
		return []model.PostWithAuthor{}, nil
	}

	// 投稿者IDの重複を除去
	seen := make(map[string]bool, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}

	profiles, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("投稿者プロフィールの一括取得に失敗しました: %w", err)
	}

	items := make([]model.PostWithAuthor, 0, len(posts))
	for _, p := range posts {
		author, ok := profiles[p.UserID]
		if !ok {
			if s.metrics != nil {
				s.metrics.RecordAuthorJoinFailure()
			}
			if s.config.SkipMissingAuthors {
				s.logger.Warn("投稿者プロフィールを解決できない投稿をページから除外します",
					slog.String("post_id", p.ID),
					slog.String("user_id", p.UserID),
				)
				continue
			}
			// 部分的な結果を返さず、ページ全体を整合性エラーとして失敗させる
			return nil, model.NewAuthorNotFoundError(p.ID)
		}
		items = append(items, model.PostWithAuthor{Post: p, Author: author})
	}

	return items, nil
}
