package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/chirp/internal/feed"
	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// GetPage はフィードの1ページ分を取得する。
	GetPage(ctx context.Context, page int, authorID string) (*feed.PageResult, error)
	// GetPost は単一投稿を著者情報付きで取得する。
	GetPost(ctx context.Context, postID string) (*model.PostWithAuthor, error)
	// ListRecentByAuthor は指定著者の直近投稿を取得する。
	ListRecentByAuthor(ctx context.Context, authorID string) ([]model.PostWithAuthor, error)
}

// PostServiceInterface は投稿の書き込み操作のサービスインターフェース。
type PostServiceInterface interface {
	// Create は新規投稿を作成する。
	Create(ctx context.Context, callerID, content string) (*model.Post, error)
	// Update は投稿の本文を更新する。
	Update(ctx context.Context, callerID, postID, content string) error
	// Delete は投稿を削除する。
	Delete(ctx context.Context, callerID, postID string) error
	// CheckPermissions は呼び出し元が投稿を変更できるかを判定する。
	CheckPermissions(ctx context.Context, callerID, postID string) (bool, error)
}

// PostHandler は投稿とフィードのHTTPハンドラー。
type PostHandler struct {
	feedService FeedServiceInterface
	postService PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(feedService FeedServiceInterface, postService PostServiceInterface) *PostHandler {
	return &PostHandler{
		feedService: feedService,
		postService: postService,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Content string `json:"content"`
}

// updatePostRequest は投稿更新リクエストのボディ。
type updatePostRequest struct {
	Content string `json:"content"`
}

// authorResponse は著者プロフィールのAPIレスポンス。
type authorResponse struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// postWithAuthorResponse は著者情報付き投稿のAPIレスポンス。
type postWithAuthorResponse struct {
	postResponse
	Author authorResponse `json:"author"`
}

// pageResponse はフィードページのAPIレスポンス。
// countはフィルタ適用後の総投稿数で、次ページの有無の判定に使用する。
type pageResponse struct {
	Data  []postWithAuthorResponse `json:"data"`
	Count int                      `json:"count"`
}

// permissionsResponse は投稿の変更権限判定のAPIレスポンス。
type permissionsResponse struct {
	Allowed bool `json:"allowed"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// GetAllPosts はフィードの1ページを取得する。
// GET /api/posts?page=N&user_id=U
func (h *PostHandler) GetAllPosts(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMalformedPageError(raw))
			return
		}
		page = parsed
	}

	authorID := r.URL.Query().Get("user_id")

	result, err := h.feedService.GetPage(r.Context(), page, authorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPageResponse(result))
}

// GetPost は単一投稿を著者情報付きで取得する。
// GET /api/posts/:id
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	post, err := h.feedService.GetPost(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostWithAuthorResponse(*post))
}

// GetPostsByUser は指定ユーザーの直近投稿一覧を取得する。
// GET /api/users/:id/posts
func (h *PostHandler) GetPostsByUser(w http.ResponseWriter, r *http.Request) {
	authorID := chi.URLParam(r, "id")

	posts, err := h.feedService.ListRecentByAuthor(r.Context(), authorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]postWithAuthorResponse, 0, len(posts))
	for _, p := range posts {
		responses = append(responses, toPostWithAuthorResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// CreatePost は新規投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// UpdatePost は投稿の本文を更新する。
// PATCH /api/posts/:id
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	postID := chi.URLParam(r, "id")

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if err := h.postService.Update(r.Context(), userID, postID, req.Content); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	postID := chi.URLParam(r, "id")

	if err := h.postService.Delete(r.Context(), userID, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckPermissions は呼び出し元が投稿を変更できるかを返す。
// GET /api/posts/:id/permissions
func (h *PostHandler) CheckPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	postID := chi.URLParam(r, "id")

	allowed, err := h.postService.CheckPermissions(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(permissionsResponse{Allowed: allowed})
}

// --- ヘルパー関数 ---

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(post *model.Post) postResponse {
	return postResponse{
		ID:        post.ID,
		UserID:    post.UserID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

// toPostWithAuthorResponse はmodel.PostWithAuthorからAPIレスポンスに変換する。
func toPostWithAuthorResponse(p model.PostWithAuthor) postWithAuthorResponse {
	return postWithAuthorResponse{
		postResponse: toPostResponse(&p.Post),
		Author: authorResponse{
			ID:                p.Author.ID,
			Username:          p.Author.Username,
			ProfilePictureURL: p.Author.ProfilePictureURL,
		},
	}
}

// toPageResponse はfeed.PageResultからAPIレスポンスに変換する。
func toPageResponse(result *feed.PageResult) pageResponse {
	data := make([]postWithAuthorResponse, 0, len(result.Items))
	for _, item := range result.Items {
		data = append(data, toPostWithAuthorResponse(item))
	}
	return pageResponse{Data: data, Count: result.TotalCount}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedResponse は認証エラーレスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestResponse はリクエストボディ解析エラーレスポンスを書き込む。
func writeInvalidRequestResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode == http.StatusInternalServerError {
			slog.Error("internal server error", slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidPage:
		return http.StatusBadRequest
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeAuthorNotFound:
		// 著者解決失敗は読み取り時の整合性エラーであり、クライアント起因ではない
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
