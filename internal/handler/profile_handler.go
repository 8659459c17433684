package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/chirp/internal/identity"
	"github.com/hitoshi/chirp/internal/model"
)

// ProfileHandler は著者プロフィール参照のHTTPハンドラー。
// プロフィール自体は外部のアイデンティティサービスが所有しており、
// ここでは読み取りだけを提供する。
type ProfileHandler struct {
	profiles identity.ProfileFetcher
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles identity.ProfileFetcher) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetByUsername はユーザー名でプロフィールを検索する。
// GET /api/profiles/:username
func (h *ProfileHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	author, err := h.profiles.GetProfileByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if author == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(username))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authorResponse{
		ID:                author.ID,
		Username:          author.Username,
		ProfilePictureURL: author.ProfilePictureURL,
	})
}
