// Package identity は外部IDプロバイダとの連携機能を提供する。
// 投稿者プロフィールの一括取得APIとユーザー名検索APIの呼び出しを含む。
// プロフィールの作成・更新は一切行わず、読み取り専用で利用する。
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/chirp/internal/model"
)

// maxIDsPerRequest は一括取得1リクエストあたりの最大ユーザーID数。
const maxIDsPerRequest = 100

// ProfileFetcher は投稿者プロフィール取得のインターフェース。
// feedサービスおよびhandlerから利用する。
type ProfileFetcher interface {
	// GetProfiles は複数ユーザーIDのプロフィールを一括取得する。
	// Usernameが空のプロフィールは結果から除外される。
	// 存在しないIDはマップに含まれない（エラーにはならない）。
	GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Author, error)

	// GetProfileByUsername はユーザー名でプロフィールを検索する。
	// 見つからない場合またはUsernameが空の場合はnilを返す。
	GetProfileByUsername(ctx context.Context, username string) (*model.Author, error)
}

// Client は外部IDプロバイダAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	token      string // 空の場合はAuthorizationヘッダーを付与しない
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, token string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		token:      token,
	}
}

// profilePayload はIDプロバイダAPIのプロフィールレスポンス。
type profilePayload struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// GetProfiles は複数ユーザーIDのプロフィールを一括取得する。
// IDリストは最大100件まで。Usernameが空のプロフィールは除外される。
func (c *Client) GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Author, error) {
	// 空リストの場合は空マップを返す
	if len(userIDs) == 0 {
		return make(map[string]model.Author), nil
	}

	// ID数の上限チェック
	if len(userIDs) > maxIDsPerRequest {
		return nil, fmt.Errorf("ユーザーIDの数が上限を超えています: %d > %d", len(userIDs), maxIDsPerRequest)
	}

	// リクエストURL構築
	reqURL, err := url.Parse(c.baseURL + "/v1/users")
	if err != nil {
		return nil, fmt.Errorf("IDプロバイダAPIのURL構築に失敗しました: %w", err)
	}

	q := reqURL.Query()
	for _, id := range userIDs {
		q.Add("id", id)
	}
	reqURL.RawQuery = q.Encode()

	payloads, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	// Usernameが空のプロフィールはJOIN対象から除外する
	profiles := make(map[string]model.Author, len(payloads))
	for _, p := range payloads {
		if p.Username == "" {
			continue
		}
		profiles[p.ID] = model.Author{
			ID:                p.ID,
			Username:          p.Username,
			ProfilePictureURL: p.ProfilePictureURL,
		}
	}

	return profiles, nil
}

// GetProfileByUsername はユーザー名でプロフィールを検索する。
// 見つからない場合またはUsernameが空の場合はnilを返す。
func (c *Client) GetProfileByUsername(ctx context.Context, username string) (*model.Author, error) {
	reqURL, err := url.Parse(c.baseURL + "/v1/users")
	if err != nil {
		return nil, fmt.Errorf("IDプロバイダAPIのURL構築に失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("username", username)
	reqURL.RawQuery = q.Encode()

	payloads, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	if len(payloads) == 0 || payloads[0].Username == "" {
		return nil, nil
	}

	p := payloads[0]
	return &model.Author{
		ID:                p.ID,
		Username:          p.Username,
		ProfilePictureURL: p.ProfilePictureURL,
	}, nil
}

// get はIDプロバイダAPIへのGETリクエストを実行し、プロフィール配列をデコードする。
func (c *Client) get(ctx context.Context, rawURL string) ([]profilePayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Chirp/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("IDプロバイダAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("IDプロバイダAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("IDプロバイダAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var payloads []profilePayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		c.logger.Error("IDプロバイダAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return payloads, nil
}

// compile-time interface check
var _ ProfileFetcher = (*Client)(nil)
