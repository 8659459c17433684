// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodePostNotFound     = "POST_NOT_FOUND"
	ErrCodeAuthorNotFound   = "AUTHOR_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeInvalidPage      = "INVALID_PAGE"
)

// NewEmptyContentError は本文が空の場合のバリデーションエラーを生成する。
func NewEmptyContentError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "投稿内容が空です。",
		Category: "validation",
		Action:   "1文字以上の本文を入力してください。",
	}
}

// NewContentTooLongError は本文が最大文字数を超えた場合のバリデーションエラーを生成する。
func NewContentTooLongError(length int) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("投稿が長すぎます: %d文字（最大%d文字）", length, MaxPostContentLength),
		Category: "validation",
		Action:   fmt.Sprintf("本文を%d文字以内に短くしてください。", MaxPostContentLength),
	}
}

// NewRateLimitedError は投稿レート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "投稿の回数制限に達しました。",
		Category: "post",
		Action:   "1分ほど待ってから再度お試しください。",
	}
}

// NewNotPostOwnerError は投稿の所有者でない呼び出し元による操作エラーを生成する。
func NewNotPostOwnerError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この投稿を操作する権限がありません: %s", postID),
		Category: "auth",
		Action:   "自分の投稿のみ編集・削除できます。",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewAuthorNotFoundError は投稿者プロフィールを解決できなかった場合の整合性エラーを生成する。
// ページ取得中にこのエラーが発生した場合、部分的な結果を返さずページ全体の読み取りを失敗させる。
func NewAuthorNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthorNotFound,
		Message:  fmt.Sprintf("投稿の投稿者が見つかりません: %s", postID),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザー名でプロフィールを検索できなかった場合のエラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "auth",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewInvalidPageError はページ番号が不正な場合のバリデーションエラーを生成する。
func NewInvalidPageError(page int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %d", page),
		Category: "validation",
		Action:   "0以上のページ番号を指定してください。",
	}
}

// NewMalformedPageError は整数として解釈できないページ指定のエラーを生成する。
// ユーザーが実際に送った値をそのままメッセージに含める。
func NewMalformedPageError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %q", raw),
		Category: "validation",
		Action:   "ページ番号は0以上の整数で指定してください。",
	}
}
