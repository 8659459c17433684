// Package model はドメインモデルを定義する。
package model

import "time"

// MaxPostContentLength は投稿本文の最大文字数。
// バリデーションはサニタイズ後の文字数（rune数）に対して行う。
const MaxPostContentLength = 280

// Post は短文投稿を表す。
// IDは生成後に変更されない。ContentとUpdatedAtのみ投稿者本人が変更できる。
type Post struct {
	ID        string
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostWithAuthor は投稿と投稿者プロフィールを結合した読み取り専用モデル。
// ページ取得時に外部IDプロバイダへの一括問い合わせでJOINされる。
// Postを埋め込むため、投稿フィールドへは直接アクセスできる。
type PostWithAuthor struct {
	Post
	Author Author
}
