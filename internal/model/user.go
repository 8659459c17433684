// Package model はドメインモデルを定義する。
package model

import "time"

// Author は外部IDプロバイダが管理する投稿者プロフィールを表す。
// 本システムは読み取りのみを行い、作成・更新は一切行わない。
// Usernameが空のプロフィールはJOIN結果から除外される。
type Author struct {
	ID                string
	Username          string
	ProfilePictureURL string
}

// Session はユーザーのログインセッションを表す。
// セッションの発行は外部の認証レイヤーが行い、本システムは検証のみを行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
