// Package ratelimit は投稿作成・削除に対するスライディングウィンドウ方式の
// レート制限を提供する。カウントは固定バケットではなく「現在時刻から遡るN秒間」の
// イベント数に対して行う。制限状態は全サーバーインスタンスで共有される外部ストア
// （Redis）に保持し、水平スケールしても制限が緩まないようにする。
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultLimit はウィンドウ内に許可するデフォルトのリクエスト数。
	DefaultLimit = 3
	// DefaultWindow はデフォルトのウィンドウ幅。
	DefaultWindow = time.Minute
)

// Limiter はユーザーID単位のスライディングウィンドウレート制限のインターフェース。
// サービス層へ明示的な依存として注入し、テストではインメモリ実装に差し替える。
type Limiter interface {
	// Allow はキーに対するリクエストを1件許可できるか判定する。
	// 許可された場合のみウィンドウ内のイベントとして記録される。
	// 拒否されたリクエストはウィンドウの枠を消費しない。
	// ストア障害時はエラーを返す（呼び出し元はフェイルクローズで扱う）。
	Allow(ctx context.Context, key string) (bool, error)
}
