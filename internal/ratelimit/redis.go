package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// keyPrefix はRedisキーの名前空間。全インスタンスで共通。
const keyPrefix = "ratelimit:create:"

// allowScript はウィンドウ外イベントの除去・計数・条件付き記録を
// 単一のアトミックな操作として実行する。複数インスタンスが同時に
// 判定しても、計数と記録の間に他の記録が割り込む余地がないため、
// 上限を超える許可は発生しない。
//
// KEYS[1] = ソート済みセットのキー
// ARGV[1] = ウィンドウ開始時刻（UNIXナノ秒）
// ARGV[2] = 上限件数
// ARGV[3] = イベント時刻スコア（UNIXナノ秒）
// ARGV[4] = イベントメンバー（呼び出しごとに一意）
// ARGV[5] = キーのTTL（ミリ秒）
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter はRedisのソート済みセットを使用したスライディングウィンドウリミッター。
// メンバーのスコアをイベント時刻（UNIXナノ秒）とし、ウィンドウ外のメンバーを
// 削除してから残件数を数えることで「直近window内のイベント数」を求める。
// ストアが共有されるため、複数のサーバーインスタンス間でも制限は一貫する。
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter はRedisLimiterを生成する。
// limitが0以下の場合はDefaultLimit、windowが0以下の場合はDefaultWindowを使用する。
func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
	}
}

// Allow はキーに対するリクエストを1件許可できるか判定する。
// 除去・計数・記録をLuaスクリプトで一括実行するため、複数インスタンスからの
// 同時呼び出しでも上限を超える許可は発生しない。拒否されたリクエストは
// 枠を消費しない。メンバーは呼び出しごとに一意で、同一ナノ秒のイベントが
// 1件に潰れることもない。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-l.window).UnixNano()

	allowed, err := allowScript.Run(ctx, l.rdb,
		[]string{keyPrefix + key},
		strconv.FormatInt(windowStart, 10),
		l.limit,
		strconv.FormatInt(now.UnixNano(), 10),
		uuid.NewString(),
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("レート制限の判定に失敗しました: %w", err)
	}

	return allowed == 1, nil
}

// compile-time interface check
var _ Limiter = (*RedisLimiter)(nil)
