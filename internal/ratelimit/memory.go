package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter はインメモリのスライディングウィンドウリミッター。
// Redisと同じ判定セマンティクスを単一プロセス内で提供する。
// REDIS_URL未設定の単一ノード構成、およびテストでのフェイク実装として使用する。
// 複数インスタンス間では状態を共有しないため、水平スケール時はRedisLimiterを使うこと。
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration

	// now は現在時刻の取得関数。テストで差し替える。
	now func() time.Time
}

// NewMemoryLimiter はMemoryLimiterを生成する。
// limitが0以下の場合はDefaultLimit、windowが0以下の場合はDefaultWindowを使用する。
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow はキーに対するリクエストを1件許可できるか判定する。
// 拒否されたリクエストはウィンドウの枠を消費しない。
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	// ウィンドウ外のイベントを除去
	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.events[key] = kept
		return false, nil
	}

	l.events[key] = append(kept, now)
	return true, nil
}

// compile-time interface check
var _ Limiter = (*MemoryLimiter)(nil)
