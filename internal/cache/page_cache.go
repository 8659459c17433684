// Package cache はフィードページのクライアント側キャッシュと、
// 楽観的更新（optimistic update）のロールバックプロトコルを提供する。
// サーバー側の真実はあくまでデータベースであり、このキャッシュは
// 書き込み完了までの間だけ暫定的な表示を支える。
package cache

import (
	"context"
	"sync"

	"github.com/hitoshi/chirp/internal/model"
)

// PageKey はキャッシュ上のページを一意に識別する。
// AuthorIDが空文字列の場合は全体フィードを指す。
type PageKey struct {
	Page     int
	AuthorID string
}

// Page はキャッシュされた1ページ分の内容。
// Staleがtrueのページは次の読み取り時に再取得が必要。
type Page struct {
	Items      []model.PostWithAuthor
	TotalCount int
	Stale      bool
}

// clone はページの独立したコピーを返す。
// スナップショットが後続の変更の影響を受けないようにするため。
func (p *Page) clone() *Page {
	items := make([]model.PostWithAuthor, len(p.Items))
	copy(items, p.Items)
	return &Page{Items: items, TotalCount: p.TotalCount, Stale: p.Stale}
}

// refetchState は進行中の再取得1件を表す。
// genは再取得の世代番号で、打ち切られた再取得の結果を
// 適用時に見分けるために使う。
type refetchState struct {
	gen    uint64
	cancel context.CancelFunc
}

// PageCache はページ単位のフィードキャッシュ。
// 同一キャッシュに対する適用は単一順序で直列化される（ミューテックスで保護）。
// 複数クライアント間の一時的な不一致は許容し、無効化後の再取得で収束する。
type PageCache struct {
	mu        sync.Mutex
	pageSize  int
	nextGen   uint64
	pages     map[PageKey]*Page
	refetches map[PageKey]refetchState
}

// NewPageCache はPageCacheの新しいインスタンスを生成する。
// pageSizeは楽観的反映時の切り詰めに使用する。
func NewPageCache(pageSize int) *PageCache {
	return &PageCache{
		pageSize:  pageSize,
		pages:     make(map[PageKey]*Page),
		refetches: make(map[PageKey]refetchState),
	}
}

// Get はキャッシュされたページのコピーを返す。
// 存在しない場合は (nil, false) を返す。
func (c *PageCache) Get(key PageKey) (*Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, ok := c.pages[key]
	if !ok {
		return nil, false
	}
	return page.clone(), true
}

// Invalidate はページを再取得必須としてマークする。
// キャッシュ内容自体は次の再取得完了まで残す（表示の空白を避けるため）。
func (c *PageCache) Invalidate(key PageKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if page, ok := c.pages[key]; ok {
		page.Stale = true
	}
}

// TrackRefetch は再取得処理に紐づくキャンセル可能なコンテキストと世代番号を返す。
// 同一ページに対する先行の再取得があればキャンセルし、その世代を無効にする。
// 楽観的書き込みの開始時には cancelRefetch 経由でこの再取得も打ち切られ、
// 返された世代番号でのCompleteRefetchは適用されなくなる。
func (c *PageCache) TrackRefetch(ctx context.Context, key PageKey) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRefetch(key)
	ctx, cancel := context.WithCancel(ctx)
	c.nextGen++
	c.refetches[key] = refetchState{gen: c.nextGen, cancel: cancel}
	return ctx, c.nextGen
}

// CompleteRefetch は再取得結果をキャッシュに反映し、ページを最新としてマークする。
// genにはTrackRefetchが返した世代番号を渡す。後続の再取得や楽観的書き込みに
// 打ち切られた世代の結果は破棄され、falseを返す。コンテキストのキャンセルは
// 通知にすぎないため、適用可否は世代番号の一致で判定する。
func (c *PageCache) CompleteRefetch(key PageKey, gen uint64, items []model.PostWithAuthor, totalCount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.refetches[key]
	if !ok || state.gen != gen {
		return false
	}
	state.cancel()
	delete(c.refetches, key)

	copied := make([]model.PostWithAuthor, len(items))
	copy(copied, items)
	c.pages[key] = &Page{Items: copied, TotalCount: totalCount}
	return true
}

// cancelRefetch は進行中の再取得があれば打ち切り、その世代を無効にする。
// ロック保持中に呼ぶこと。
func (c *PageCache) cancelRefetch(key PageKey) {
	if state, ok := c.refetches[key]; ok {
		state.cancel()
		delete(c.refetches, key)
	}
}
