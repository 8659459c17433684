package cache

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/chirp/internal/model"
)

// ProvisionalIDPrefix は暫定投稿の識別子に付与される接頭辞。
// この識別子はサーバーには送信されず、無効化後の再取得で
// サーバー採番のIDに置き換わる。
const ProvisionalIDPrefix = "pending-"

// ErrTxFinished は完了済みトランザクションの再利用時に返される。
var ErrTxFinished = errors.New("トランザクションはすでに完了しています")

// NewProvisionalPost は楽観的反映用の暫定投稿を合成する。
// authorには呼び出し元ユーザー自身のキャッシュ済みプロフィールを渡す。
func NewProvisionalPost(author model.Author, content string) model.PostWithAuthor {
	now := time.Now().UTC()
	return model.PostWithAuthor{
		Post: model.Post{
			ID:        ProvisionalIDPrefix + uuid.NewString(),
			UserID:    author.ID,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Author: author,
	}
}

// CreateTx は投稿作成の楽観的更新を1件分管理するトランザクション。
// 手順は (1) 進行中の再取得のキャンセルとスナップショット取得、
// (2) 暫定投稿の反映、(3) サーバー応答に応じたCommitまたはRollback。
// CommitとRollbackはどちらも最後にページを無効化する。
type CreateTx struct {
	cache    *PageCache
	key      PageKey
	snapshot *Page
	hadPage  bool
	done     bool
}

// BeginCreate は作成用トランザクションを開始する。
// 対象ページに対する進行中の再取得を打ち切り、現在のキャッシュ内容を
// スナップショットとして保存する。
func (c *PageCache) BeginCreate(key PageKey) *CreateTx {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRefetch(key)

	tx := &CreateTx{cache: c, key: key}
	if page, ok := c.pages[key]; ok {
		tx.snapshot = page.clone()
		tx.hadPage = true
	}
	return tx
}

// Stage は暫定投稿をページ先頭に挿入する。
// ページはページサイズに切り詰められ、件数は1増える。
// 対象ページが未キャッシュの場合は何もしない（反映先がないため）。
func (t *CreateTx) Stage(provisional model.PostWithAuthor) error {
	if t.done {
		return ErrTxFinished
	}

	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()

	page, ok := t.cache.pages[t.key]
	if !ok {
		return nil
	}

	items := make([]model.PostWithAuthor, 0, len(page.Items)+1)
	items = append(items, provisional)
	items = append(items, page.Items...)
	if len(items) > t.cache.pageSize {
		items = items[:t.cache.pageSize]
	}
	page.Items = items
	page.TotalCount++
	return nil
}

// Commit はサーバー側の作成成功を確定する。
// スナップショットを破棄し、サーバー採番の値で暫定投稿が置き換わるよう
// ページを無条件に無効化する。
func (t *CreateTx) Commit() error {
	if t.done {
		return ErrTxFinished
	}
	t.done = true
	t.snapshot = nil

	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()

	if page, ok := t.cache.pages[t.key]; ok {
		page.Stale = true
	}
	return nil
}

// Rollback はサーバー側の作成失敗を受けてキャッシュを巻き戻す。
// ページ内容は開始時のスナップショットと完全に一致する状態に復元され、
// その後に無効化される。
func (t *CreateTx) Rollback() error {
	if t.done {
		return ErrTxFinished
	}
	t.done = true

	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()

	if t.hadPage {
		restored := t.snapshot.clone()
		restored.Stale = true
		t.cache.pages[t.key] = restored
	} else {
		delete(t.cache.pages, t.key)
	}
	t.snapshot = nil
	return nil
}
