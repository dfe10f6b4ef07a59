// Package monitor はサイト監視のコアを提供する。
// サイトごとのモニター、配信タスク、スーパーバイザーを含む。
package monitor

import "sync"

// Registry は無効と判定されたWebhookエンドポイントの共有レジストリ。
// 追記専用で、モニターは自身が確認済みの位置から先だけを読む。
// 書き込みは配信タスク、読み取りは各モニターのティック先頭で行われる。
type Registry struct {
	mu   sync.RWMutex
	urls []string
	seen map[string]struct{}
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		seen: make(map[string]struct{}),
	}
}

// Add はURLをレジストリに登録する。
// 既に登録済みの場合は何もせずfalseを返す。
func (r *Registry) Add(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[url]; ok {
		return false
	}
	r.seen[url] = struct{}{}
	r.urls = append(r.urls, url)
	return true
}

// Since は指定位置以降に登録されたURLと、新しい確認済み位置を返す。
// 返されるスライスは呼び出し側が保持してよいコピー。
func (r *Registry) Since(index int) ([]string, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= len(r.urls) {
		return nil, len(r.urls)
	}
	added := make([]string, len(r.urls)-index)
	copy(added, r.urls[index:])
	return added, len(r.urls)
}

// Len は登録済みURL数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}
