package cache

import (
	"strings"
	"sync"
	"time"
)

// entry は値と有効期限を保持する。
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore はプロセス内のTTL付きキーバリューキャッシュ。
// バックグラウンドのジャニターが期限切れエントリを定期的に削除する。
type MemoryStore struct {
	defaultTTL      time.Duration
	cleanupInterval time.Duration

	mu      sync.RWMutex
	entries map[string]entry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore は新しいMemoryStoreを生成する。
// defaultTTLはSetでttl<=0が指定された場合に使用される。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]entry),
		stopCh:          make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Get はキーに対応する値を返す。存在しない・期限切れの場合はok=falseを返す。
// 期限切れエントリの物理削除はジャニターに任せる。
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set は値をTTL付きで格納する。
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	s.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
}

// Delete はキーを削除する。
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// DeleteByPrefix は指定プレフィックスに一致する全キーを削除する。
func (s *MemoryStore) DeleteByPrefix(prefix string) {
	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Len は現在格納されているエントリ数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は有効期限を過ぎたエントリを削除する。
func (s *MemoryStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
