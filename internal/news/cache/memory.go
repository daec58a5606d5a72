package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/portal/internal/model"
)

type memoryEntry struct {
	resp      *model.CachedResponse
	expiresAt time.Time
}

// Memory はプロセス内のTTL付きキャッシュ。並行アクセスに安全。
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption はMemoryの設定オプション。
type MemoryOption func(*Memory)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory はMemoryを生成する。
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get は有効期限内のエントリを返す。期限切れのエントリはその場で削除する。
func (m *Memory) Get(_ context.Context, key string) (*model.CachedResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.resp, true
}

// Set はエントリを保存する。既存のエントリは置き換える。
func (m *Memory) Set(_ context.Context, key string, resp *model.CachedResponse) {
	if resp == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		resp:      resp,
		expiresAt: m.now().Add(m.ttl),
	}
}

// Len は保持しているエントリ数を返す。期限切れで未削除のものも含む。
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
