// Package cache stores encoded solve results. Solves are deterministic for a
// given netlist and configuration, so a hit can be served without solving.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/edp1096/dcop/pkg/analysis"
)

type Cache interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key derives a cache key from everything that determines a result.
func Key(kind, netlist string, cfg analysis.Config, extra ...any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%+v", kind, netlist, cfg)
	for _, e := range extra {
		fmt.Fprintf(h, "\x00%v", e)
	}
	return "dcop:" + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Memory is an in-process cache bounded by entry count.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

func NewMemory(maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evict()
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// evict drops expired entries, or an arbitrary one if none has expired.
func (m *Memory) evict() {
	now := m.now()
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	if len(m.entries) < m.maxEntries {
		return
	}
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
