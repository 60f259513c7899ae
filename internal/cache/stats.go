package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/emrgen/revision/internal/model"
)

// ErrCacheMiss is returned when the cache holds no entry for a key.
var ErrCacheMiss = errors.New("cache miss")

// StatsCache caches proposal version stats between appends.
type StatsCache interface {
	// GetStats gets the stats of a proposal from the cache.
	GetStats(ctx context.Context, proposalID string) (*model.VersionStats, error)
	// SetStats stores the stats of a proposal.
	SetStats(ctx context.Context, proposalID string, stats *model.VersionStats) error
	// InvalidateStats drops the cached stats of a proposal.
	InvalidateStats(ctx context.Context, proposalID string) error
}

func statsKey(proposalID string) string {
	return "proposal:" + proposalID + ":version-stats"
}

var _ StatsCache = (*Nop)(nil)

// Nop never holds anything.
type Nop struct{}

func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) GetStats(ctx context.Context, proposalID string) (*model.VersionStats, error) {
	return nil, ErrCacheMiss
}

func (n *Nop) SetStats(ctx context.Context, proposalID string, stats *model.VersionStats) error {
	return nil
}

func (n *Nop) InvalidateStats(ctx context.Context, proposalID string) error {
	return nil
}

var _ StatsCache = (*Memory)(nil)

type memoryEntry struct {
	stats   model.VersionStats
	expires time.Time
}

// Memory is an in-process StatsCache for single node deployments and tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) GetStats(ctx context.Context, proposalID string) (*model.VersionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[statsKey(proposalID)]
	if !ok || time.Now().After(entry.expires) {
		return nil, ErrCacheMiss
	}

	stats := entry.stats
	return &stats, nil
}

func (m *Memory) SetStats(ctx context.Context, proposalID string, stats *model.VersionStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[statsKey(proposalID)] = memoryEntry{stats: *stats, expires: time.Now().Add(m.ttl)}
	return nil
}

func (m *Memory) InvalidateStats(ctx context.Context, proposalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, statsKey(proposalID))
	return nil
}
