package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// CacheKey is the versioned key the chat state is stored under.
const CacheKey = "sx_chat_state_v1"

// DefaultCacheLimit is the number of most recent turns kept on write.
const DefaultCacheLimit = 80

// CacheState is the persisted chat state.
type CacheState struct {
	Turns     []Turn `json:"turns"`
	UpdatedAt int64  `json:"updated_at"` // epoch ms
}

// Updated returns UpdatedAt as a time.
func (s CacheState) Updated() time.Time {
	return time.UnixMilli(s.UpdatedAt)
}

// Cache is durable local storage for the normal-session turn list.
type Cache interface {
	// Load returns the stored state, or nil when nothing usable is stored.
	Load() (*CacheState, error)
	// Save replaces the stored state with the tail of turns.
	Save(turns []Turn) error
	// Clear removes the stored state.
	Clear() error
}

// encodeState caps turns to limit and serialises the state.
func encodeState(turns []Turn, limit int, now time.Time) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.Marshal(CacheState{Turns: turns, UpdatedAt: now.UnixMilli()})
	if err != nil {
		return nil, errors.Wrap(err, "encode chat state")
	}
	return data, nil
}

// decodeState parses a stored value. Corrupt values decode to nil so the
// caller falls back to the next source.
func decodeState(data []byte) *CacheState {
	if len(data) == 0 {
		return nil
	}
	var st CacheState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	return &st
}

// MemoryCache is an in-process Cache, used for --ephemeral runs and tests.
type MemoryCache struct {
	mu    sync.Mutex
	value []byte
	limit int
	now   func() time.Time

	writes int
}

// NewMemoryCache creates an empty MemoryCache capped to limit turns.
func NewMemoryCache(limit int) *MemoryCache {
	return &MemoryCache{limit: limit, now: time.Now}
}

// Load implements Cache.
func (m *MemoryCache) Load() (*CacheState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeState(m.value), nil
}

// Save implements Cache.
func (m *MemoryCache) Save(turns []Turn) error {
	data, err := encodeState(turns, m.limit, m.now())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = data
	m.writes++
	return nil
}

// Clear implements Cache.
func (m *MemoryCache) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
	return nil
}

// WriteCount returns the number of Save calls so far.
func (m *MemoryCache) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
