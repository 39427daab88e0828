package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoryConfig holds the sizing options for the in-process store.
type MemoryConfig struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int
	// NumShards controls lock striping. Must be greater than 0.
	NumShards int
	// TTL is the upper bound for any entry, regardless of the TTL passed to Set.
	TTL time.Duration
	// EvictionPercentage is how much of a full shard is evicted, 1-100.
	EvictionPercentage int
	// Clock decides per-entry expiry. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultMemoryConfig returns a MemoryConfig suitable for a single instance.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          64,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate checks whether the configuration values are usable.
func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cache config error in field " + e.Field + ": " + e.Message
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Store backed by a sharded sturdyc client.
type Memory struct {
	client *sturdyc.Client[memoryEntry]
	now    func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory validates cfg and builds the store.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	client := sturdyc.New[memoryEntry](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
	return &Memory{client: client, now: now}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.client.Get(key)
	if !ok {
		return nil, nil
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		m.client.Delete(key)
		return nil, nil
	}
	return entry.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.client.Set(key, entry)
	return nil
}

// Flush drops every entry.
func (m *Memory) Flush(_ context.Context) error {
	for _, key := range m.client.ScanKeys() {
		m.client.Delete(key)
	}
	return nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	return m.client.Size()
}
