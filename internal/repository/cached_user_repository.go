package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"usersapi/internal/cache"
	"usersapi/internal/model"
)

// DefaultCacheTTL bounds how stale a cached list result can get.
const DefaultCacheTTL = time.Hour

const defaultCacheScope = "users:find_all"

// Cache lookup outcomes reported to a CacheRecorder.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// CacheRecorder receives one outcome per cached lookup.
type CacheRecorder interface {
	RecordCacheLookup(result string)
}

// CacheConfig tunes a CachedUserRepository.
type CacheConfig struct {
	TTL      time.Duration
	Scope    string
	Logger   *slog.Logger
	Recorder CacheRecorder
}

// CachedUserRepository decorates a UserRepository with a read-through cache
// for FindAll. Any successful write flushes the whole cache, so a list result
// is never served past the next mutation (or the TTL).
//
// Cache failures never fail a call: they are logged and the base repository
// answers instead.
type CachedUserRepository struct {
	base     UserRepository
	store    cache.Store
	ttl      time.Duration
	scope    string
	log      *slog.Logger
	recorder CacheRecorder
}

var _ UserRepository = (*CachedUserRepository)(nil)

// NewCachedUserRepository wraps base with store.
func NewCachedUserRepository(base UserRepository, store cache.Store, cfg CacheConfig) *CachedUserRepository {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultCacheScope
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CachedUserRepository{
		base:     base,
		store:    store,
		ttl:      cfg.TTL,
		scope:    cfg.Scope,
		log:      cfg.Logger,
		recorder: cfg.Recorder,
	}
}

// FindAll serves from the cache when possible, otherwise queries base and stores the result.
func (c *CachedUserRepository) FindAll(ctx context.Context, filters Filters) ([]model.User, error) {
	key := cache.FilterKey(c.scope, filters)

	if users, ok := c.lookup(ctx, key); ok {
		return users, nil
	}

	users, err := c.base.FindAll(ctx, filters)
	if err != nil {
		return nil, err
	}

	payload, err := msgpack.Marshal(users)
	if err != nil {
		c.log.WarnContext(ctx, "cache encode failed", "key", key, "err", err)
		return users, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		c.log.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
	return users, nil
}

func (c *CachedUserRepository) lookup(ctx context.Context, key string) ([]model.User, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		c.record(CacheError)
		c.log.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		return nil, false
	}
	if data == nil {
		c.record(CacheMiss)
		return nil, false
	}

	users := make([]model.User, 0)
	if err := msgpack.Unmarshal(data, &users); err != nil {
		c.record(CacheError)
		c.log.WarnContext(ctx, "cache decode failed", "key", key, "err", err)
		return nil, false
	}
	c.record(CacheHit)
	return users, true
}

// FindByID is not cached.
func (c *CachedUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return c.base.FindByID(ctx, id)
}

func (c *CachedUserRepository) Save(ctx context.Context, user *model.User) error {
	if err := c.base.Save(ctx, user); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachedUserRepository) Delete(ctx context.Context, id uint) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachedUserRepository) invalidate(ctx context.Context) {
	if err := c.store.Flush(ctx); err != nil {
		c.log.WarnContext(ctx, "cache flush failed", "err", err)
	}
}

func (c *CachedUserRepository) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(result)
	}
}
