package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the key-value backend used by the caching layer.
// Get returns nil and no error on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Flush(ctx context.Context) error
}

// Supported values for Options.Driver.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
	DriverNone   = "none"
)

// Options selects and configures a Store.
type Options struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
	TTL           time.Duration
}

// NewStore builds the Store named by opts.Driver.
func NewStore(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverRedis:
		return New(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.Namespace), nil
	case DriverMemory:
		cfg := DefaultMemoryConfig()
		if opts.TTL > 0 {
			cfg.TTL = opts.TTL
		}
		return NewMemory(cfg)
	case DriverNone, "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}

// Noop is a Store that never holds anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) {
	return nil, nil
}

func (Noop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Noop) Flush(context.Context) error {
	return nil
}
