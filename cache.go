package notify

import (
	"context"
	"fmt"

	"github.com/autom8ter/notify/store"
)

// ConfigCache caches each entity's notification configs in the shared store under
// the key `entity:<name>|notif configs`. The cached value is the camel-cased json
// array of configs, or the empty string for "entity exists, no configs".
type ConfigCache struct {
	store store.Store
}

// NewConfigCache returns a config cache over the given store
func NewConfigCache(s store.Store) *ConfigCache {
	return &ConfigCache{store: s}
}

func configCacheKey(entity string) string {
	return fmt.Sprintf("entity:%s|notif configs", entity)
}

// Get returns the cached configs for the entity. ok is false on a cache miss; a
// cached empty string yields ok=true with zero configs.
func (c *ConfigCache) Get(ctx context.Context, entity string) ([]NotifConfig, bool, error) {
	raw, ok, err := c.store.Get(ctx, configCacheKey(entity))
	if err != nil || !ok {
		return nil, false, err
	}
	configs, err := DecodeNotifConfigs(raw)
	if err != nil {
		return nil, false, err
	}
	return configs, true, nil
}

// SetRaw caches the entity's configs in their wire form. The raw value is stored
// as-is so that metadata-change events round-trip without re-encoding.
func (c *ConfigCache) SetRaw(ctx context.Context, entity, raw string) error {
	return c.store.Set(ctx, configCacheKey(entity), raw)
}

// Set caches the entity's configs
func (c *ConfigCache) Set(ctx context.Context, entity string, configs []NotifConfig) error {
	return c.SetRaw(ctx, entity, EncodeNotifConfigs(configs))
}

// Del evicts the entity's configs
func (c *ConfigCache) Del(ctx context.Context, entity string) error {
	return c.store.Del(ctx, configCacheKey(entity))
}
