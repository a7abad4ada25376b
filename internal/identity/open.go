package identity

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-portal/internal/config"
)

// OpenStore builds the Store named by cfg.IdentityStore. rdb is required for
// the redis backend only.
func OpenStore(cfg *config.Config, rdb *redis.Client) (Store, error) {
	switch cfg.IdentityStore {
	case config.IdentityStoreFile, "":
		return NewFileStore(cfg.IdentityFile)
	case config.IdentityStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("identity store %q needs REDIS_URL", cfg.IdentityStore)
		}
		return NewRedisStore(rdb, cfg.DeviceID), nil
	case config.IdentityStoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown identity store %q", cfg.IdentityStore)
	}
}
