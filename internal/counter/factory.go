package counter

import (
	"fmt"

	"github.com/yzRobo/mintcanvas-server/pkg/config"
)

// NewStore creates a counter store based on the configured type
func NewStore(cfg *config.CounterConfig) (Store, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisStore(cfg)
	case "bolt":
		return NewBoltStore(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unsupported counter store type: %s", cfg.Type)
	}
}
