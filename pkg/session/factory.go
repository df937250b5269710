package session

import (
	"fmt"

	"github.com/caremesh-ai/triage/pkg/common/config"
	"github.com/caremesh-ai/triage/pkg/common/database"
	"github.com/caremesh-ai/triage/pkg/common/logger"
)

// NewStore selects the session backend from configuration. The core never
// depends on which one is active.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		logger.Log.Info("Using in-memory session store")
		return NewMemoryStore(), nil
	case "redis":
		client := database.GetRedis()
		logger.Log.Info("Using Redis session store")
		return NewRedisStore(client, cfg.SessionTTL), nil
	case "postgres":
		db, err := database.GetPostgres()
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(db)
		if err := store.AutoMigrate(); err != nil {
			return nil, err
		}
		logger.Log.Info("Using Postgres session store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
