package state

import (
	"fmt"

	"github.com/pitangainnovare/scielo-usage-counter/internal/config"
)

// Open builds the configured Store. MySQL wins when a DSN is set;
// otherwise the embedded BoltDB store is used. Both implementations
// also satisfy Locker.
func Open(cfg *config.Config) (Store, Locker, error) {
	if cfg.MySQLDSN != "" {
		store, err := NewMySQLStore(cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mysql store: %w", err)
		}
		return store, store, nil
	}

	store, err := NewBoltStore(cfg.BoltPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	return store, store, nil
}
