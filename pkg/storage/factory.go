package storage

import (
	"context"
	"fmt"
)

// Factory is a function that creates a Store instance. The indirection
// lets deployments substitute a different backend (e.g. database-backed)
// without touching callers.
type Factory func(ctx context.Context, cfg *Config) (Store, error)

// DefaultFactory is the store factory used by NewStore. The local
// file-backed store installs itself here.
var DefaultFactory Factory = NewLocalStore

// NewStore creates a capture store using the current DefaultFactory.
// Configuration is validated before the store is created.
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	if DefaultFactory == nil {
		return nil, fmt.Errorf("no storage factory registered")
	}

	store, err := DefaultFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture store: %w", err)
	}
	return store, nil
}
