package storage

import "context"

type ctxKey string

const configKey ctxKey = "storage.config"

// WithConfig stores the storage configuration on the provided context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext extracts the storage configuration from context.
func ConfigFromContext(ctx context.Context) (*Config, bool) {
	if ctx == nil {
		return nil, false
	}
	val := ctx.Value(configKey)
	if cfg, ok := val.(*Config); ok && cfg != nil {
		return cfg, true
	}
	return nil, false
}
