// internal/app/auth.go
package app

import (
	"context"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/auth"
	"github.com/shrimpsizemoose/logbook/internal/store"
)

// NewAuth builds the auth provider. Sessions live in redis when auth.redis_url is
// set and in the document store otherwise.
func NewAuth(ctx context.Context, config *Config, s store.Store) (*auth.Provider, error) {
	var sessions auth.Sessions
	if config.Auth.RedisURL != "" {
		rs, err := auth.DialRedisSessions(ctx, config.Auth.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis sessions: %w", err)
		}
		logger.Info.Printf("Keeping sessions in redis")
		sessions = rs
	} else {
		sessions = auth.NewStoreSessions(s)
	}

	provider, err := auth.NewProvider(s, sessions, auth.Config{
		Secret:     []byte(config.Auth.JWTSecret),
		Issuer:     config.Auth.Issuer,
		TTL:        config.TokenTTL(),
		BcryptCost: config.Auth.BcryptCost,
	})
	if err != nil {
		sessions.Close()
		return nil, err
	}
	return provider, nil
}
