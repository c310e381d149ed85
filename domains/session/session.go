package session

import (
	"context"
	"time"
)

// ITokenBlacklist is the revoked-session store shared by every server.
type ITokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type RevokeRequest struct {
	Token string `json:"token"`
}
