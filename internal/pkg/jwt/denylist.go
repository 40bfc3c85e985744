package jwt

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids in Redis until the token would have
// expired anyway.
type Denylist struct {
	client redis.Cmdable
	prefix string
	clock  clocker
}

// NewDenylist builds a denylist storing keys as "<prefix><jti>".
func NewDenylist(client redis.Cmdable, prefix string, clock clocker) *Denylist {
	if prefix == "" {
		prefix = "jwt:revoked:"
	}
	return &Denylist{client: client, prefix: prefix, clock: clock}
}

// Revoke marks jti as revoked. Revoking an already revoked or expired token
// succeeds without error.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.clock.Now())
	if ttl <= 0 {
		return nil
	}

	return d.client.Set(ctx, d.prefix+jti, 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+jti).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}
