package cache

import (
	"context"
	"time"
)

// revokedPrefix is the Redis key prefix for revoked token IDs.
const revokedPrefix = "auth:revoked:"

// RevokeToken records a token ID as revoked until the token would have
// expired anyway. After that the entry is dropped by Redis TTL.
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		// Already expired, nothing to revoke.
		return nil
	}
	return c.client.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

// IsTokenRevoked reports whether the token ID is in the revocation set.
// A Redis error counts as not revoked: availability of chat wins over
// instant logout propagation.
func (c *Cache) IsTokenRevoked(ctx context.Context, tokenID string) bool {
	n, err := c.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false
	}
	return n > 0
}
