package ratelimit

import "context"

// RateLimiter caps dispatch throughput per delivery channel so a batch run
// cannot burst the downstream senders.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
