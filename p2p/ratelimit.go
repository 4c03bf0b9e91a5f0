package p2p

import (
	"sync"

	"golang.org/x/time/rate"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

const (
	// DefaultRequestsPerSecond and DefaultBurst are conservative per-peer
	// caps: spec.md §4.8 requires a per-peer request rate limit but leaves
	// its value unspecified.
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 40
)

// RateLimiter enforces a per-peer token bucket over inbound requests
// (spec.md §4.8: "exceeding returns ErrorCode::RateLimited and does not
// count against channel state").
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[ndlcrypto.PeerId]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter constructs a RateLimiter allowing rps requests per second
// per peer, with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[ndlcrypto.PeerId]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether peer may send one more request right now,
// consuming a token if so.
func (l *RateLimiter) Allow(peer ndlcrypto.PeerId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[peer]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[peer] = lim
	}
	return lim.Allow()
}

// Forget drops a peer's bucket, e.g. once it disconnects, so long-lived
// nodes don't accumulate one limiter per ever-seen peer forever.
func (l *RateLimiter) Forget(peer ndlcrypto.PeerId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, peer)
}
