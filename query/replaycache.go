package query

import (
	"sync"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// DefaultReplayWindow is the at-most-once response window spec.md §9 Open
// Question (b) leaves unspecified a value for: if a requester retries a
// QueryRequest at a (channel_id, nonce) pair this node already committed a
// channel update for, the cached response is re-served instead of the
// channel update being (rejected as a nonce replay, or worse, double
// applied). 60s covers ordinary request-timeout retries without keeping
// every served response alive indefinitely.
const DefaultReplayWindow = 60 * time.Second

type replayKey struct {
	channelID ndlcrypto.Hash
	nonce     uint64
}

type replayEntry struct {
	response  wire.QueryResponsePayload
	expiresAt time.Time
}

// ReplayCache remembers the response this node already committed for a
// given (channel_id, nonce), so a retried request in the same window is
// re-served rather than re-charged.
type ReplayCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[replayKey]replayEntry
}

// NewReplayCache constructs a ReplayCache with the given retention window.
func NewReplayCache(ttl time.Duration) *ReplayCache {
	return &ReplayCache{ttl: ttl, entries: make(map[replayKey]replayEntry)}
}

// Get returns the cached response for (channelID, nonce), if one is still
// within its retention window.
func (c *ReplayCache) Get(channelID ndlcrypto.Hash, nonce uint64, now time.Time) (wire.QueryResponsePayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[replayKey{channelID, nonce}]
	if !ok || now.After(e.expiresAt) {
		return wire.QueryResponsePayload{}, false
	}
	return e.response, true
}

// Put remembers resp as the committed response for (channelID, nonce) and
// opportunistically evicts anything else that has expired.
func (c *ReplayCache) Put(channelID ndlcrypto.Hash, nonce uint64, resp wire.QueryResponsePayload, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[replayKey{channelID, nonce}] = replayEntry{response: resp, expiresAt: now.Add(c.ttl)}
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
