package p2p

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// DefaultManifestCacheSize bounds the "cached" half of spec.md §4.6 step 1
// ("Requester fetches the manifest (cached or via DHT)").
const DefaultManifestCacheSize = 4096

// DHT is this node's view of the network's content-routing layer
// (spec.md §4.8): a table of which peers provide which content hashes,
// plus a bounded cache of manifests seen via announcements. It is not a
// full Kademlia implementation — spec.md only asks for provider lookup
// and announcement publishing, not a general distributed routing table.
type DHT struct {
	mu        sync.Mutex
	providers map[ndlcrypto.Hash]map[ndlcrypto.PeerId]struct{}
	manifests *lru.Cache[ndlcrypto.Hash, content.Manifest]
}

// NewDHT constructs an empty DHT with the default manifest cache size.
func NewDHT() *DHT {
	cache, err := lru.New[ndlcrypto.Hash, content.Manifest](DefaultManifestCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the constant above.
		panic(err)
	}
	return &DHT{providers: make(map[ndlcrypto.Hash]map[ndlcrypto.PeerId]struct{}), manifests: cache}
}

// Announce records provider as a source for hash and caches its manifest,
// per spec.md §4.3's "announces the manifest to the DHT if visibility !=
// Private".
func (d *DHT) Announce(hash ndlcrypto.Hash, provider ndlcrypto.PeerId, m content.Manifest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.providers[hash]
	if !ok {
		set = make(map[ndlcrypto.PeerId]struct{})
		d.providers[hash] = set
	}
	set[provider] = struct{}{}
	d.manifests.Add(hash, m)
}

// Withdraw removes provider as a source for hash, per a visibility change
// to Private.
func (d *DHT) Withdraw(hash ndlcrypto.Hash, provider ndlcrypto.PeerId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.providers[hash]
	if !ok {
		return
	}
	delete(set, provider)
	if len(set) == 0 {
		delete(d.providers, hash)
	}
}

// Providers returns every known provider of hash.
func (d *DHT) Providers(hash ndlcrypto.Hash) []ndlcrypto.PeerId {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.providers[hash]
	out := make([]ndlcrypto.PeerId, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// CachedManifest returns a previously-announced manifest without a
// network round trip, if one is cached.
func (d *DHT) CachedManifest(hash ndlcrypto.Hash) (content.Manifest, bool) {
	return d.manifests.Get(hash)
}
