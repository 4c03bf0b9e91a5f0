package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// blobCache is an in-process LRU over recently read content blobs
// (spec.md §6: "cache/ transient LRU"). It lives in memory only; nothing is
// written to the cache/ directory that Open creates. A miss falls through to
// the content/ directory; the cache never holds data that isn't also
// durably stored there.
type blobCache struct {
	inner *lru.Cache[ndlcrypto.Hash, []byte]
}

func newBlobCache(size int) (*blobCache, error) {
	c, err := lru.New[ndlcrypto.Hash, []byte](size)
	if err != nil {
		return nil, err
	}
	return &blobCache{inner: c}, nil
}

func (c *blobCache) get(hash ndlcrypto.Hash) ([]byte, bool) {
	return c.inner.Get(hash)
}

func (c *blobCache) put(hash ndlcrypto.Hash, data []byte) {
	c.inner.Add(hash, data)
}

func (c *blobCache) remove(hash ndlcrypto.Hash) {
	c.inner.Remove(hash)
}
