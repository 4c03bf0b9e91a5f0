package store

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// PutManifest inserts or overwrites a manifest keyed by its content hash.
// DB implements content.ManifestStore structurally.
func (d *DB) PutManifest(m content.Manifest) error {
	b, err := wire.EncodeCanonical(m)
	if err != nil {
		return fmt.Errorf("store: encode manifest: %w", err)
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketManifests).Put(m.Hash[:], b)
	})
}

// GetManifest looks up a manifest by content hash.
func (d *DB) GetManifest(hash ndlcrypto.Hash) (content.Manifest, bool, error) {
	var m content.Manifest
	found := false
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketManifests).Get(hash[:])
		if v == nil {
			return nil
		}
		found = true
		raw := make([]byte, len(v))
		copy(raw, v)
		return wire.DecodeCanonical(raw, &m)
	})
	if err != nil {
		return content.Manifest{}, false, fmt.Errorf("store: get manifest: %w", err)
	}
	return m, found, nil
}

// IncrementTotalQueries bumps economics.total_queries by one and persists
// the result, without touching the manifest's signature (total_queries is
// excluded from the signed view; see content.Sign).
func (d *DB) IncrementTotalQueries(hash ndlcrypto.Hash) (content.Manifest, error) {
	var m content.Manifest
	err := d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketManifests)
		v := b.Get(hash[:])
		if v == nil {
			return newErr(CodeNotFound, "no such manifest")
		}
		raw := make([]byte, len(v))
		copy(raw, v)
		if err := wire.DecodeCanonical(raw, &m); err != nil {
			return fmt.Errorf("decode manifest: %w", err)
		}
		m.Economics.TotalQueries++
		enc, err := wire.EncodeCanonical(m)
		if err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		return b.Put(hash[:], enc)
	})
	if err != nil {
		return content.Manifest{}, err
	}
	return m, nil
}

// DeleteManifest removes a manifest. Missing keys are not an error.
func (d *DB) DeleteManifest(hash ndlcrypto.Hash) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketManifests).Delete(hash[:])
	})
}
