package store

import (
	"fmt"

	"go.etcd.io/bbolt"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// PeerRecord is the persisted view of a known peer (spec.md §3 "Peer
// record"). Reputation is a float accumulator owned by the p2p package;
// the store only persists whatever value it is given.
type PeerRecord struct {
	PeerID     ndlcrypto.PeerId `cbor:"peer_id"`
	Addresses  []string         `cbor:"addresses"`
	Protocols  []string         `cbor:"protocols"`
	LastSeen   int64            `cbor:"last_seen"`
	Reputation float64          `cbor:"reputation"`
}

// PutPeer inserts or overwrites a peer record.
func (d *DB) PutPeer(p PeerRecord) error {
	b, err := wire.EncodeCanonical(p)
	if err != nil {
		return fmt.Errorf("store: encode peer: %w", err)
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPeers).Put(p.PeerID[:], b)
	})
}

// GetPeer looks up a peer record by peer id.
func (d *DB) GetPeer(id ndlcrypto.PeerId) (PeerRecord, bool, error) {
	var p PeerRecord
	found := false
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPeers).Get(id[:])
		if v == nil {
			return nil
		}
		found = true
		raw := make([]byte, len(v))
		copy(raw, v)
		return wire.DecodeCanonical(raw, &p)
	})
	if err != nil {
		return PeerRecord{}, false, fmt.Errorf("store: get peer: %w", err)
	}
	return p, found, nil
}

// ListPeers returns every known peer record. Intended for small peer
// tables (spec.md does not describe a peer-count ceiling, but a node's
// peer set is bounded by its own connection limits).
func (d *DB) ListPeers() ([]PeerRecord, error) {
	var out []PeerRecord
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPeers).ForEach(func(k, v []byte) error {
			var p PeerRecord
			raw := make([]byte, len(v))
			copy(raw, v)
			if err := wire.DecodeCanonical(raw, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list peers: %w", err)
	}
	return out, nil
}

// DeletePeer removes a peer record. Missing keys are not an error.
func (d *DB) DeletePeer(id ndlcrypto.PeerId) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPeers).Delete(id[:])
	})
}
