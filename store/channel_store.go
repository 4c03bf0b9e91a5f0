package store

import (
	"fmt"

	"go.etcd.io/bbolt"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// ChannelState mirrors spec.md §3's channel state enum.
type ChannelState string

const (
	ChannelStateOpening  ChannelState = "Opening"
	ChannelStateActive   ChannelState = "Active"
	ChannelStateClosing  ChannelState = "Closing"
	ChannelStateDisputed ChannelState = "Disputed"
	ChannelStateClosed   ChannelState = "Closed"
)

// ChannelRecord is the persisted view of a payment channel (spec.md §3
// "Channel"). The channel package owns the state machine; this is only its
// durable representation.
type ChannelRecord struct {
	ChannelID       ndlcrypto.Hash      `cbor:"channel_id"`
	ParticipantA    ndlcrypto.PeerId    `cbor:"participant_a"`
	ParticipantB    ndlcrypto.PeerId    `cbor:"participant_b"`
	Capacity        uint64              `cbor:"capacity"`
	BalanceA        uint64              `cbor:"balance_a"`
	BalanceB        uint64              `cbor:"balance_b"`
	Nonce           uint64              `cbor:"nonce"`
	State           ChannelState        `cbor:"state"`
	LastUpdateSig   ndlcrypto.Signature `cbor:"last_update_sig"`
	DisputeDeadline int64               `cbor:"dispute_deadline"`
}

// PutChannelNew inserts a brand-new channel record, idempotently: if a
// record already exists for this channel_id it is left untouched and no
// error is returned (spec.md §4.5 "Open ... idempotent on channel_id").
func (d *DB) PutChannelNew(rec ChannelRecord) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		if b.Get(rec.ChannelID[:]) != nil {
			return nil
		}
		enc, err := wire.EncodeCanonical(rec)
		if err != nil {
			return fmt.Errorf("encode channel: %w", err)
		}
		return b.Put(rec.ChannelID[:], enc)
	})
}

// GetChannel looks up a channel record by id.
func (d *DB) GetChannel(id ndlcrypto.Hash) (ChannelRecord, bool, error) {
	var rec ChannelRecord
	found := false
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketChannels).Get(id[:])
		if v == nil {
			return nil
		}
		found = true
		raw := make([]byte, len(v))
		copy(raw, v)
		return wire.DecodeCanonical(raw, &rec)
	})
	if err != nil {
		return ChannelRecord{}, false, fmt.Errorf("store: get channel: %w", err)
	}
	return rec, found, nil
}

// CASUpdateChannel replaces the stored record for next.ChannelID only if
// the currently stored record's (State, Nonce) matches (expectState,
// expectNonce). This is the single serialization point the channel package
// relies on for at-most-once nonce application (spec.md §4.5).
func (d *DB) CASUpdateChannel(expectState ChannelState, expectNonce uint64, next ChannelRecord) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		v := b.Get(next.ChannelID[:])
		if v == nil {
			return newErr(CodeNotFound, "no such channel")
		}
		var cur ChannelRecord
		raw := make([]byte, len(v))
		copy(raw, v)
		if err := wire.DecodeCanonical(raw, &cur); err != nil {
			return fmt.Errorf("decode channel: %w", err)
		}
		if cur.State != expectState || cur.Nonce != expectNonce {
			return newErr(CodeConflict, fmt.Sprintf("expected state=%s nonce=%d, found state=%s nonce=%d", expectState, expectNonce, cur.State, cur.Nonce))
		}
		enc, err := wire.EncodeCanonical(next)
		if err != nil {
			return fmt.Errorf("encode channel: %w", err)
		}
		return b.Put(next.ChannelID[:], enc)
	})
}
