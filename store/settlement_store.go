package store

import (
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// DistributionRecord is the persisted view of a QueuedDistribution
// (spec.md §3). BatchID is nil until the batcher successfully anchors it.
type DistributionRecord struct {
	ID         uuid.UUID        `cbor:"id"`
	Recipient  ndlcrypto.PeerId `cbor:"recipient"`
	Amount     uint64           `cbor:"amount"`
	ChannelID  ndlcrypto.Hash   `cbor:"channel_id"`
	Nonce      uint64           `cbor:"nonce"`
	EnqueuedAt int64            `cbor:"enqueued_at"`
	BatchID    *ndlcrypto.Hash  `cbor:"batch_id,omitempty"`
	Confirmed  bool             `cbor:"confirmed"`
	Failed     bool             `cbor:"failed"`
}

// SettlementStatus is the four-state view of a distribution row's progress
// toward settlement (SPEC_FULL §12.2 / original_source types.rs
// SettlementStatus), derived from batch_id/confirmed/failed rather than
// stored directly.
type SettlementStatus string

const (
	SettlementPending    SettlementStatus = "Pending"
	SettlementProcessing SettlementStatus = "Processing"
	SettlementConfirmed  SettlementStatus = "Confirmed"
	SettlementFailed     SettlementStatus = "Failed"
)

// Status derives rec's SettlementStatus: Confirmed once the backend has
// confirmed the batch, Failed if the last batch attempt for this row came
// back ConfirmFailed and it has not yet been re-stamped into a new batch,
// Processing while it is stamped with a batch id awaiting confirmation,
// and Pending otherwise.
func (rec DistributionRecord) Status() SettlementStatus {
	switch {
	case rec.Confirmed:
		return SettlementConfirmed
	case rec.Failed:
		return SettlementFailed
	case rec.BatchID != nil:
		return SettlementProcessing
	default:
		return SettlementPending
	}
}

// EnqueueDistribution appends a new distribution row.
func (d *DB) EnqueueDistribution(rec DistributionRecord) error {
	enc, err := wire.EncodeCanonical(rec)
	if err != nil {
		return fmt.Errorf("store: encode distribution: %w", err)
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlementQueue).Put(rec.ID[:], enc)
	})
}

// GetPendingDistributions returns every distribution row not yet assigned
// to a batch (BatchID == nil), in no particular order.
func (d *DB) GetPendingDistributions() ([]DistributionRecord, error) {
	var out []DistributionRecord
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlementQueue).ForEach(func(k, v []byte) error {
			var rec DistributionRecord
			raw := make([]byte, len(v))
			copy(raw, v)
			if err := wire.DecodeCanonical(raw, &rec); err != nil {
				return err
			}
			if rec.BatchID == nil {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: get pending distributions: %w", err)
	}
	return out, nil
}

// Status looks up id's row and returns its derived SettlementStatus. The
// bool return is false if no such row exists.
func (d *DB) Status(id uuid.UUID) (SettlementStatus, bool, error) {
	var rec DistributionRecord
	found := false
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSettlementQueue).Get(id[:])
		if v == nil {
			return nil
		}
		raw := make([]byte, len(v))
		copy(raw, v)
		if err := wire.DecodeCanonical(raw, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("store: status: %w", err)
	}
	if !found {
		return "", false, nil
	}
	return rec.Status(), true, nil
}

// PendingTotal sums Amount over every distribution row not yet assigned to
// a batch, the get_pending_total() operation of spec.md §4.4.
func (d *DB) PendingTotal() (uint64, error) {
	var total uint64
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlementQueue).ForEach(func(k, v []byte) error {
			var rec DistributionRecord
			raw := make([]byte, len(v))
			copy(raw, v)
			if err := wire.DecodeCanonical(raw, &rec); err != nil {
				return err
			}
			if rec.BatchID == nil {
				total += rec.Amount
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("store: pending total: %w", err)
	}
	return total, nil
}

// SetBatchIDIfNull conditionally stamps batchID onto id's row, but only if
// it does not already carry one. This is the exactly-once anchoring
// primitive the batcher relies on (spec.md §4.7): two concurrent batch
// attempts over the same row cannot both succeed.
func (d *DB) SetBatchIDIfNull(id uuid.UUID, batchID ndlcrypto.Hash) (bool, error) {
	applied := false
	err := d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSettlementQueue)
		v := b.Get(id[:])
		if v == nil {
			return newErr(CodeNotFound, "no such distribution")
		}
		var rec DistributionRecord
		raw := make([]byte, len(v))
		copy(raw, v)
		if err := wire.DecodeCanonical(raw, &rec); err != nil {
			return fmt.Errorf("decode distribution: %w", err)
		}
		if rec.BatchID != nil {
			return nil
		}
		rec.BatchID = &batchID
		rec.Failed = false
		enc, err := wire.EncodeCanonical(rec)
		if err != nil {
			return fmt.Errorf("encode distribution: %w", err)
		}
		if err := b.Put(rec.ID[:], enc); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListByBatch returns every distribution row stamped with batchID.
func (d *DB) ListByBatch(batchID ndlcrypto.Hash) ([]DistributionRecord, error) {
	var out []DistributionRecord
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlementQueue).ForEach(func(k, v []byte) error {
			var rec DistributionRecord
			raw := make([]byte, len(v))
			copy(raw, v)
			if err := wire.DecodeCanonical(raw, &rec); err != nil {
				return err
			}
			if rec.BatchID != nil && *rec.BatchID == batchID {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list by batch: %w", err)
	}
	return out, nil
}

// MarkBatchConfirmed flips Confirmed=true on every row stamped with
// batchID, once the settlement backend reports the batch Confirmed.
func (d *DB) MarkBatchConfirmed(batchID ndlcrypto.Hash) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSettlementQueue)
		return b.ForEach(func(k, v []byte) error {
			var rec DistributionRecord
			raw := make([]byte, len(v))
			copy(raw, v)
			if err := wire.DecodeCanonical(raw, &rec); err != nil {
				return err
			}
			if rec.BatchID == nil || *rec.BatchID != batchID {
				return nil
			}
			rec.Confirmed = true
			enc, err := wire.EncodeCanonical(rec)
			if err != nil {
				return err
			}
			return b.Put(rec.ID[:], enc)
		})
	})
}

// MarkBatchFailed flips Failed=true and clears batch_id on every row
// stamped with batchID, once the settlement backend reports the batch
// ConfirmFailed: the rows become Status()==Failed until they are picked up
// and re-stamped into the next batch attempt (spec.md §4.7 retry path).
func (d *DB) MarkBatchFailed(batchID ndlcrypto.Hash) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSettlementQueue)
		return b.ForEach(func(k, v []byte) error {
			var rec DistributionRecord
			raw := make([]byte, len(v))
			copy(raw, v)
			if err := wire.DecodeCanonical(raw, &rec); err != nil {
				return err
			}
			if rec.BatchID == nil || *rec.BatchID != batchID {
				return nil
			}
			rec.BatchID = nil
			rec.Failed = true
			enc, err := wire.EncodeCanonical(rec)
			if err != nil {
				return err
			}
			return b.Put(rec.ID[:], enc)
		})
	})
}

// ClearBatchID resets a row's batch_id to nil so the row becomes eligible
// for the next batch cycle. The batcher does not call it: its
// confirm-failure path uses MarkBatchFailed.
func (d *DB) ClearBatchID(id uuid.UUID) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSettlementQueue)
		v := b.Get(id[:])
		if v == nil {
			return newErr(CodeNotFound, "no such distribution")
		}
		var rec DistributionRecord
		raw := make([]byte, len(v))
		copy(raw, v)
		if err := wire.DecodeCanonical(raw, &rec); err != nil {
			return fmt.Errorf("decode distribution: %w", err)
		}
		rec.BatchID = nil
		enc, err := wire.EncodeCanonical(rec)
		if err != nil {
			return fmt.Errorf("encode distribution: %w", err)
		}
		return b.Put(rec.ID[:], enc)
	})
}
