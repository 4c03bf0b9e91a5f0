package settlement

import (
	"fmt"

	"github.com/google/uuid"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/store"
)

// Store is the persistence port the queue and batcher need; store.DB
// satisfies it structurally.
type Store interface {
	EnqueueDistribution(rec store.DistributionRecord) error
	GetPendingDistributions() ([]store.DistributionRecord, error)
	PendingTotal() (uint64, error)
	Status(id uuid.UUID) (store.SettlementStatus, bool, error)
	SetBatchIDIfNull(id uuid.UUID, batchID ndlcrypto.Hash) (bool, error)
	ListByBatch(batchID ndlcrypto.Hash) ([]store.DistributionRecord, error)
	MarkBatchConfirmed(batchID ndlcrypto.Hash) error
	MarkBatchFailed(batchID ndlcrypto.Hash) error
	ClearBatchID(id uuid.UUID) error
}

// Queue wraps Store with the QueuedDistribution-level operations the query
// protocol needs on the hot path (spec.md §3 "QueuedDistribution").
type Queue struct {
	Store Store
}

// Enqueue appends a new distribution row for a successfully applied
// channel update (spec.md §4.6 step 5b). enqueuedAt should come from a
// single monotonic source per spec.md §5 ("settlement-queue appends are
// serialized by a single writer to preserve monotonic enqueued_at");
// bbolt's single-writer transaction already provides that serialization.
func (q *Queue) Enqueue(recipient ndlcrypto.PeerId, amount uint64, channelID ndlcrypto.Hash, nonce uint64, enqueuedAt int64) (store.DistributionRecord, error) {
	rec := store.DistributionRecord{
		ID:         uuid.New(),
		Recipient:  recipient,
		Amount:     amount,
		ChannelID:  channelID,
		Nonce:      nonce,
		EnqueuedAt: enqueuedAt,
	}
	if err := q.Store.EnqueueDistribution(rec); err != nil {
		return store.DistributionRecord{}, fmt.Errorf("settlement: enqueue: %w", err)
	}
	return rec, nil
}

// Pending returns every distribution row not yet assigned to a batch.
func (q *Queue) Pending() ([]store.DistributionRecord, error) {
	rows, err := q.Store.GetPendingDistributions()
	if err != nil {
		return nil, fmt.Errorf("settlement: pending: %w", err)
	}
	return rows, nil
}

// PendingTotal sums Amount over every distribution row not yet assigned to
// a batch (spec.md §4.4 get_pending_total()).
func (q *Queue) PendingTotal() (uint64, error) {
	total, err := q.Store.PendingTotal()
	if err != nil {
		return 0, fmt.Errorf("settlement: pending total: %w", err)
	}
	return total, nil
}

// Status reports one distribution row's derived SettlementStatus. The bool
// return is false if no such row exists.
func (q *Queue) Status(id uuid.UUID) (store.SettlementStatus, bool, error) {
	status, found, err := q.Store.Status(id)
	if err != nil {
		return "", false, fmt.Errorf("settlement: status: %w", err)
	}
	return status, found, nil
}
