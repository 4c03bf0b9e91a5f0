// Package settlement implements the off-chain-to-ledger settlement queue
// and batcher of spec.md §4.7: accumulating QueuedDistribution rows and
// periodically anchoring them to an external SettlementBackend.
package settlement

import (
	"context"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// ConfirmStatus is the result of polling a settlement backend about a
// previously anchored batch (spec.md §4.7).
type ConfirmStatus string

const (
	ConfirmPending   ConfirmStatus = "Pending"
	ConfirmConfirmed ConfirmStatus = "Confirmed"
	ConfirmFailed    ConfirmStatus = "Failed"
)

// Entry is one (recipient, amount) pair within an anchored batch.
type Entry struct {
	Recipient ndlcrypto.PeerId `cbor:"recipient"`
	Amount    uint64           `cbor:"amount"`
}

// Backend is the external collaborator contract from spec.md §4.7. The
// concrete ledger/Hedera implementation is out of scope (Non-goals); this
// package only depends on the interface, and runs correctly with no
// backend configured at all (see Batcher's offline tolerance).
type Backend interface {
	GetBalance(ctx context.Context) (uint64, error)
	Deposit(ctx context.Context, amount uint64) (txID string, err error)
	Withdraw(ctx context.Context, amount uint64) (txID string, err error)
	AnchorBatch(ctx context.Context, batchRoot ndlcrypto.Hash, total uint64, entries []Entry) (txID string, err error)
	Confirm(ctx context.Context, txID string) (ConfirmStatus, error)
}
