package query

import (
	"sync"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// Receipt is the local-only record a requester keeps after a successful
// paid query (spec.md §4.6 step 6: "requester appends a local
// ProvenanceEntry recording hash, peer, paid_at, nonce"). It is distinct
// from content.ProvenanceEntry, which tracks how content derives from
// other content, not who paid whom for access to it.
type Receipt struct {
	Hash   ndlcrypto.Hash
	Peer   ndlcrypto.PeerId
	PaidAt int64
	Nonce  uint64
}

// ReceiptLog keeps a requester's own paid-query history in memory. It is
// bookkeeping, not a safety property: losing it on restart does not allow
// double-spending or re-charging, since the channel's nonce is what
// actually enforces at-most-once payment.
type ReceiptLog struct {
	mu       sync.Mutex
	receipts []Receipt
}

// NewReceiptLog constructs an empty ReceiptLog.
func NewReceiptLog() *ReceiptLog {
	return &ReceiptLog{}
}

// Record appends r to the log.
func (l *ReceiptLog) Record(r Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts = append(l.receipts, r)
}

// ForHash returns every receipt recorded for hash, in the order recorded.
func (l *ReceiptLog) ForHash(hash ndlcrypto.Hash) []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Receipt
	for _, r := range l.receipts {
		if r.Hash == hash {
			out = append(out, r)
		}
	}
	return out
}

// All returns every receipt recorded so far.
func (l *ReceiptLog) All() []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Receipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}
