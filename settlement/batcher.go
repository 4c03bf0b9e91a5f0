package settlement

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/store"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

const (
	// DefaultBatchInterval is BATCH_INTERVAL from spec.md §4.7.
	DefaultBatchInterval = 60 * time.Second
	// DefaultConfirmPollInterval paces repeated Confirm polls.
	DefaultConfirmPollInterval = 2 * time.Second
	// DefaultConfirmPollTimeout is the settlement-confirm poll timeout
	// from spec.md §5.
	DefaultConfirmPollTimeout = 60 * time.Second
	// maxBackoff is the exponential backoff cap from spec.md §4.7.
	maxBackoff = 15 * time.Minute
)

// Batcher runs the periodic settlement cycle of spec.md §4.7. It is a
// single task: the settlement backend is not assumed safe under concurrent
// AnchorBatch calls (spec.md §5), so RunOnce never overlaps with itself.
type Batcher struct {
	Store               Store
	Backend             Backend
	Interval            time.Duration
	ConfirmPollInterval time.Duration
	ConfirmPollTimeout  time.Duration
	Logger              zerolog.Logger

	mu            sync.Mutex
	failureCount  int
	nextAttemptAt time.Time
}

// NewBatcher constructs a Batcher with spec.md's defaults filled in for
// any zero-valued duration fields.
func NewBatcher(st Store, backend Backend, logger zerolog.Logger) *Batcher {
	return &Batcher{
		Store:               st,
		Backend:             backend,
		Interval:            DefaultBatchInterval,
		ConfirmPollInterval: DefaultConfirmPollInterval,
		ConfirmPollTimeout:  DefaultConfirmPollTimeout,
		Logger:              logger.With().Str("component", "settlement_batcher").Logger(),
	}
}

// Run drives RunOnce on Interval ticks until ctx is canceled, matching
// spec.md §4.7 "runs periodically ... and on the settle command" — the
// "settle command" path is Batcher.RunOnce called directly by a caller
// outside this loop.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil {
				b.Logger.Error().Err(err).Msg("settlement batch cycle failed")
			}
		}
	}
}

// RunOnce executes one batch cycle: group pending rows by recipient,
// anchor the batch, stamp rows, and poll for confirmation. Offline
// tolerance: if Backend is nil, RunOnce is a no-op and queries upstream
// continue to proceed and accumulate in the queue (spec.md §4.7).
func (b *Batcher) RunOnce(ctx context.Context) error {
	if b.Backend == nil {
		return nil
	}

	b.mu.Lock()
	if time.Now().Before(b.nextAttemptAt) {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	pending, err := b.Store.GetPendingDistributions()
	if err != nil {
		return fmt.Errorf("settlement: get pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	entries := groupByRecipient(pending)
	var total uint64
	for _, e := range entries {
		total += e.Amount
	}
	root, err := computeBatchRoot(entries)
	if err != nil {
		return fmt.Errorf("settlement: compute batch root: %w", err)
	}

	txID, err := b.Backend.AnchorBatch(ctx, root, total, entries)
	if err != nil {
		b.recordFailure()
		return fmt.Errorf("settlement: anchor batch: %w", err)
	}
	b.resetFailure()

	for _, rec := range pending {
		if _, err := b.Store.SetBatchIDIfNull(rec.ID, root); err != nil {
			b.Logger.Error().Err(err).Str("distribution_id", rec.ID.String()).Msg("failed to stamp distribution with batch id")
		}
	}

	status, err := b.pollConfirm(ctx, txID)
	if err != nil {
		return fmt.Errorf("settlement: poll confirm: %w", err)
	}
	switch status {
	case ConfirmConfirmed:
		if err := b.Store.MarkBatchConfirmed(root); err != nil {
			return fmt.Errorf("settlement: mark confirmed: %w", err)
		}
	case ConfirmFailed:
		if err := b.Store.MarkBatchFailed(root); err != nil {
			b.Logger.Error().Err(err).Str("tx_id", txID).Msg("failed to mark batch failed")
		}
		b.recordFailure()
		b.Logger.Warn().Str("tx_id", txID).Msg("settlement batch failed, rows returned to the pending queue")
	case ConfirmPending:
		b.Logger.Info().Str("tx_id", txID).Msg("settlement batch still pending after confirm poll window")
	}
	return nil
}

// Balance is the settlement backend's account balance, with an Offline
// flag the caller should surface in any UI or RPC response (spec.md §4.7
// "balance shows the offline flag").
type Balance struct {
	Amount  uint64
	Offline bool
}

// Balance reports the current settlement backend balance. With no backend
// configured, RunOnce is a documented no-op (spec.md §4.7 offline
// tolerance) and Balance mirrors that by returning Offline: true with a
// zero amount rather than an error.
func (b *Batcher) Balance(ctx context.Context) (Balance, error) {
	if b.Backend == nil {
		return Balance{Offline: true}, nil
	}
	amount, err := b.Backend.GetBalance(ctx)
	if err != nil {
		return Balance{}, fmt.Errorf("settlement: get balance: %w", err)
	}
	return Balance{Amount: amount}, nil
}

func (b *Batcher) pollConfirm(ctx context.Context, txID string) (ConfirmStatus, error) {
	deadline := time.Now().Add(b.ConfirmPollTimeout)
	for {
		status, err := b.Backend.Confirm(ctx, txID)
		if err != nil {
			return ConfirmPending, err
		}
		if status != ConfirmPending {
			return status, nil
		}
		if time.Now().After(deadline) {
			return ConfirmPending, nil
		}
		select {
		case <-ctx.Done():
			return ConfirmPending, ctx.Err()
		case <-time.After(b.ConfirmPollInterval):
		}
	}
}

// recordFailure schedules the next attempt after an exponential backoff
// (base 2, capped at 15 minutes, jittered ±20%), per spec.md §4.7.
func (b *Batcher) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	delay := time.Duration(1<<uint(min(b.failureCount, 20))) * time.Second
	if delay > maxBackoff {
		delay = maxBackoff
	}
	jitterFrac := (rand.Float64()*0.4 - 0.2) // +/-20%
	delay = time.Duration(float64(delay) * (1 + jitterFrac))
	b.nextAttemptAt = time.Now().Add(delay)
}

func (b *Batcher) resetFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.nextAttemptAt = time.Time{}
}

func groupByRecipient(rows []store.DistributionRecord) []Entry {
	sums := make(map[ndlcrypto.PeerId]uint64)
	for _, r := range rows {
		sums[r.Recipient] += r.Amount
	}
	entries := make([]Entry, 0, len(sums))
	for recipient, amount := range sums {
		entries = append(entries, Entry{Recipient: recipient, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Recipient[:]) < string(entries[j].Recipient[:])
	})
	return entries
}

// computeBatchRoot hashes the canonical entry list under domain 0x02,
// the same channel-state domain spec.md §4.7 specifies for batch roots.
func computeBatchRoot(entries []Entry) (ndlcrypto.Hash, error) {
	b, err := wire.EncodeCanonical(entries)
	if err != nil {
		return ndlcrypto.Hash{}, err
	}
	return ndlcrypto.HashDomain(ndlcrypto.DomainChannelState, b), nil
}
