package store

import (
	"testing"

	"github.com/google/uuid"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

func testDistribution(t *testing.T) DistributionRecord {
	t.Helper()
	kp, _ := ndlcrypto.GenerateIdentity()
	recipient, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	return DistributionRecord{
		ID:         uuid.New(),
		Recipient:  recipient,
		Amount:     10_000,
		ChannelID:  ndlcrypto.ContentHash([]byte("chan")),
		Nonce:      1,
		EnqueuedAt: 1700000000,
	}
}

func TestEnqueueAndGetPendingDistributions(t *testing.T) {
	db := openTestDB(t)
	d1 := testDistribution(t)
	d2 := testDistribution(t)
	if err := db.EnqueueDistribution(d1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.EnqueueDistribution(d2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := db.GetPendingDistributions()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
}

func TestSetBatchIDIfNullIsExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	d := testDistribution(t)
	if err := db.EnqueueDistribution(d); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	batchA := ndlcrypto.ContentHash([]byte("batch-a"))
	applied, err := db.SetBatchIDIfNull(d.ID, batchA)
	if err != nil {
		t.Fatalf("set batch id: %v", err)
	}
	if !applied {
		t.Fatalf("expected first stamp to apply")
	}

	batchB := ndlcrypto.ContentHash([]byte("batch-b"))
	applied, err = db.SetBatchIDIfNull(d.ID, batchB)
	if err != nil {
		t.Fatalf("set batch id again: %v", err)
	}
	if applied {
		t.Fatalf("expected second stamp to be a no-op")
	}

	rows, err := db.ListByBatch(batchA)
	if err != nil {
		t.Fatalf("list by batch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row under batch a, got %d", len(rows))
	}

	pending, err := db.GetPendingDistributions()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected 0 pending once batched, got %d", len(pending))
	}
}

func TestMarkBatchConfirmed(t *testing.T) {
	db := openTestDB(t)
	d := testDistribution(t)
	if err := db.EnqueueDistribution(d); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	batch := ndlcrypto.ContentHash([]byte("batch"))
	if _, err := db.SetBatchIDIfNull(d.ID, batch); err != nil {
		t.Fatalf("set batch id: %v", err)
	}
	if err := db.MarkBatchConfirmed(batch); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}
	rows, err := db.ListByBatch(batch)
	if err != nil {
		t.Fatalf("list by batch: %v", err)
	}
	if len(rows) != 1 || !rows[0].Confirmed {
		t.Fatalf("expected row to be confirmed: %+v", rows)
	}
}

func TestClearBatchIDReopensForNextCycle(t *testing.T) {
	db := openTestDB(t)
	d := testDistribution(t)
	if err := db.EnqueueDistribution(d); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	batch := ndlcrypto.ContentHash([]byte("batch"))
	if _, err := db.SetBatchIDIfNull(d.ID, batch); err != nil {
		t.Fatalf("set batch id: %v", err)
	}
	if err := db.ClearBatchID(d.ID); err != nil {
		t.Fatalf("clear batch id: %v", err)
	}
	pending, err := db.GetPendingDistributions()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected row to be pending again, got %d", len(pending))
	}
}

func TestPendingTotalSumsOnlyUnbatchedRows(t *testing.T) {
	db := openTestDB(t)
	d1 := testDistribution(t)
	d1.Amount = 10_000
	d2 := testDistribution(t)
	d2.Amount = 5_000
	if err := db.EnqueueDistribution(d1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.EnqueueDistribution(d2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	total, err := db.PendingTotal()
	if err != nil {
		t.Fatalf("pending total: %v", err)
	}
	if total != 15_000 {
		t.Fatalf("expected 15000, got %d", total)
	}

	batch := ndlcrypto.ContentHash([]byte("batch"))
	if _, err := db.SetBatchIDIfNull(d1.ID, batch); err != nil {
		t.Fatalf("set batch id: %v", err)
	}
	total, err = db.PendingTotal()
	if err != nil {
		t.Fatalf("pending total: %v", err)
	}
	if total != 5_000 {
		t.Fatalf("expected 5000 once d1 is batched, got %d", total)
	}
}

func TestStatusDerivesFourStates(t *testing.T) {
	db := openTestDB(t)
	d := testDistribution(t)
	if err := db.EnqueueDistribution(d); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	status, found, err := db.Status(d.ID)
	if err != nil || !found {
		t.Fatalf("status: %v found=%v", err, found)
	}
	if status != SettlementPending {
		t.Fatalf("expected Pending, got %s", status)
	}

	batch := ndlcrypto.ContentHash([]byte("batch"))
	if _, err := db.SetBatchIDIfNull(d.ID, batch); err != nil {
		t.Fatalf("set batch id: %v", err)
	}
	status, _, err = db.Status(d.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != SettlementProcessing {
		t.Fatalf("expected Processing, got %s", status)
	}

	if err := db.MarkBatchConfirmed(batch); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}
	status, _, err = db.Status(d.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != SettlementConfirmed {
		t.Fatalf("expected Confirmed, got %s", status)
	}
}

func TestStatusUnknownIDNotFound(t *testing.T) {
	db := openTestDB(t)
	_, found, err := db.Status(uuid.New())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for unknown id")
	}
}

func TestMarkBatchFailedSetsFailedAndReopensRow(t *testing.T) {
	db := openTestDB(t)
	d := testDistribution(t)
	if err := db.EnqueueDistribution(d); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	batch := ndlcrypto.ContentHash([]byte("batch"))
	if _, err := db.SetBatchIDIfNull(d.ID, batch); err != nil {
		t.Fatalf("set batch id: %v", err)
	}
	if err := db.MarkBatchFailed(batch); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	status, _, err := db.Status(d.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != SettlementFailed {
		t.Fatalf("expected Failed, got %s", status)
	}

	pending, err := db.GetPendingDistributions()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected row to be pending again after failure, got %d", len(pending))
	}

	nextBatch := ndlcrypto.ContentHash([]byte("batch-2"))
	if _, err := db.SetBatchIDIfNull(d.ID, nextBatch); err != nil {
		t.Fatalf("set batch id for retry: %v", err)
	}
	status, _, err = db.Status(d.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != SettlementProcessing {
		t.Fatalf("expected re-stamping to clear Failed and report Processing, got %s", status)
	}
}
