package store

import (
	"testing"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

func testChannelRecord(t *testing.T) ChannelRecord {
	t.Helper()
	a, _ := ndlcrypto.GenerateIdentity()
	b, _ := ndlcrypto.GenerateIdentity()
	idA, _ := ndlcrypto.PeerIdFromPublicKey(a.Public)
	idB, _ := ndlcrypto.PeerIdFromPublicKey(b.Public)
	return ChannelRecord{
		ChannelID:    ndlcrypto.ContentHash([]byte("channel-1")),
		ParticipantA: idA,
		ParticipantB: idB,
		Capacity:     1_000_000,
		BalanceA:     1_000_000,
		BalanceB:     0,
		Nonce:        0,
		State:        ChannelStateActive,
	}
}

func TestPutChannelNewIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	rec := testChannelRecord(t)

	if err := db.PutChannelNew(rec); err != nil {
		t.Fatalf("put channel: %v", err)
	}
	mutated := rec
	mutated.BalanceA = 1
	if err := db.PutChannelNew(mutated); err != nil {
		t.Fatalf("put channel again: %v", err)
	}

	got, ok, err := db.GetChannel(rec.ChannelID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if !ok {
		t.Fatalf("expected channel to exist")
	}
	if got.BalanceA != rec.BalanceA {
		t.Fatalf("second PutChannelNew must not overwrite: got balance %d want %d", got.BalanceA, rec.BalanceA)
	}
}

func TestCASUpdateChannelSucceedsOnMatch(t *testing.T) {
	db := openTestDB(t)
	rec := testChannelRecord(t)
	if err := db.PutChannelNew(rec); err != nil {
		t.Fatalf("put channel: %v", err)
	}

	next := rec
	next.BalanceA = 990_000
	next.BalanceB = 10_000
	next.Nonce = 1
	if err := db.CASUpdateChannel(ChannelStateActive, 0, next); err != nil {
		t.Fatalf("cas update: %v", err)
	}

	got, _, err := db.GetChannel(rec.ChannelID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.Nonce != 1 || got.BalanceB != 10_000 {
		t.Fatalf("unexpected state after cas update: %+v", got)
	}
}

func TestCASUpdateChannelRejectsStaleNonce(t *testing.T) {
	db := openTestDB(t)
	rec := testChannelRecord(t)
	if err := db.PutChannelNew(rec); err != nil {
		t.Fatalf("put channel: %v", err)
	}

	next := rec
	next.Nonce = 1
	if err := db.CASUpdateChannel(ChannelStateActive, 0, next); err != nil {
		t.Fatalf("first cas update: %v", err)
	}

	// A second update racing against the same expected nonce=0 must fail:
	// the stored nonce has already moved to 1.
	stale := rec
	stale.Nonce = 1
	stale.BalanceA = 1
	err := db.CASUpdateChannel(ChannelStateActive, 0, stale)
	if err == nil {
		t.Fatalf("expected conflict on stale nonce")
	}
	if !IsConflict(err) {
		t.Fatalf("expected store.IsConflict(err), got %v", err)
	}
}
