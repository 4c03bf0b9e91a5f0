package store

import (
	"testing"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

func TestPutGetPeerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	kp, _ := ndlcrypto.GenerateIdentity()
	id, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	rec := PeerRecord{
		PeerID:     id,
		Addresses:  []string{"/ip4/127.0.0.1/tcp/4001"},
		Protocols:  []string{"/nodalync/1.0.0"},
		LastSeen:   1700000000,
		Reputation: 0.5,
	}
	if err := db.PutPeer(rec); err != nil {
		t.Fatalf("put peer: %v", err)
	}
	got, ok, err := db.GetPeer(id)
	if err != nil {
		t.Fatalf("get peer: %v", err)
	}
	if !ok {
		t.Fatalf("expected peer to be found")
	}
	if got.Reputation != rec.Reputation || len(got.Addresses) != 1 {
		t.Fatalf("peer round trip mismatch: %+v", got)
	}
}

func TestListPeers(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 3; i++ {
		kp, _ := ndlcrypto.GenerateIdentity()
		id, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
		if err := db.PutPeer(PeerRecord{PeerID: id, LastSeen: int64(i)}); err != nil {
			t.Fatalf("put peer: %v", err)
		}
	}
	peers, err := db.ListPeers()
	if err != nil {
		t.Fatalf("list peers: %v", err)
	}
	if len(peers) != 3 {
		t.Fatalf("expected 3 peers, got %d", len(peers))
	}
}

func TestDeletePeer(t *testing.T) {
	db := openTestDB(t)
	kp, _ := ndlcrypto.GenerateIdentity()
	id, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	if err := db.PutPeer(PeerRecord{PeerID: id}); err != nil {
		t.Fatalf("put peer: %v", err)
	}
	if err := db.DeletePeer(id); err != nil {
		t.Fatalf("delete peer: %v", err)
	}
	_, ok, err := db.GetPeer(id)
	if err != nil {
		t.Fatalf("get peer: %v", err)
	}
	if ok {
		t.Fatalf("expected peer to be gone")
	}
}
