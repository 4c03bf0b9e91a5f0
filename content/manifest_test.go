package content

import (
	"testing"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

func mustKeyPair(t *testing.T) ndlcrypto.KeyPair {
	t.Helper()
	kp, err := ndlcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return kp
}

func baseManifest(t *testing.T, owner ndlcrypto.PeerId) Manifest {
	t.Helper()
	return Manifest{
		Hash:        ndlcrypto.ContentHash([]byte("hello world")),
		Owner:       owner,
		ContentType: ContentTypeL0,
		Visibility:  Visibility{Kind: VisibilityPublic},
		Metadata: Metadata{
			Title:       "greeting",
			ContentSize: 11,
			Mime:        "text/plain",
			CreatedAt:   1700000000,
		},
		Economics: Economics{Price: 1000, TotalQueries: 0},
	}
}

func TestSignVerifyManifestRoundTrip(t *testing.T) {
	kp := mustKeyPair(t)
	owner, err := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	m := baseManifest(t, owner)

	signed, err := Sign(m, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !VerifySignature(signed, kp.Public) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifySignatureRejectsTamperedField(t *testing.T) {
	kp := mustKeyPair(t)
	owner, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	m := baseManifest(t, owner)

	signed, err := Sign(m, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signed.Economics.Price = 999999
	if VerifySignature(signed, kp.Public) {
		t.Fatalf("expected tampered price to invalidate signature")
	}
}

func TestVerifySignatureIgnoresTotalQueriesChange(t *testing.T) {
	kp := mustKeyPair(t)
	owner, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	m := baseManifest(t, owner)

	signed, err := Sign(m, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signed.Economics.TotalQueries = 42
	if !VerifySignature(signed, kp.Public) {
		t.Fatalf("total_queries must be excluded from the signed view")
	}
}

func TestValidateInvariantsRequiresProvenanceForL3(t *testing.T) {
	kp := mustKeyPair(t)
	owner, _ := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	m := baseManifest(t, owner)
	m.ContentType = ContentTypeL3

	if err := ValidateInvariants(m); err == nil {
		t.Fatalf("expected error for L3 manifest with empty provenance")
	}

	m.Provenance = []ProvenanceEntry{{
		SourceHash:  ndlcrypto.ContentHash([]byte("source")),
		Role:        RoleSynthesizedFrom,
		ExtractedAt: 1700000000,
	}}
	if err := ValidateInvariants(m); err != nil {
		t.Fatalf("expected no error once provenance is present: %v", err)
	}
}

func TestVisibilityPermits(t *testing.T) {
	kp1 := mustKeyPair(t)
	kp2 := mustKeyPair(t)
	id1, _ := ndlcrypto.PeerIdFromPublicKey(kp1.Public)
	id2, _ := ndlcrypto.PeerIdFromPublicKey(kp2.Public)

	pub := Visibility{Kind: VisibilityPublic}
	if !pub.Permits(id1) || !pub.Permits(id2) {
		t.Fatalf("public visibility must permit everyone")
	}

	priv := Visibility{Kind: VisibilityPrivate}
	if priv.Permits(id1) {
		t.Fatalf("private visibility must permit no one")
	}

	shared := Visibility{Kind: VisibilityShared, Shared: []ndlcrypto.PeerId{id1}}
	if !shared.Permits(id1) {
		t.Fatalf("shared visibility must permit a listed peer")
	}
	if shared.Permits(id2) {
		t.Fatalf("shared visibility must reject an unlisted peer")
	}
}
