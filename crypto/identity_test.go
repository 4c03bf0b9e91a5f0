package crypto

import "testing"

func TestGenerateIdentityAndPeerId(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	id, err := PeerIdFromPublicKey(kp.Public)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	if id.IsZero() {
		t.Fatalf("peer id must not be zero")
	}

	id2, err := PeerIdFromPublicKey(kp.Public)
	if err != nil {
		t.Fatalf("peer id (2nd): %v", err)
	}
	if !id.Equal(id2) {
		t.Fatalf("peer id must be stable for the same public key")
	}
}

func TestPeerIdRoundTrip(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	id, err := PeerIdFromPublicKey(kp.Public)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	text := id.String()
	if text[:len(peerIdPrefix)] != peerIdPrefix {
		t.Fatalf("expected prefix %q, got %q", peerIdPrefix, text)
	}
	got, err := ParsePeerId(text)
	if err != nil {
		t.Fatalf("parse peer id: %v", err)
	}
	if !got.Equal(id) {
		t.Fatalf("round trip mismatch: got %x want %x", got, id)
	}
}

func TestParsePeerIdRejectsBadPrefix(t *testing.T) {
	if _, err := ParsePeerId("xyz1abc"); err == nil {
		t.Fatalf("expected error for bad prefix")
	}
}

func TestParsePeerIdRejectsBadBase58(t *testing.T) {
	if _, err := ParsePeerId("ndl10OIl"); err == nil {
		t.Fatalf("expected error for invalid base58 characters")
	}
}

func TestSignVerify(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	msg := []byte("hello nodalync")
	sig, err := Sign(kp.Private, DomainMessage, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(kp.Public, DomainMessage, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
	if Verify(kp.Public, DomainContent, msg, sig) {
		t.Fatalf("signature must not verify under a different domain")
	}
	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xFF
	if Verify(kp.Public, DomainMessage, tampered, sig) {
		t.Fatalf("signature must not verify over tampered bytes")
	}
}

func TestVerifyErr(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	msg := []byte("payload")
	sig, _ := Sign(kp.Private, DomainMessage, msg)
	if err := VerifyErr(kp.Public, DomainMessage, msg, sig); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	other, _ := GenerateIdentity()
	if err := VerifyErr(other.Public, DomainMessage, msg, sig); err == nil {
		t.Fatalf("expected SignatureVerificationFailed")
	}
}

func TestDomainSeparation(t *testing.T) {
	b := []byte("same bytes")
	h0 := HashDomain(DomainContent, b)
	h1 := HashDomain(DomainMessage, b)
	h2 := HashDomain(DomainChannelState, b)
	if h0 == h1 || h1 == h2 || h0 == h2 {
		t.Fatalf("domain-separated hashes must differ: %x %x %x", h0, h1, h2)
	}
}

func TestContentHashDeterministic(t *testing.T) {
	b := []byte("some content bytes")
	if ContentHash(b) != ContentHash(b) {
		t.Fatalf("content hash must be deterministic")
	}
}
