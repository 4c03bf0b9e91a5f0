// Package crypto implements the identity, hashing and signing primitives
// for Nodalync: Ed25519 keypairs, domain-separated hashes, and the
// human-readable PeerId encoding. Every function here is pure; none of them
// hold or mutate global state.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/mr-tron/base58"
)

// Domain separates the input of a hash or signature so that the same bytes
// hashed or signed for different purposes never collide (spec.md §3 "Hash").
type Domain byte

const (
	DomainContent      Domain = 0x00
	DomainMessage      Domain = 0x01
	DomainChannelState Domain = 0x02
)

// Hash is a 32-byte domain-separated digest.
type Hash [32]byte

// PeerId is a 20-byte hash of a public key, plus a stable ndl1<base58> text
// encoding. peer_id = hash20("ndl-peer-id-v1" || pk), per spec.md §3.
type PeerId [20]byte

const peerIdPrefix = "ndl1"
const peerIdDomainTag = "ndl-peer-id-v1"

// KeyPair holds an Ed25519 secret and public key.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// Signature is a raw 64-byte Ed25519 signature.
type Signature [ed25519.SignatureSize]byte

// GenerateIdentity creates a fresh Ed25519 keypair using the OS CSPRNG.
func GenerateIdentity() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: generate identity: %w", err)
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// domainPrefixed returns domain || bytes, the canonical preimage for both
// hashing and signing. The signer and verifier MUST agree on domain.
func domainPrefixed(domain Domain, b []byte) []byte {
	out := make([]byte, 0, 1+len(b))
	out = append(out, byte(domain))
	out = append(out, b...)
	return out
}

// HashDomain computes the 32-byte SHA-256 digest of bytes with domain
// separator prepended. Two hashes over the same bytes but different domains
// always differ. SHA-256 (not SHA3) matches the ground-truth Rust node's
// encoding so hashes, peer ids and channel ids verify bit-for-bit across
// implementations (spec.md §1).
func HashDomain(domain Domain, b []byte) Hash {
	return Hash(sha256.Sum256(domainPrefixed(domain, b)))
}

// ContentHash is HashDomain(DomainContent, bytes) — the manifest's authoritative
// content hash (spec.md §4.3).
func ContentHash(b []byte) Hash {
	return HashDomain(DomainContent, b)
}

// SignDigest signs a precomputed 32-byte digest directly, with no further
// domain wrapping. Used where the caller has already produced the exact
// signed preimage (e.g. the wire frame digest in wire.EncodeFrame).
func SignDigest(sk ed25519.PrivateKey, digest Hash) (Signature, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return Signature{}, newErr(InvalidKeyLength, fmt.Sprintf("private key must be %d bytes", ed25519.PrivateKeySize))
	}
	sig := ed25519.Sign(sk, digest[:])
	var out Signature
	copy(out[:], sig)
	return out, nil
}

// VerifyDigest checks sig against a precomputed digest. See SignDigest.
func VerifyDigest(pk ed25519.PublicKey, digest Hash, sig Signature) bool {
	if len(pk) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pk, digest[:], sig[:])
}

// Sign signs bytes under domain using sk: it hashes domain||bytes (the same
// way HashDomain does) and signs the resulting digest. This is the sign()
// operation from spec.md §4.1.
func Sign(sk ed25519.PrivateKey, domain Domain, b []byte) (Signature, error) {
	return SignDigest(sk, HashDomain(domain, b))
}

// Verify checks sig against bytes under domain using pk. It returns false
// (never an error) on any mismatch — callers that need a structured reason
// should prefer VerifyErr.
func Verify(pk ed25519.PublicKey, domain Domain, b []byte, sig Signature) bool {
	return VerifyDigest(pk, HashDomain(domain, b), sig)
}

// VerifyErr is Verify but returns a structured SignatureVerificationFailed
// error instead of a bare bool, for callers that propagate structured errors
// up the stack (spec.md §7).
func VerifyErr(pk ed25519.PublicKey, domain Domain, b []byte, sig Signature) error {
	if !Verify(pk, domain, b, sig) {
		return newErr(SignatureVerificationFailed, "")
	}
	return nil
}

// PeerIdFromPublicKey computes the stable 20-byte PeerId for a public key.
func PeerIdFromPublicKey(pk ed25519.PublicKey) (PeerId, error) {
	if len(pk) != ed25519.PublicKeySize {
		return PeerId{}, newErr(InvalidKeyLength, fmt.Sprintf("public key must be %d bytes", ed25519.PublicKeySize))
	}
	digest := sha256.Sum256(append([]byte(peerIdDomainTag), pk...))
	var id PeerId
	copy(id[:], digest[:20])
	return id, nil
}

// String renders the PeerId as its human-readable ndl1<base58> form.
func (id PeerId) String() string {
	return peerIdPrefix + base58.Encode(id[:])
}

// ParsePeerId parses the ndl1<base58> text encoding back into a PeerId.
func ParsePeerId(s string) (PeerId, error) {
	if len(s) <= len(peerIdPrefix) || s[:len(peerIdPrefix)] != peerIdPrefix {
		return PeerId{}, newErr(InvalidPeerIdPrefix, fmt.Sprintf("expected prefix %q", peerIdPrefix))
	}
	raw, err := base58.Decode(s[len(peerIdPrefix):])
	if err != nil {
		return PeerId{}, newErr(InvalidBase58, err.Error())
	}
	if len(raw) != 20 {
		return PeerId{}, newErr(InvalidPeerIdFormat, fmt.Sprintf("decoded peer id must be 20 bytes, got %d", len(raw)))
	}
	var id PeerId
	copy(id[:], raw)
	return id, nil
}

// Equal performs a constant-time comparison of two PeerIds.
func (id PeerId) Equal(other PeerId) bool {
	return subtle.ConstantTimeCompare(id[:], other[:]) == 1
}

// IsZero reports whether id is the zero value.
func (id PeerId) IsZero() bool {
	var zero PeerId
	return id.Equal(zero)
}
