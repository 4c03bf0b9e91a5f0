// Package content implements the L0-L3 manifest and provenance model:
// publishing, preview, visibility-gated retrieval, and L3-as-L0 reference
// wrapping (spec.md §3, §4.3).
package content

import (
	"crypto/ed25519"
	"fmt"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// ContentType is the manifest's layer: raw source, extracted mentions,
// entity graphs, or syntheses (spec.md GLOSSARY).
type ContentType string

const (
	ContentTypeL0 ContentType = "L0"
	ContentTypeL1 ContentType = "L1"
	ContentTypeL2 ContentType = "L2"
	ContentTypeL3 ContentType = "L3"
)

// VisibilityKind discriminates the Visibility union (spec.md §3).
type VisibilityKind string

const (
	VisibilityPrivate VisibilityKind = "Private"
	VisibilityShared  VisibilityKind = "Shared"
	VisibilityPublic  VisibilityKind = "Public"
)

// Visibility is the manifest's access-control policy. Shared is populated
// only when Kind == VisibilityShared.
type Visibility struct {
	Kind   VisibilityKind     `cbor:"kind"`
	Shared []ndlcrypto.PeerId `cbor:"shared,omitempty"`
}

// Permits reports whether requester may be served this content, per
// spec.md §4.3's visibility enforcement rules. It does not distinguish
// Private/not-found from Shared/not-a-member — callers must map both to
// ErrorCodeNotFound at the wire boundary to avoid an existence leak
// (spec.md §7, §8 scenario 6).
func (v Visibility) Permits(requester ndlcrypto.PeerId) bool {
	switch v.Kind {
	case VisibilityPublic:
		return true
	case VisibilityShared:
		for _, p := range v.Shared {
			if p.Equal(requester) {
				return true
			}
		}
		return false
	case VisibilityPrivate:
		return false
	default:
		return false
	}
}

// Metadata is the manifest's descriptive, non-economic fields.
type Metadata struct {
	Title       string `cbor:"title"`
	ContentSize uint64 `cbor:"content_size"`
	Mime        string `cbor:"mime"`
	// CreatedAt is a unix-seconds timestamp, not time.Time, so it survives
	// the tag-forbidding canonical CBOR decode mode untouched.
	CreatedAt int64 `cbor:"created_at"`
}

// Economics carries the per-query price and the running query count.
// TotalQueries is intentionally NOT part of the signed view (see
// signablePreimage) — spec.md §9 Open Question (a) leaves this ambiguous
// and a signed counter would force a re-sign on every paid query.
type Economics struct {
	Price        uint64 `cbor:"price"`
	TotalQueries uint64 `cbor:"total_queries"`
}

// Role describes why a provenance entry's source was incorporated.
type Role string

const (
	RoleExtractedFrom Role = "extracted_from"
	RoleSynthesizedFrom Role = "synthesized_from"
	RoleReferencedAs  Role = "referenced_as"
)

// ProvenanceEntry records one source reference in a manifest's provenance
// chain (spec.md §3).
type ProvenanceEntry struct {
	SourceHash  ndlcrypto.Hash `cbor:"source_hash"`
	Role        Role           `cbor:"role"`
	ExtractedAt int64          `cbor:"extracted_at"`
}

// Manifest is the authoritative, signed record for one piece of content
// (spec.md §3).
type Manifest struct {
	Hash        ndlcrypto.Hash      `cbor:"hash"`
	Owner       ndlcrypto.PeerId    `cbor:"owner"`
	ContentType ContentType         `cbor:"content_type"`
	Visibility  Visibility          `cbor:"visibility"`
	Metadata    Metadata            `cbor:"metadata"`
	Economics   Economics           `cbor:"economics"`
	Provenance  []ProvenanceEntry   `cbor:"provenance"`
	Signature   ndlcrypto.Signature `cbor:"signature"`
}

// signablePreimage returns the canonical bytes that are hashed and signed:
// a copy of m with Signature and Economics.TotalQueries zeroed.
func signablePreimage(m Manifest) ([]byte, error) {
	view := m
	view.Signature = ndlcrypto.Signature{}
	view.Economics.TotalQueries = 0
	return wire.EncodeCanonical(view)
}

// Sign computes m.Hash is left untouched by this call — callers must set it
// from the content bytes before signing — and signs the manifest under
// sk, filling in m.Signature. The domain used is DomainContent, matching
// the manifest's own content-addressed hash.
func Sign(m Manifest, sk ed25519.PrivateKey) (Manifest, error) {
	preimage, err := signablePreimage(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: sign manifest: %w", err)
	}
	sig, err := ndlcrypto.Sign(sk, ndlcrypto.DomainContent, preimage)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: sign manifest: %w", err)
	}
	m.Signature = sig
	return m, nil
}

// VerifySignature checks invariant (ii) from spec.md §3: the signature
// verifies under owner's public key over the manifest with Signature
// zeroed (and TotalQueries excluded, per the open-question decision above).
func VerifySignature(m Manifest, ownerPub ed25519.PublicKey) bool {
	preimage, err := signablePreimage(m)
	if err != nil {
		return false
	}
	return ndlcrypto.Verify(ownerPub, ndlcrypto.DomainContent, preimage, m.Signature)
}

// ValidateInvariants checks the structural invariants from spec.md §3 that
// do not require a signature check: hash correctness (given the content
// bytes) is checked by callers that have the bytes; here we check
// (iii) L3 implies non-empty provenance.
func ValidateInvariants(m Manifest) error {
	if m.ContentType == ContentTypeL3 && len(m.Provenance) == 0 {
		return fmt.Errorf("content: L3 manifest must carry non-empty provenance")
	}
	return nil
}
