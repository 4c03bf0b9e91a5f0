package content

import (
	"crypto/ed25519"
	"fmt"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// ManifestStore is the persistence port a Service needs for manifests. The
// store package provides the bbolt-backed implementation; Service only
// depends on this interface so it can be unit tested against a fake.
type ManifestStore interface {
	PutManifest(m Manifest) error
	GetManifest(hash ndlcrypto.Hash) (Manifest, bool, error)
	IncrementTotalQueries(hash ndlcrypto.Hash) (Manifest, error)
	DeleteManifest(hash ndlcrypto.Hash) error
}

// BlobStore is the persistence port for content-addressed blob bytes.
type BlobStore interface {
	PutBlob(hash ndlcrypto.Hash, data []byte) error
	GetBlob(hash ndlcrypto.Hash) ([]byte, bool, error)
	DeleteBlob(hash ndlcrypto.Hash) error
}

// Extractor runs L1 extraction over raw bytes. Production nodes plug in a
// concrete extractor; the extractor package only defines the interface
// (spec.md Non-goals: concrete extraction logic is out of scope).
type Extractor interface {
	Extract(data []byte, mime string) ([]Mention, error)
}

// Service implements the publish / preview / retrieve / visibility
// operations of spec.md §4.3, against the owning node's own identity.
type Service struct {
	Manifests ManifestStore
	Blobs     BlobStore
	Identity  ndlcrypto.KeyPair
}

// PublishInput carries the fields a caller supplies when publishing new
// content; Hash, Owner and Signature are derived by Publish itself.
type PublishInput struct {
	Data        []byte
	ContentType ContentType
	Visibility  Visibility
	Title       string
	Mime        string
	Price       uint64
	Provenance  []ProvenanceEntry
}

// Publish stores the content bytes, builds and signs a manifest over them,
// and persists the manifest (spec.md §4.3 step "publish").
func (s *Service) Publish(in PublishInput) (Manifest, error) {
	owner, err := ndlcrypto.PeerIdFromPublicKey(s.Identity.Public)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: publish: %w", err)
	}
	m := Manifest{
		Hash:        ndlcrypto.ContentHash(in.Data),
		Owner:       owner,
		ContentType: in.ContentType,
		Visibility:  in.Visibility,
		Metadata: Metadata{
			Title:       in.Title,
			ContentSize: uint64(len(in.Data)),
			Mime:        in.Mime,
			CreatedAt:   time.Now().UTC().Unix(),
		},
		Economics:  Economics{Price: in.Price, TotalQueries: 0},
		Provenance: in.Provenance,
	}
	if err := ValidateInvariants(m); err != nil {
		return Manifest{}, &Error{Code: CodeInvalid, Msg: err.Error()}
	}
	signed, err := Sign(m, s.Identity.Private)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: publish: %w", err)
	}
	if err := s.Blobs.PutBlob(signed.Hash, in.Data); err != nil {
		return Manifest{}, fmt.Errorf("content: publish: store blob: %w", err)
	}
	if err := s.Manifests.PutManifest(signed); err != nil {
		return Manifest{}, fmt.Errorf("content: publish: store manifest: %w", err)
	}
	return signed, nil
}

// lookup fetches a manifest and enforces visibility, collapsing both
// "no such manifest" and "visibility denies requester" into CodeNotFound.
func (s *Service) lookup(hash ndlcrypto.Hash, requester ndlcrypto.PeerId) (Manifest, error) {
	m, ok, err := s.Manifests.GetManifest(hash)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: lookup: %w", err)
	}
	if !ok {
		return Manifest{}, newErr(CodeNotFound, "no such manifest")
	}
	if m.Owner.Equal(requester) {
		return m, nil
	}
	if !m.Visibility.Permits(requester) {
		return Manifest{}, newErr(CodeNotFound, "no such manifest")
	}
	return m, nil
}

// ManifestFor looks up a manifest and enforces visibility for requester,
// exposing the lookup/visibility-gate logic other packages (query) need
// without duplicating it.
func (s *Service) ManifestFor(hash ndlcrypto.Hash, requester ndlcrypto.PeerId) (Manifest, error) {
	return s.lookup(hash, requester)
}

// Summarize runs extractor over m's blob and returns its L1 summary,
// exposing the same summarization logic Preview uses internally.
func (s *Service) Summarize(m Manifest, extractor Extractor) (L1Summary, error) {
	return s.summarize(m, extractor)
}

// Preview returns a manifest and its L1 summary without requiring payment,
// subject to the same visibility gate as a paid query (spec.md §4.3, §4.6
// step "preview").
func (s *Service) Preview(hash ndlcrypto.Hash, requester ndlcrypto.PeerId, extractor Extractor) (Manifest, L1Summary, error) {
	m, err := s.lookup(hash, requester)
	if err != nil {
		return Manifest{}, L1Summary{}, err
	}
	summary, err := s.summarize(m, extractor)
	if err != nil {
		return Manifest{}, L1Summary{}, err
	}
	return m, summary, nil
}

func (s *Service) summarize(m Manifest, extractor Extractor) (L1Summary, error) {
	if extractor == nil {
		return L1Summary{CountsByCategory: map[string]uint64{}}, nil
	}
	data, ok, err := s.Blobs.GetBlob(m.Hash)
	if err != nil {
		return L1Summary{}, fmt.Errorf("content: summarize: %w", err)
	}
	if !ok {
		return L1Summary{}, newErr(CodeInternal, "manifest present but blob missing")
	}
	mentions, err := extractor.Extract(data, m.Metadata.Mime)
	if err != nil {
		return L1Summary{}, fmt.Errorf("content: extract: %w", err)
	}
	return SummarizeMentions(mentions, 10), nil
}

// GetContent returns the manifest and its raw bytes, enforcing visibility.
// This is the authorized path used after a query's payment has cleared;
// callers are responsible for payment, not this method.
func (s *Service) GetContent(hash ndlcrypto.Hash, requester ndlcrypto.PeerId) (Manifest, []byte, error) {
	m, err := s.lookup(hash, requester)
	if err != nil {
		return Manifest{}, nil, err
	}
	data, ok, err := s.Blobs.GetBlob(m.Hash)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("content: get content: %w", err)
	}
	if !ok {
		return Manifest{}, nil, newErr(CodeInternal, "manifest present but blob missing")
	}
	return m, data, nil
}

// RecordQuery increments total_queries on a successfully paid query
// (spec.md §4.3 invariant: total_queries is monotonically non-decreasing).
func (s *Service) RecordQuery(hash ndlcrypto.Hash) (Manifest, error) {
	m, err := s.Manifests.IncrementTotalQueries(hash)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: record query: %w", err)
	}
	return m, nil
}

// UpdateVisibility changes a manifest's visibility; only the owner may do
// this, re-signing the manifest under the new visibility.
func (s *Service) UpdateVisibility(hash ndlcrypto.Hash, newVisibility Visibility, requesterPriv ed25519.PrivateKey) (Manifest, error) {
	m, ok, err := s.Manifests.GetManifest(hash)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: update visibility: %w", err)
	}
	if !ok {
		return Manifest{}, newErr(CodeNotFound, "no such manifest")
	}
	owner, err := ndlcrypto.PeerIdFromPublicKey(requesterPriv.Public().(ed25519.PublicKey))
	if err != nil {
		return Manifest{}, fmt.Errorf("content: update visibility: %w", err)
	}
	if !m.Owner.Equal(owner) {
		return Manifest{}, newErr(CodeForbidden, "only the owner may change visibility")
	}
	m.Visibility = newVisibility
	signed, err := Sign(m, requesterPriv)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: update visibility: sign: %w", err)
	}
	if err := s.Manifests.PutManifest(signed); err != nil {
		return Manifest{}, fmt.Errorf("content: update visibility: store: %w", err)
	}
	return signed, nil
}

// Delete removes a manifest and its blob; only the owner may do this.
func (s *Service) Delete(hash ndlcrypto.Hash, requester ndlcrypto.PeerId) error {
	m, ok, err := s.Manifests.GetManifest(hash)
	if err != nil {
		return fmt.Errorf("content: delete: %w", err)
	}
	if !ok {
		return newErr(CodeNotFound, "no such manifest")
	}
	if !m.Owner.Equal(requester) {
		return newErr(CodeForbidden, "only the owner may delete")
	}
	if err := s.Manifests.DeleteManifest(hash); err != nil {
		return fmt.Errorf("content: delete: %w", err)
	}
	if err := s.Blobs.DeleteBlob(hash); err != nil {
		return fmt.Errorf("content: delete: %w", err)
	}
	return nil
}

// l0Reference is the tiny pointer document ReferenceL3AsL0 publishes: just
// enough to make an L3 synthesis independently citable as a root source,
// without duplicating its bytes.
type l0Reference struct {
	ReferencedHash ndlcrypto.Hash `cbor:"referenced_hash"`
}

// ReferenceL3AsL0 wraps an existing L3 synthesis in a new, distinct L0
// manifest that points back at it via provenance, so the synthesis can
// itself be cited as a primary source by later L1 extraction (spec.md §12
// supplement: L3-as-L0 reference wrapping).
func (s *Service) ReferenceL3AsL0(sourceHash ndlcrypto.Hash, requester ndlcrypto.PeerId) (Manifest, error) {
	source, err := s.lookup(sourceHash, requester)
	if err != nil {
		return Manifest{}, err
	}
	if source.ContentType != ContentTypeL3 {
		return Manifest{}, newErr(CodeInvalid, "only L3 syntheses may be referenced as L0")
	}
	ref := l0Reference{ReferencedHash: sourceHash}
	data, err := wire.EncodeCanonical(ref)
	if err != nil {
		return Manifest{}, fmt.Errorf("content: reference l3 as l0: %w", err)
	}
	return s.Publish(PublishInput{
		Data:        data,
		ContentType: ContentTypeL0,
		Visibility:  source.Visibility,
		Title:       "reference: " + source.Metadata.Title,
		Mime:        "application/x-nodalync-reference",
		Price:       source.Economics.Price,
		Provenance: []ProvenanceEntry{{
			SourceHash:  sourceHash,
			Role:        RoleReferencedAs,
			ExtractedAt: time.Now().UTC().Unix(),
		}},
	})
}
