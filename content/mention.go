package content

import (
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// ByteRange is a half-open [Start, End) span into the source content's
// bytes that a Mention was extracted from.
type ByteRange struct {
	Start uint64 `cbor:"start"`
	End   uint64 `cbor:"end"`
}

// Mention is one L1 extraction result: a located, categorized reference to
// an entity within a source's bytes (spec.md §3 "Mention").
type Mention struct {
	SourceHash ndlcrypto.Hash `cbor:"source_hash"`
	ByteRange  ByteRange      `cbor:"byte_range"`
	Category   string         `cbor:"category"`
	Entities   []string       `cbor:"entities"`
	Text       string         `cbor:"text"`
}
