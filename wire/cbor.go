package wire

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// canonicalEncMode enforces RFC 8949 canonical CBOR: map keys sorted
// lexicographically by their encoded form, shortest-form integers, and no
// indefinite-length items. Any library used for CBOR in this codebase MUST
// be pinned to this mode (spec.md §9 "Canonical CBOR").
var canonicalEncMode cbor.EncMode

// canonicalDecMode additionally rejects non-canonical input on decode, so a
// frame whose payload was encoded by a buggy or malicious peer is rejected
// rather than silently accepted.
var canonicalDecMode cbor.DecMode

func init() {
	encOpts := cbor.CanonicalEncOptions()
	mode, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: invalid canonical CBOR encode options: %v", err))
	}
	canonicalEncMode = mode

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		TagsMd:      cbor.TagsForbidden,
	}
	dmode, err := decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: invalid canonical CBOR decode options: %v", err))
	}
	canonicalDecMode = dmode
}

// EncodeCanonical encodes v as deterministic, canonical CBOR. Encoding the
// same value twice (even across process restarts) produces byte-identical
// output.
func EncodeCanonical(v interface{}) ([]byte, error) {
	b, err := canonicalEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: cbor encode: %w", err)
	}
	return b, nil
}

// DecodeCanonical decodes canonical CBOR into v, rejecting indefinite-length
// items, duplicate map keys, CBOR tags, and any input that does not re-encode
// to the same bytes under canonicalEncMode. A payload that round-trips
// through EncodeCanonical/DecodeCanonical always decodes successfully; a
// hand-crafted non-canonical payload is rejected with ErrNonCanonicalCBOR.
func DecodeCanonical(b []byte, v interface{}) error {
	var generic interface{}
	if err := canonicalDecMode.Unmarshal(b, &generic); err != nil {
		return fmterr(ErrNonCanonicalCBOR, err.Error())
	}
	reencoded, err := canonicalEncMode.Marshal(generic)
	if err != nil || !bytes.Equal(reencoded, b) {
		return fmterr(ErrNonCanonicalCBOR, "input is not in canonical form")
	}
	if err := canonicalDecMode.Unmarshal(b, v); err != nil {
		return fmterr(ErrNonCanonicalCBOR, err.Error())
	}
	return nil
}
