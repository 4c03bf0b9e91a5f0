package wire

import (
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// ErrorCode enumerates the wire-visible error reasons a peer can report in
// an Error payload (spec.md §4.2, §7). These are transported as data, not
// connection-closing by default.
type ErrorCode string

const (
	ErrorCodeNotFound      ErrorCode = "NotFound"
	ErrorCodeForbidden     ErrorCode = "Forbidden"
	ErrorCodeChannelNonce   ErrorCode = "ChannelNonce"
	ErrorCodeChannelState   ErrorCode = "ChannelState"
	ErrorCodeConservation   ErrorCode = "Conservation"
	ErrorCodeInsufficient   ErrorCode = "InsufficientBalance"
	ErrorCodeBadSignature   ErrorCode = "BadSignature"
	ErrorCodeBudgetExceeded ErrorCode = "BudgetExceeded"
	ErrorCodeRateLimited    ErrorCode = "RateLimited"
	ErrorCodeMalformed      ErrorCode = "Malformed"
	ErrorCodeInternal       ErrorCode = "Internal"
)

// ErrorPayload is the payload of a MessageTypeError frame.
type ErrorPayload struct {
	Code    ErrorCode `cbor:"code"`
	Message string    `cbor:"message"`
}

// ChannelBalances mirrors the {a, b} pair from spec.md §3 "Channel".
type ChannelBalances struct {
	A uint64 `cbor:"a"`
	B uint64 `cbor:"b"`
}

// PreviewRequestPayload asks for a manifest and its L1 summary, free of
// charge and without a channel (spec.md §4.3).
type PreviewRequestPayload struct {
	Hash ndlcrypto.Hash `cbor:"hash"`
}

// PreviewResponsePayload carries the manifest (CBOR-encoded, embedded as
// raw bytes to keep this payload decodable without importing content) plus
// a small L1 summary.
type PreviewResponsePayload struct {
	ManifestCBOR []byte         `cbor:"manifest"`
	Summary      L1SummaryWire  `cbor:"summary"`
}

// L1SummaryWire is the wire shape of content.L1Summary, duplicated here
// (rather than imported) so the wire package has no dependency on content.
type L1SummaryWire struct {
	CountsByCategory map[string]uint64 `cbor:"counts_by_category"`
	TopEntities      []string          `cbor:"top_entities"`
}

// QueryRequestPayload carries the paid query plus the channel update that
// funds it (spec.md §4.6 step 3).
type QueryRequestPayload struct {
	Hash          ndlcrypto.Hash  `cbor:"hash"`
	ChannelID     ndlcrypto.Hash  `cbor:"channel_id"`
	NewBalances   ChannelBalances `cbor:"new_balances"`
	NewNonce      uint64          `cbor:"new_nonce"`
	UpdateSig     ndlcrypto.Signature `cbor:"update_sig"`
}

// QueryResponsePayload is either a successful delivery or a typed error
// (spec.md §4.6 step 4-5).
type QueryResponsePayload struct {
	OK            bool           `cbor:"ok"`
	ContentBytes  []byte         `cbor:"content_bytes,omitempty"`
	Summary       L1SummaryWire  `cbor:"summary,omitempty"`
	Err           *ErrorPayload  `cbor:"err,omitempty"`
}

// ChannelOpenPayload is exchanged to open a channel (spec.md §4.5 step 1).
type ChannelOpenPayload struct {
	ParticipantA   ndlcrypto.PeerId `cbor:"participant_a"`
	ParticipantB   ndlcrypto.PeerId `cbor:"participant_b"`
	Capacity       uint64           `cbor:"capacity"`
	InitialBalances ChannelBalances `cbor:"initial_balances"`
	OpenNonce      uint64           `cbor:"open_nonce"`
	OpenTimestamp  int64            `cbor:"open_timestamp"`
	Sig            ndlcrypto.Signature `cbor:"sig"`
}

// ChannelUpdatePayload is the hot-path message of spec.md §4.5 step 2.
type ChannelUpdatePayload struct {
	ChannelID   ndlcrypto.Hash      `cbor:"channel_id"`
	NewBalances ChannelBalances     `cbor:"new_balances"`
	NewNonce    uint64              `cbor:"new_nonce"`
	Sig         ndlcrypto.Signature `cbor:"sig"`
}

// ChannelClosePayload is used for both cooperative and unilateral close
// (spec.md §4.5 steps 3-4); Cooperative=false with only one signature
// present starts the dispute window.
type ChannelClosePayload struct {
	ChannelID    ndlcrypto.Hash      `cbor:"channel_id"`
	FinalBalances ChannelBalances    `cbor:"final_balances"`
	FinalNonce   uint64              `cbor:"final_nonce"`
	Cooperative  bool                `cbor:"cooperative"`
	SigA         *ndlcrypto.Signature `cbor:"sig_a,omitempty"`
	SigB         *ndlcrypto.Signature `cbor:"sig_b,omitempty"`
}

// ManifestAnnouncePayload is broadcast on publish/visibility-change for any
// non-private manifest (spec.md §4.3, §4.8).
type ManifestAnnouncePayload struct {
	ManifestCBOR []byte           `cbor:"manifest"`
	Provider     ndlcrypto.PeerId `cbor:"provider"`
	Withdraw     bool             `cbor:"withdraw"`
}
