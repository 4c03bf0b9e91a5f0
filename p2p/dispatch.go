package p2p

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gdgiangi/nodalync-protocol-sub004/channel"
	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/query"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// Dispatcher routes inbound frames by MessageType to the content, channel
// and query handlers, per spec.md §4.8: "each handler is stateless with
// respect to network and uses only the state stores." Dispatcher itself
// only holds network-facing state (rate limits, reputations, the identity
// directory learned from handshakes, the DHT) — everything durable is
// delegated to the handlers' own stores.
type Dispatcher struct {
	LocalID  ndlcrypto.PeerId
	LocalSK  ed25519.PrivateKey
	Content  *content.Service
	Channels channel.Store
	Query    *query.Service
	DHT      *DHT
	Limiter  *RateLimiter

	DisputeWindow time.Duration
	Logger        zerolog.Logger

	mu          sync.Mutex
	identities  map[ndlcrypto.PeerId]ed25519.PublicKey
	reputations map[ndlcrypto.PeerId]*Reputation
}

// NewDispatcher constructs a Dispatcher with fresh rate-limit and
// reputation tables.
func NewDispatcher(localID ndlcrypto.PeerId, localSK ed25519.PrivateKey, c *content.Service, channels channel.Store, q *query.Service, dht *DHT, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		LocalID:       localID,
		LocalSK:       localSK,
		Content:       c,
		Channels:      channels,
		Query:         q,
		DHT:           dht,
		Limiter:       NewRateLimiter(DefaultRequestsPerSecond, DefaultBurst),
		DisputeWindow: channel.DefaultDisputeWindow,
		Logger:        logger.With().Str("component", "p2p_dispatch").Logger(),
		identities:    make(map[ndlcrypto.PeerId]ed25519.PublicKey),
		reputations:   make(map[ndlcrypto.PeerId]*Reputation),
	}
}

// Learn records the Ed25519 public key a handshake authenticated peer id
// to, so later messages that need a second participant's key (cooperative
// channel close, dispute) can resolve it without a separate directory
// lookup protocol.
func (d *Dispatcher) Learn(id ndlcrypto.PeerId, pub ed25519.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[id] = pub
}

func (d *Dispatcher) identityOf(id ndlcrypto.PeerId) (ed25519.PublicKey, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pub, ok := d.identities[id]
	return pub, ok
}

func (d *Dispatcher) reputationOf(id ndlcrypto.PeerId) *Reputation {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.reputations[id]
	if !ok {
		r = NewReputation()
		d.reputations[id] = r
	}
	return r
}

// Dispatch handles one verified inbound frame from senderPub (the
// identity the peer's connection authenticated to) and returns the
// message to send back, if any. A nil payload means no reply is sent.
func (d *Dispatcher) Dispatch(frame *wire.Frame, senderPub ed25519.PublicKey, now time.Time) (wire.MessageType, interface{}) {
	d.Learn(frame.Sender, senderPub)
	rep := d.reputationOf(frame.Sender)

	if !d.Limiter.Allow(frame.Sender) {
		rep.RecordViolation(now, ViolationRateLimited)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeRateLimited, Message: "rate limit exceeded"}
	}

	switch frame.Type {
	case wire.MessageTypePreviewRequest:
		return d.handlePreview(frame, rep, now)
	case wire.MessageTypeQueryRequest:
		return d.handleQuery(frame, senderPub, rep, now)
	case wire.MessageTypeManifestAnnounce:
		return d.handleAnnounce(frame, rep, now)
	case wire.MessageTypeChannelOpen:
		return d.handleChannelOpen(frame, senderPub, rep, now)
	case wire.MessageTypeChannelUpdate:
		return d.handleChannelUpdate(frame, senderPub, rep, now)
	case wire.MessageTypeChannelClose:
		return d.handleChannelClose(frame, rep, now)
	default:
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "unhandled message type"}
	}
}

func (d *Dispatcher) handlePreview(frame *wire.Frame, rep *Reputation, now time.Time) (wire.MessageType, interface{}) {
	var req wire.PreviewRequestPayload
	if err := wire.DecodeCanonical(frame.Payload, &req); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed preview request"}
	}
	m, summary, err := d.Query.Preview(req.Hash, frame.Sender)
	if err != nil {
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeNotFound, Message: "no such content"}
	}
	manifestCBOR, err := wire.EncodeCanonical(m)
	if err != nil {
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeInternal, Message: "encode manifest"}
	}
	return wire.MessageTypePreviewResponse, &wire.PreviewResponsePayload{ManifestCBOR: manifestCBOR, Summary: summary.ToWire()}
}

func (d *Dispatcher) handleQuery(frame *wire.Frame, senderPub ed25519.PublicKey, rep *Reputation, now time.Time) (wire.MessageType, interface{}) {
	var req wire.QueryRequestPayload
	if err := wire.DecodeCanonical(frame.Payload, &req); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed query request"}
	}
	resp, err := d.Query.HandleQueryRequest(req, frame.Sender, senderPub, now)
	if err != nil {
		d.Logger.Error().Err(err).Str("peer_id", frame.Sender.String()).Msg("query handling failed")
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeInternal, Message: "internal error"}
	}
	if !resp.OK {
		if resp.Err != nil && resp.Err.Code == wire.ErrorCodeBadSignature {
			rep.RecordViolation(now, ViolationBadSignature)
		}
		return wire.MessageTypeQueryResponse, &resp
	}
	rep.RecordSuccess(now)
	return wire.MessageTypeQueryResponse, &resp
}

func (d *Dispatcher) handleAnnounce(frame *wire.Frame, rep *Reputation, now time.Time) (wire.MessageType, interface{}) {
	var req wire.ManifestAnnouncePayload
	if err := wire.DecodeCanonical(frame.Payload, &req); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed announcement"}
	}
	if req.Withdraw {
		var m content.Manifest
		if err := wire.DecodeCanonical(req.ManifestCBOR, &m); err == nil {
			d.DHT.Withdraw(m.Hash, req.Provider)
		}
		return 0, nil
	}
	var m content.Manifest
	if err := wire.DecodeCanonical(req.ManifestCBOR, &m); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed manifest"}
	}
	// The announcing peer is trusted to be the manifest's own owner for
	// signature verification here: a relayed third-party announcement
	// would need a separate identity lookup this dispatcher doesn't yet
	// maintain a directory for.
	if ownerPub, ok := d.identityOf(req.Provider); ok && !content.VerifySignature(m, ownerPub) {
		rep.RecordViolation(now, ViolationBadSignature)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeBadSignature, Message: "manifest signature invalid"}
	}
	d.DHT.Announce(m.Hash, req.Provider, m)
	return 0, nil
}

func (d *Dispatcher) handleChannelOpen(frame *wire.Frame, senderPub ed25519.PublicKey, rep *Reputation, now time.Time) (wire.MessageType, interface{}) {
	var req wire.ChannelOpenPayload
	if err := wire.DecodeCanonical(frame.Payload, &req); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed channel open"}
	}
	localPub, ok := d.LocalSK.Public().(ed25519.PublicKey)
	if !ok {
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeInternal, Message: "local identity unavailable"}
	}
	responderSig, err := channel.SignState(d.LocalSK, mustChannelID(req), req.InitialBalances.A, req.InitialBalances.B, req.OpenNonce)
	if err != nil {
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeInternal, Message: "sign channel open"}
	}
	rec, err := channel.Open(d.Channels, req.ParticipantA, req.ParticipantB, req.Capacity, req.InitialBalances.A, req.InitialBalances.B, req.OpenNonce, req.OpenTimestamp, senderPub, localPub, req.Sig, responderSig)
	if err != nil {
		rep.RecordViolation(now, ViolationBadSignature)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeBadSignature, Message: err.Error()}
	}
	return wire.MessageTypeChannelOpen, &wire.ChannelOpenPayload{
		ParticipantA:    rec.ParticipantA,
		ParticipantB:    rec.ParticipantB,
		Capacity:        rec.Capacity,
		InitialBalances: wire.ChannelBalances{A: rec.BalanceA, B: rec.BalanceB},
		OpenNonce:       rec.Nonce,
		OpenTimestamp:   req.OpenTimestamp,
		Sig:             responderSig,
	}
}

func (d *Dispatcher) handleChannelUpdate(frame *wire.Frame, senderPub ed25519.PublicKey, rep *Reputation, now time.Time) (wire.MessageType, interface{}) {
	var req wire.ChannelUpdatePayload
	if err := wire.DecodeCanonical(frame.Payload, &req); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed channel update"}
	}
	if _, err := channel.Update(d.Channels, req.ChannelID, req.NewBalances.A, req.NewBalances.B, req.NewNonce, senderPub, req.Sig); err != nil {
		rep.RecordViolation(now, ViolationNonceReplay)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: channelErrCode(err), Message: err.Error()}
	}
	return 0, nil
}

func (d *Dispatcher) handleChannelClose(frame *wire.Frame, rep *Reputation, now time.Time) (wire.MessageType, interface{}) {
	var req wire.ChannelClosePayload
	if err := wire.DecodeCanonical(frame.Payload, &req); err != nil {
		rep.RecordViolation(now, ViolationMalformed)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "malformed channel close"}
	}
	rec, found, err := d.Channels.GetChannel(req.ChannelID)
	if err != nil || !found {
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeChannelState, Message: "no such channel"}
	}
	pubA, okA := d.identityOf(rec.ParticipantA)
	pubB, okB := d.identityOf(rec.ParticipantB)

	if req.Cooperative {
		if !okA || !okB || req.SigA == nil || req.SigB == nil {
			return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeInternal, Message: "cannot verify cooperative close: unknown counterparty identity"}
		}
		if _, err := channel.CooperativeClose(d.Channels, req.ChannelID, req.FinalBalances.A, req.FinalBalances.B, req.FinalNonce, pubA, pubB, *req.SigA, *req.SigB); err != nil {
			rep.RecordViolation(now, ViolationBadSignature)
			return wire.MessageTypeError, &wire.ErrorPayload{Code: channelErrCode(err), Message: err.Error()}
		}
		return 0, nil
	}

	closerPub, sig := pubA, req.SigA
	if sig == nil {
		closerPub, sig = pubB, req.SigB
	}
	if sig == nil {
		return wire.MessageTypeError, &wire.ErrorPayload{Code: wire.ErrorCodeMalformed, Message: "unilateral close requires exactly one signature"}
	}
	if rec.State == channel.StateActive {
		if _, err := channel.UnilateralClose(d.Channels, req.ChannelID, closerPub, *sig, now, d.DisputeWindow); err != nil {
			rep.RecordViolation(now, ViolationBadSignature)
			return wire.MessageTypeError, &wire.ErrorPayload{Code: channelErrCode(err), Message: err.Error()}
		}
		return 0, nil
	}
	if _, err := channel.Dispute(d.Channels, req.ChannelID, req.FinalBalances.A, req.FinalBalances.B, req.FinalNonce, closerPub, *sig, now, d.DisputeWindow); err != nil {
		rep.RecordViolation(now, ViolationBadSignature)
		return wire.MessageTypeError, &wire.ErrorPayload{Code: channelErrCode(err), Message: err.Error()}
	}
	return 0, nil
}

func mustChannelID(req wire.ChannelOpenPayload) ndlcrypto.Hash {
	id, err := channel.ComputeChannelID(req.ParticipantA, req.ParticipantB, req.OpenNonce, req.OpenTimestamp)
	if err != nil {
		// ComputeChannelID only fails if canonical CBOR encoding fails,
		// which cannot happen for this fixed, already-decoded struct.
		panic(err)
	}
	return id
}

func channelErrCode(err error) wire.ErrorCode {
	ce, ok := err.(*channel.Error)
	if !ok {
		return wire.ErrorCodeInternal
	}
	switch ce.Code {
	case channel.CodeNotFound:
		return wire.ErrorCodeChannelState
	case channel.CodeNonce:
		return wire.ErrorCodeChannelNonce
	case channel.CodeState:
		return wire.ErrorCodeChannelState
	case channel.CodeConservation:
		return wire.ErrorCodeConservation
	case channel.CodeInsufficient:
		return wire.ErrorCodeInsufficient
	case channel.CodeBadSignature:
		return wire.ErrorCodeBadSignature
	default:
		return wire.ErrorCodeInternal
	}
}
