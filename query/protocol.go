// Package query implements the paid-query protocol of spec.md §4.6: a
// requester spends a channel update to buy one piece of content, the owner
// verifies and atomically applies that update, enqueues its settlement
// distribution, and returns the content plus its L1 summary.
package query

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/gdgiangi/nodalync-protocol-sub004/channel"
	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/settlement"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// Service composes the content, channel and settlement layers into the
// owner-side query handler, for a single node acting as the content owner
// on its own channels.
type Service struct {
	Content    *content.Service
	Channels   channel.Store
	Settlement *settlement.Queue
	Extractor  content.Extractor
	Replay     *ReplayCache
}

// NewService constructs a Service with a fresh replay cache at the default
// window (spec.md §9 Open Question (b)).
func NewService(c *content.Service, channels channel.Store, q *settlement.Queue, extractor content.Extractor) *Service {
	return &Service{
		Content:    c,
		Channels:   channels,
		Settlement: q,
		Extractor:  extractor,
		Replay:     NewReplayCache(DefaultReplayWindow),
	}
}

// Preview serves spec.md §4.6's free preview step: manifest plus L1 summary,
// subject to visibility, no channel involved.
func (s *Service) Preview(hash ndlcrypto.Hash, requester ndlcrypto.PeerId) (content.Manifest, content.L1Summary, error) {
	return s.Content.Preview(hash, requester, s.Extractor)
}

// BuildQueryRequest is the requester-side half of spec.md §4.6 step 3: it
// computes the new balance split that transfers exactly price from the
// requester to the channel counterparty at new_nonce = old_nonce+1, signs
// it, and returns the wire payload ready to send.
func BuildQueryRequest(sk ed25519.PrivateKey, hash, channelID ndlcrypto.Hash, oldBalanceA, oldBalanceB uint64, requesterIsA bool, price, oldNonce uint64) (wire.QueryRequestPayload, error) {
	newBalanceA, newBalanceB := oldBalanceA, oldBalanceB
	if requesterIsA {
		if price > oldBalanceA {
			return wire.QueryRequestPayload{}, newErr(CodePriceMismatch, "insufficient channel balance to cover price")
		}
		newBalanceA -= price
		newBalanceB += price
	} else {
		if price > oldBalanceB {
			return wire.QueryRequestPayload{}, newErr(CodePriceMismatch, "insufficient channel balance to cover price")
		}
		newBalanceB -= price
		newBalanceA += price
	}
	newNonce := oldNonce + 1
	sig, err := channel.SignState(sk, channelID, newBalanceA, newBalanceB, newNonce)
	if err != nil {
		return wire.QueryRequestPayload{}, fmt.Errorf("query: build request: %w", err)
	}
	return wire.QueryRequestPayload{
		Hash:        hash,
		ChannelID:   channelID,
		NewBalances: wire.ChannelBalances{A: newBalanceA, B: newBalanceB},
		NewNonce:    newNonce,
		UpdateSig:   sig,
	}, nil
}

// HandleQueryRequest is the owner-side half of spec.md §4.6 steps 4-5: it
// verifies the manifest, visibility, channel state and proposed update,
// then atomically applies the channel update, enqueues the distribution,
// increments total_queries, and returns the content. A rejected request
// returns QueryResponsePayload{OK:false} without advancing the channel;
// the returned Go error is reserved for transport/internal failures.
func (s *Service) HandleQueryRequest(req wire.QueryRequestPayload, requester ndlcrypto.PeerId, requesterPub ed25519.PublicKey, now time.Time) (wire.QueryResponsePayload, error) {
	if cached, ok := s.Replay.Get(req.ChannelID, req.NewNonce, now); ok {
		return cached, nil
	}

	m, err := s.Content.ManifestFor(req.Hash, requester)
	if err != nil {
		return errResponse(wire.ErrorCodeNotFound, "no such content"), nil
	}

	current, found, err := s.Channels.GetChannel(req.ChannelID)
	if err != nil {
		return wire.QueryResponsePayload{}, fmt.Errorf("query: handle request: %w", err)
	}
	if !found {
		return errResponse(wire.ErrorCodeChannelState, "no such channel"), nil
	}
	requesterIsA := current.ParticipantA.Equal(requester)
	if !requesterIsA && !current.ParticipantB.Equal(requester) {
		return errResponse(wire.ErrorCodeForbidden, "requester is not a channel participant"), nil
	}

	var paidToOwner uint64
	if requesterIsA {
		if current.BalanceA < req.NewBalances.A {
			return errResponse(wire.ErrorCodeInsufficient, "proposed update does not decrease requester balance"), nil
		}
		paidToOwner = current.BalanceA - req.NewBalances.A
	} else {
		if current.BalanceB < req.NewBalances.B {
			return errResponse(wire.ErrorCodeInsufficient, "proposed update does not decrease requester balance"), nil
		}
		paidToOwner = current.BalanceB - req.NewBalances.B
	}
	if paidToOwner != m.Economics.Price {
		return errResponse(wire.ErrorCodeInsufficient, "proposed transfer does not equal content price"), nil
	}

	updated, err := channel.Update(s.Channels, req.ChannelID, req.NewBalances.A, req.NewBalances.B, req.NewNonce, requesterPub, req.UpdateSig)
	if err != nil {
		return errResponse(channelErrorCode(err), err.Error()), nil
	}

	if _, err := s.Settlement.Enqueue(m.Owner, m.Economics.Price, req.ChannelID, updated.Nonce, now.UTC().Unix()); err != nil {
		return wire.QueryResponsePayload{}, fmt.Errorf("query: enqueue settlement: %w", err)
	}
	if _, err := s.Content.RecordQuery(req.Hash); err != nil {
		return wire.QueryResponsePayload{}, fmt.Errorf("query: record query: %w", err)
	}

	_, data, err := s.Content.GetContent(req.Hash, requester)
	if err != nil {
		return wire.QueryResponsePayload{}, fmt.Errorf("query: get content: %w", err)
	}
	summary, err := s.Content.Summarize(m, s.Extractor)
	if err != nil {
		return wire.QueryResponsePayload{}, fmt.Errorf("query: summarize: %w", err)
	}

	resp := wire.QueryResponsePayload{OK: true, ContentBytes: data, Summary: summary.ToWire()}
	s.Replay.Put(req.ChannelID, req.NewNonce, resp, now)
	return resp, nil
}

func errResponse(code wire.ErrorCode, msg string) wire.QueryResponsePayload {
	return wire.QueryResponsePayload{OK: false, Err: &wire.ErrorPayload{Code: code, Message: msg}}
}

func channelErrorCode(err error) wire.ErrorCode {
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
