// Package channel implements the off-chain payment-channel state machine
// of spec.md §4.5: open, update, cooperative close, unilateral close and
// dispute, with conservation and monotonic-nonce safety enforced through a
// single compare-and-swap persistence primitive.
package channel

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/store"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// DefaultDisputeWindow is the interval a unilateral close waits before
// finalizing, during which the counterparty may publish a higher-nonce
// state (spec.md §4.5 "DISPUTE_WINDOW_SECS"). spec.md leaves the exact
// value unspecified; 24h matches the order of magnitude used for CSV-style
// dispute timelocks in payment-channel designs generally.
const DefaultDisputeWindow = 24 * time.Hour

// State re-exports store.ChannelState so callers outside this package
// don't need to import store just to compare states.
type State = store.ChannelState

const (
	StateOpening  = store.ChannelStateOpening
	StateActive   = store.ChannelStateActive
	StateClosing  = store.ChannelStateClosing
	StateDisputed = store.ChannelStateDisputed
	StateClosed   = store.ChannelStateClosed
)

// Store is the persistence port this package needs; store.DB satisfies it
// structurally.
type Store interface {
	PutChannelNew(rec store.ChannelRecord) error
	GetChannel(id ndlcrypto.Hash) (store.ChannelRecord, bool, error)
	CASUpdateChannel(expectState store.ChannelState, expectNonce uint64, next store.ChannelRecord) error
}

// ComputeChannelID derives channel_id = hash(domain=0x02, canonical(sorted
// participants, nonce, open_timestamp)) per spec.md §3 "Channel".
func ComputeChannelID(a, b ndlcrypto.PeerId, nonce uint64, openTimestamp int64) (ndlcrypto.Hash, error) {
	first, second := a, b
	if bytes.Compare(b[:], a[:]) < 0 {
		first, second = b, a
	}
	preimage := struct {
		A             ndlcrypto.PeerId `cbor:"a"`
		B             ndlcrypto.PeerId `cbor:"b"`
		Nonce         uint64           `cbor:"nonce"`
		OpenTimestamp int64            `cbor:"open_timestamp"`
	}{first, second, nonce, openTimestamp}
	b2, err := wire.EncodeCanonical(preimage)
	if err != nil {
		return ndlcrypto.Hash{}, fmt.Errorf("channel: compute channel id: %w", err)
	}
	return ndlcrypto.HashDomain(ndlcrypto.DomainChannelState, b2), nil
}

// updateSigningPreimage is the exact byte shape signed for a channel-open
// or channel-update state transition: enough to pin channel_id, both
// balances and the nonce, so a signature cannot be replayed against a
// different channel or a different balance split.
type updateSigningPreimage struct {
	ChannelID ndlcrypto.Hash `cbor:"channel_id"`
	BalanceA  uint64         `cbor:"balance_a"`
	BalanceB  uint64         `cbor:"balance_b"`
	Nonce     uint64         `cbor:"nonce"`
}

// SignState signs a (channel_id, balanceA, balanceB, nonce) tuple under
// sk. Both participants sign the same preimage shape for open and
// cooperative-close; a unilateral update is signed only by its initiator.
func SignState(sk ed25519.PrivateKey, channelID ndlcrypto.Hash, balanceA, balanceB, nonce uint64) (ndlcrypto.Signature, error) {
	preimage := updateSigningPreimage{ChannelID: channelID, BalanceA: balanceA, BalanceB: balanceB, Nonce: nonce}
	b, err := wire.EncodeCanonical(preimage)
	if err != nil {
		return ndlcrypto.Signature{}, fmt.Errorf("channel: sign state: %w", err)
	}
	return ndlcrypto.Sign(sk, ndlcrypto.DomainChannelState, b)
}

// VerifyState checks a signature over the same tuple SignState signs.
func VerifyState(pub ed25519.PublicKey, channelID ndlcrypto.Hash, balanceA, balanceB, nonce uint64, sig ndlcrypto.Signature) bool {
	preimage := updateSigningPreimage{ChannelID: channelID, BalanceA: balanceA, BalanceB: balanceB, Nonce: nonce}
	b, err := wire.EncodeCanonical(preimage)
	if err != nil {
		return false
	}
	return ndlcrypto.Verify(pub, ndlcrypto.DomainChannelState, b, sig)
}

// checkConservation enforces spec.md §4.5's safety property: balances
// always sum to capacity.
func checkConservation(balanceA, balanceB, capacity uint64) error {
	if balanceA+balanceB != capacity {
		return newErr(CodeConservation, fmt.Sprintf("balances %d+%d != capacity %d", balanceA, balanceB, capacity))
	}
	return nil
}
