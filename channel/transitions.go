package channel

import (
	"crypto/ed25519"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/store"
)

// resolveSide reports whether pub belongs to rec.ParticipantA or
// ParticipantB, erroring if it belongs to neither.
func resolveSide(rec store.ChannelRecord, pub ed25519.PublicKey) (isA bool, err error) {
	id, err := ndlcrypto.PeerIdFromPublicKey(pub)
	if err != nil {
		return false, err
	}
	switch {
	case id.Equal(rec.ParticipantA):
		return true, nil
	case id.Equal(rec.ParticipantB):
		return false, nil
	default:
		return false, newErr(CodeBadSignature, "public key is not a channel participant")
	}
}

// Open creates a new channel, verifying both participants' signatures over
// the initial state before persisting it (spec.md §4.5 step 1). It is
// idempotent on the derived channel_id: calling Open twice for the same
// (participants, nonce, timestamp) returns the already-stored record.
func Open(st Store, participantA, participantB ndlcrypto.PeerId, capacity, balanceA, balanceB uint64, openNonce uint64, openTimestamp int64, pubA, pubB ed25519.PublicKey, sigA, sigB ndlcrypto.Signature) (store.ChannelRecord, error) {
	if err := checkConservation(balanceA, balanceB, capacity); err != nil {
		return store.ChannelRecord{}, err
	}
	id, err := ComputeChannelID(participantA, participantB, openNonce, openTimestamp)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !VerifyState(pubA, id, balanceA, balanceB, openNonce, sigA) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "participant A signature invalid")
	}
	if !VerifyState(pubB, id, balanceA, balanceB, openNonce, sigB) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "participant B signature invalid")
	}

	rec := store.ChannelRecord{
		ChannelID:     id,
		ParticipantA:  participantA,
		ParticipantB:  participantB,
		Capacity:      capacity,
		BalanceA:      balanceA,
		BalanceB:      balanceB,
		Nonce:         openNonce,
		State:         StateActive,
		LastUpdateSig: sigA,
	}
	if err := st.PutChannelNew(rec); err != nil {
		return store.ChannelRecord{}, err
	}
	stored, ok, err := st.GetChannel(id)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !ok {
		return store.ChannelRecord{}, newErr(CodeInternal, "channel vanished immediately after open")
	}
	return stored, nil
}

// Update applies a new balance split at nonce = current nonce + 1, signed
// by the payer (the side whose balance decreases), and serialized against
// concurrent updates via a CAS on (state, nonce) (spec.md §4.5 step 2).
func Update(st Store, channelID ndlcrypto.Hash, newBalanceA, newBalanceB, newNonce uint64, payerPub ed25519.PublicKey, sig ndlcrypto.Signature) (store.ChannelRecord, error) {
	current, ok, err := st.GetChannel(channelID)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !ok {
		return store.ChannelRecord{}, newErr(CodeNotFound, "no such channel")
	}
	if current.State != StateActive {
		return store.ChannelRecord{}, newErr(CodeState, "channel is not active")
	}
	if newNonce != current.Nonce+1 {
		return store.ChannelRecord{}, newErr(CodeNonce, "new_nonce must equal current nonce + 1")
	}
	if err := checkConservation(newBalanceA, newBalanceB, current.Capacity); err != nil {
		return store.ChannelRecord{}, err
	}

	payerIsA, err := resolveSide(current, payerPub)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if payerIsA {
		if newBalanceA > current.BalanceA {
			return store.ChannelRecord{}, newErr(CodeInsufficient, "payer balance must not increase")
		}
	} else {
		if newBalanceB > current.BalanceB {
			return store.ChannelRecord{}, newErr(CodeInsufficient, "payer balance must not increase")
		}
	}
	if !VerifyState(payerPub, channelID, newBalanceA, newBalanceB, newNonce, sig) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "update signature invalid")
	}

	next := current
	next.BalanceA, next.BalanceB, next.Nonce, next.LastUpdateSig = newBalanceA, newBalanceB, newNonce, sig
	if err := st.CASUpdateChannel(StateActive, current.Nonce, next); err != nil {
		return store.ChannelRecord{}, translateCASErr(err)
	}
	return next, nil
}

// CooperativeClose closes an active channel immediately, given both
// participants' signatures over the final state (spec.md §4.5 step 3).
func CooperativeClose(st Store, channelID ndlcrypto.Hash, finalBalanceA, finalBalanceB, finalNonce uint64, pubA, pubB ed25519.PublicKey, sigA, sigB ndlcrypto.Signature) (store.ChannelRecord, error) {
	current, ok, err := st.GetChannel(channelID)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !ok {
		return store.ChannelRecord{}, newErr(CodeNotFound, "no such channel")
	}
	if current.State != StateActive {
		return store.ChannelRecord{}, newErr(CodeState, "channel is not active")
	}
	if finalNonce < current.Nonce {
		return store.ChannelRecord{}, newErr(CodeNonce, "final nonce must not precede current nonce")
	}
	if err := checkConservation(finalBalanceA, finalBalanceB, current.Capacity); err != nil {
		return store.ChannelRecord{}, err
	}
	if !VerifyState(pubA, channelID, finalBalanceA, finalBalanceB, finalNonce, sigA) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "participant A signature invalid")
	}
	if !VerifyState(pubB, channelID, finalBalanceA, finalBalanceB, finalNonce, sigB) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "participant B signature invalid")
	}

	next := current
	next.BalanceA, next.BalanceB, next.Nonce = finalBalanceA, finalBalanceB, finalNonce
	next.State = StateClosed
	next.LastUpdateSig = sigA
	if err := st.CASUpdateChannel(StateActive, current.Nonce, next); err != nil {
		return store.ChannelRecord{}, translateCASErr(err)
	}
	return next, nil
}

// UnilateralClose starts a one-sided close at the channel's current
// agreed state, entering Closing with a dispute deadline (spec.md §4.5
// step 4). closerPub must belong to one of the two participants and sign
// the current (channel_id, balances, nonce) tuple to declare intent.
func UnilateralClose(st Store, channelID ndlcrypto.Hash, closerPub ed25519.PublicKey, sig ndlcrypto.Signature, now time.Time, disputeWindow time.Duration) (store.ChannelRecord, error) {
	current, ok, err := st.GetChannel(channelID)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !ok {
		return store.ChannelRecord{}, newErr(CodeNotFound, "no such channel")
	}
	if current.State != StateActive {
		return store.ChannelRecord{}, newErr(CodeState, "channel is not active")
	}
	if _, err := resolveSide(current, closerPub); err != nil {
		return store.ChannelRecord{}, err
	}
	if !VerifyState(closerPub, channelID, current.BalanceA, current.BalanceB, current.Nonce, sig) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "close signature invalid")
	}

	next := current
	next.State = StateClosing
	next.DisputeDeadline = now.Add(disputeWindow).Unix()
	next.LastUpdateSig = sig
	if err := st.CASUpdateChannel(StateActive, current.Nonce, next); err != nil {
		return store.ChannelRecord{}, translateCASErr(err)
	}
	return next, nil
}

// Dispute lets the counterparty of an in-progress unilateral close publish
// a higher-nonce signed state before the dispute window expires, which
// supersedes the closing state (spec.md §4.5 step 4, "No double spend").
// The transition is applied as Closing -> Disputed -> Closing so the
// override is independently observable, matching spec.md §8 scenario 5.
func Dispute(st Store, channelID ndlcrypto.Hash, newBalanceA, newBalanceB, newNonce uint64, signerPub ed25519.PublicKey, sig ndlcrypto.Signature, now time.Time, disputeWindow time.Duration) (store.ChannelRecord, error) {
	current, ok, err := st.GetChannel(channelID)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !ok {
		return store.ChannelRecord{}, newErr(CodeNotFound, "no such channel")
	}
	if current.State != StateClosing {
		return store.ChannelRecord{}, newErr(CodeState, "channel is not in a closing dispute window")
	}
	if now.Unix() >= current.DisputeDeadline {
		return store.ChannelRecord{}, newErr(CodeState, "dispute window has expired")
	}
	if newNonce <= current.Nonce {
		return store.ChannelRecord{}, newErr(CodeNonce, "dispute state must supersede the current nonce")
	}
	if err := checkConservation(newBalanceA, newBalanceB, current.Capacity); err != nil {
		return store.ChannelRecord{}, err
	}
	if _, err := resolveSide(current, signerPub); err != nil {
		return store.ChannelRecord{}, err
	}
	if !VerifyState(signerPub, channelID, newBalanceA, newBalanceB, newNonce, sig) {
		return store.ChannelRecord{}, newErr(CodeBadSignature, "dispute signature invalid")
	}

	disputed := current
	disputed.State = StateDisputed
	disputed.BalanceA, disputed.BalanceB, disputed.Nonce = newBalanceA, newBalanceB, newNonce
	disputed.LastUpdateSig = sig
	if err := st.CASUpdateChannel(StateClosing, current.Nonce, disputed); err != nil {
		return store.ChannelRecord{}, translateCASErr(err)
	}

	reclosing := disputed
	reclosing.State = StateClosing
	reclosing.DisputeDeadline = now.Add(disputeWindow).Unix()
	if err := st.CASUpdateChannel(StateDisputed, newNonce, reclosing); err != nil {
		return store.ChannelRecord{}, translateCASErr(err)
	}
	return reclosing, nil
}

// Finalize closes out a channel once its dispute window has elapsed,
// adopting whatever state (balances, nonce) is currently on record
// (spec.md §4.5 step 4, "the highest-nonce state finalizes").
func Finalize(st Store, channelID ndlcrypto.Hash, now time.Time) (store.ChannelRecord, error) {
	current, ok, err := st.GetChannel(channelID)
	if err != nil {
		return store.ChannelRecord{}, err
	}
	if !ok {
		return store.ChannelRecord{}, newErr(CodeNotFound, "no such channel")
	}
	if current.State != StateClosing {
		return store.ChannelRecord{}, newErr(CodeState, "channel is not in Closing")
	}
	if now.Unix() < current.DisputeDeadline {
		return store.ChannelRecord{}, newErr(CodeState, "dispute window has not yet expired")
	}

	next := current
	next.State = StateClosed
	if err := st.CASUpdateChannel(StateClosing, current.Nonce, next); err != nil {
		return store.ChannelRecord{}, translateCASErr(err)
	}
	return next, nil
}

func translateCASErr(err error) error {
	if store.IsConflict(err) {
		return newErr(CodeNonce, "lost race: channel state or nonce moved under us")
	}
	if store.IsNotFound(err) {
		return newErr(CodeNotFound, "no such channel")
	}
	return err
}
