package p2p

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gdgiangi/nodalync-protocol-sub004/channel"
	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/query"
	"github.com/gdgiangi/nodalync-protocol-sub004/settlement"
	"github.com/gdgiangi/nodalync-protocol-sub004/store"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

type stubExtractor struct{}

func (stubExtractor) Extract(data []byte, mime string) ([]content.Mention, error) {
	return []content.Mention{{Category: "org", Entities: []string{"acme"}}}, nil
}

type dispatchFixture struct {
	db        *store.DB
	owner     ndlcrypto.KeyPair
	requester ndlcrypto.KeyPair
	ownerID   ndlcrypto.PeerId
	reqID     ndlcrypto.PeerId
	channelID ndlcrypto.Hash
	content   *content.Service
	dispatch  *Dispatcher
}

func newDispatchFixture(t *testing.T, capacity uint64) *dispatchFixture {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	owner := mustIdentity(t)
	requester := mustIdentity(t)
	ownerID := peerID(t, owner)
	reqID := peerID(t, requester)

	openNonce := uint64(1)
	openTimestamp := int64(1700000000)
	channelID, err := channel.ComputeChannelID(reqID, ownerID, openNonce, openTimestamp)
	if err != nil {
		t.Fatalf("compute channel id: %v", err)
	}
	balanceA, balanceB := capacity, uint64(0)
	sigReq, err := channel.SignState(requester.Private, channelID, balanceA, balanceB, openNonce)
	if err != nil {
		t.Fatalf("sign open (requester): %v", err)
	}
	sigOwner, err := channel.SignState(owner.Private, channelID, balanceA, balanceB, openNonce)
	if err != nil {
		t.Fatalf("sign open (owner): %v", err)
	}
	if _, err := channel.Open(db, reqID, ownerID, capacity, balanceA, balanceB, openNonce, openTimestamp, requester.Public, owner.Public, sigReq, sigOwner); err != nil {
		t.Fatalf("open channel: %v", err)
	}

	cs := &content.Service{Manifests: db, Blobs: db, Identity: owner}
	q := &settlement.Queue{Store: db}
	qsvc := query.NewService(cs, db, q, stubExtractor{})
	dht := NewDHT()
	d := NewDispatcher(ownerID, owner.Private, cs, db, qsvc, dht, zerolog.Nop())
	d.Learn(reqID, requester.Public)

	return &dispatchFixture{
		db: db, owner: owner, requester: requester,
		ownerID: ownerID, reqID: reqID, channelID: channelID,
		content: cs, dispatch: d,
	}
}

func (f *dispatchFixture) resolveSides(t *testing.T) (requesterIsA bool) {
	t.Helper()
	rec, ok, err := f.db.GetChannel(f.channelID)
	if err != nil || !ok {
		t.Fatalf("get channel: ok=%v err=%v", ok, err)
	}
	return rec.ParticipantA.Equal(f.reqID)
}

func encodeAndDecodeFrame(t *testing.T, msgType wire.MessageType, sender ndlcrypto.PeerId, sk []byte, pub []byte, payload interface{}) *wire.Frame {
	t.Helper()
	raw, err := wire.EncodeMessage(msgType, time.Now().UTC(), sender, payload, sk, wire.DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	frame, err := wire.DecodeFrame(raw, pub, time.Now().UTC(), wire.DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestDispatchPreviewRequestServesManifestAndSummary(t *testing.T) {
	f := newDispatchFixture(t, 1_000_000)
	m, err := f.content.Publish(content.PublishInput{
		Data:        []byte("hello nodalync"),
		ContentType: content.ContentTypeL0,
		Visibility:  content.Visibility{Kind: content.VisibilityPublic},
		Title:       "doc",
		Mime:        "text/plain",
		Price:       10_000,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	frame := encodeAndDecodeFrame(t, wire.MessageTypePreviewRequest, f.reqID, f.requester.Private, f.requester.Public, wire.PreviewRequestPayload{Hash: m.Hash})
	msgType, reply := f.dispatch.Dispatch(frame, f.requester.Public, time.Unix(1700000100, 0))
	if msgType != wire.MessageTypePreviewResponse {
		t.Fatalf("expected PreviewResponse, got %v (%+v)", msgType, reply)
	}
	resp, ok := reply.(*wire.PreviewResponsePayload)
	if !ok {
		t.Fatalf("unexpected reply type %T", reply)
	}
	if resp.Summary.CountsByCategory["org"] != 1 {
		t.Fatalf("expected summary to reflect extracted mention, got %+v", resp.Summary)
	}
}

func TestDispatchQueryRequestAppliesChannelUpdate(t *testing.T) {
	f := newDispatchFixture(t, 1_000_000)
	m, err := f.content.Publish(content.PublishInput{
		Data:        []byte("paid content"),
		ContentType: content.ContentTypeL0,
		Visibility:  content.Visibility{Kind: content.VisibilityPublic},
		Price:       10_000,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	rec, _, _ := f.db.GetChannel(f.channelID)
	requesterIsA := f.resolveSides(t)
	req, err := query.BuildQueryRequest(f.requester.Private, m.Hash, f.channelID, rec.BalanceA, rec.BalanceB, requesterIsA, m.Economics.Price, rec.Nonce)
	if err != nil {
		t.Fatalf("build query request: %v", err)
	}

	frame := encodeAndDecodeFrame(t, wire.MessageTypeQueryRequest, f.reqID, f.requester.Private, f.requester.Public, req)
	msgType, reply := f.dispatch.Dispatch(frame, f.requester.Public, time.Unix(1700000100, 0))
	if msgType != wire.MessageTypeQueryResponse {
		t.Fatalf("expected QueryResponse, got %v", msgType)
	}
	resp := reply.(*wire.QueryResponsePayload)
	if !resp.OK {
		t.Fatalf("expected OK response, got %+v", resp.Err)
	}
	if string(resp.ContentBytes) != "paid content" {
		t.Fatalf("unexpected content bytes: %q", resp.ContentBytes)
	}

	updated, _, _ := f.db.GetChannel(f.channelID)
	if updated.Nonce != rec.Nonce+1 {
		t.Fatalf("expected nonce to advance, got %d", updated.Nonce)
	}
}

func TestDispatchRateLimitsExcessiveRequests(t *testing.T) {
	f := newDispatchFixture(t, 1_000_000)
	f.dispatch.Limiter = NewRateLimiter(1, 1)
	m, err := f.content.Publish(content.PublishInput{
		Data:        []byte("x"),
		ContentType: content.ContentTypeL0,
		Visibility:  content.Visibility{Kind: content.VisibilityPublic},
		Price:       1,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	frame := encodeAndDecodeFrame(t, wire.MessageTypePreviewRequest, f.reqID, f.requester.Private, f.requester.Public, wire.PreviewRequestPayload{Hash: m.Hash})
	now := time.Unix(1700000100, 0)
	if msgType, _ := f.dispatch.Dispatch(frame, f.requester.Public, now); msgType != wire.MessageTypePreviewResponse {
		t.Fatalf("first request should succeed, got %v", msgType)
	}
	msgType, reply := f.dispatch.Dispatch(frame, f.requester.Public, now)
	if msgType != wire.MessageTypeError {
		t.Fatalf("second immediate request should be rate limited, got %v", msgType)
	}
	errPayload := reply.(*wire.ErrorPayload)
	if errPayload.Code != wire.ErrorCodeRateLimited {
		t.Fatalf("expected RateLimited, got %v", errPayload.Code)
	}
}

func TestDispatchManifestAnnounceRecordsProvider(t *testing.T) {
	f := newDispatchFixture(t, 1_000_000)
	m, err := f.content.Publish(content.PublishInput{
		Data:        []byte("announced"),
		ContentType: content.ContentTypeL0,
		Visibility:  content.Visibility{Kind: content.VisibilityPublic},
		Price:       1,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	manifestCBOR, err := wire.EncodeCanonical(m)
	if err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	announce := wire.ManifestAnnouncePayload{ManifestCBOR: manifestCBOR, Provider: f.ownerID}
	frame := encodeAndDecodeFrame(t, wire.MessageTypeManifestAnnounce, f.ownerID, f.owner.Private, f.owner.Public, announce)
	f.dispatch.Learn(f.ownerID, f.owner.Public)

	if _, reply := f.dispatch.Dispatch(frame, f.owner.Public, time.Unix(1700000100, 0)); reply != nil {
		t.Fatalf("expected no reply for announce, got %+v", reply)
	}
	providers := f.dispatch.DHT.Providers(m.Hash)
	if len(providers) != 1 || !providers[0].Equal(f.ownerID) {
		t.Fatalf("expected owner recorded as provider, got %+v", providers)
	}
}

func TestDispatchChannelUpdateRejectsBadSignature(t *testing.T) {
	f := newDispatchFixture(t, 1_000_000)
	rec, _, _ := f.db.GetChannel(f.channelID)
	bogusSig, err := channel.SignState(f.owner.Private, f.channelID, rec.BalanceA-1, rec.BalanceB+1, rec.Nonce+1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	update := wire.ChannelUpdatePayload{
		ChannelID:   f.channelID,
		NewBalances: wire.ChannelBalances{A: rec.BalanceA - 1, B: rec.BalanceB + 1},
		NewNonce:    rec.Nonce + 1,
		Sig:         bogusSig,
	}
	frame := encodeAndDecodeFrame(t, wire.MessageTypeChannelUpdate, f.reqID, f.requester.Private, f.requester.Public, update)
	msgType, reply := f.dispatch.Dispatch(frame, f.requester.Public, time.Unix(1700000100, 0))
	if msgType != wire.MessageTypeError {
		t.Fatalf("expected an error reply for a signature from the wrong key, got %v", msgType)
	}
	errPayload := reply.(*wire.ErrorPayload)
	if errPayload.Code != wire.ErrorCodeBadSignature {
		t.Fatalf("expected BadSignature, got %v", errPayload.Code)
	}
}
