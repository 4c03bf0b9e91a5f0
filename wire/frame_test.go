package wire

import (
	"testing"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

func mustIdentity(t *testing.T) (ndlcrypto.KeyPair, ndlcrypto.PeerId) {
	t.Helper()
	kp, err := ndlcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	id, err := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	return kp, id
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC().Truncate(time.Second)

	payload := PreviewRequestPayload{Hash: ndlcrypto.ContentHash([]byte("doc"))}
	body, err := EncodeCanonical(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	raw, err := EncodeFrame(MessageTypePreviewRequest, now, id, body, kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if len(raw) < MinFrameBytes {
		t.Fatalf("frame shorter than minimum: %d", len(raw))
	}

	frame, err := DecodeFrame(raw, kp.Public, now, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != MessageTypePreviewRequest {
		t.Fatalf("type mismatch: got %v", frame.Type)
	}
	if !frame.Sender.Equal(id) {
		t.Fatalf("sender mismatch")
	}

	var got PreviewRequestPayload
	if err := DecodeCanonical(frame.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Hash != payload.Hash {
		t.Fatalf("payload round trip mismatch")
	}
}

func TestDecodeFrameRejectsUnknownMagic(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC()
	raw, err := EncodeFrame(MessageTypeError, now, id, []byte{}, kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[0] = 0xFF
	if _, err := DecodeFrame(raw, kp.Public, now, DefaultMaxMessageSize); err == nil {
		t.Fatalf("expected magic mismatch error")
	} else if fe, ok := err.(*FormatError); !ok || fe.Code != ErrUnknownMagic {
		t.Fatalf("expected ErrUnknownMagic, got %v", err)
	}
}

func TestDecodeFrameRejectsUnsupportedVersion(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC()
	raw, err := EncodeFrame(MessageTypeError, now, id, []byte{}, kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[1] = 99
	if _, err := DecodeFrame(raw, kp.Public, now, DefaultMaxMessageSize); err == nil {
		t.Fatalf("expected version error")
	} else if fe, ok := err.(*FormatError); !ok || fe.Code != ErrUnsupportedVersion {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeFrameRejectsTruncatedPayload(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC()
	raw, err := EncodeFrame(MessageTypeError, now, id, []byte("hello"), kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	truncated := raw[:len(raw)-10]
	if _, err := DecodeFrame(truncated, kp.Public, now, DefaultMaxMessageSize); err == nil {
		t.Fatalf("expected truncation error")
	}
}

func TestDecodeFrameRejectsBadSignature(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC()
	raw, err := EncodeFrame(MessageTypeError, now, id, []byte("hello"), kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if _, err := DecodeFrame(raw, kp.Public, now, DefaultMaxMessageSize); err == nil {
		t.Fatalf("expected signature failure")
	} else if fe, ok := err.(*FormatError); !ok || fe.Code != ErrSignatureFailed {
		t.Fatalf("expected ErrSignatureFailed, got %v", err)
	}
}

func TestDecodeFrameTimestampSkewBoundary(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC().Truncate(time.Second)

	okTs := now.Add(-TimestampSkewTolerance)
	raw, err := EncodeFrame(MessageTypeError, okTs, id, nil, kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeFrame(raw, kp.Public, now, DefaultMaxMessageSize); err != nil {
		t.Fatalf("expected exactly-300s skew to be accepted: %v", err)
	}

	badTs := now.Add(-TimestampSkewTolerance - time.Second)
	raw2, err := EncodeFrame(MessageTypeError, badTs, id, nil, kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeFrame(raw2, kp.Public, now, DefaultMaxMessageSize); err == nil {
		t.Fatalf("expected 301s skew to be rejected")
	}
}

func TestEncodeFrameRejectsOversizePayload(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC()
	if _, err := EncodeFrame(MessageTypeError, now, id, make([]byte, 100), kp.Private, 50); err == nil {
		t.Fatalf("expected oversize rejection at encode time")
	}
}

func TestMinFrameSize(t *testing.T) {
	kp, id := mustIdentity(t)
	now := time.Now().UTC()
	raw, err := EncodeFrame(MessageTypeError, now, id, nil, kp.Private, DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) != MinFrameBytes {
		t.Fatalf("empty-payload frame should equal MinFrameBytes: got %d want %d", len(raw), MinFrameBytes)
	}
}
