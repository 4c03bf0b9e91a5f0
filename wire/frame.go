// Package wire implements the Nodalync wire protocol: canonical-CBOR
// message payloads framed and signed per spec.md §4.2.
package wire

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

const (
	// ProtocolMagic identifies the Nodalync wire protocol.
	ProtocolMagic byte = 0x4E // 'N'

	// ProtocolVersion is the only version this codec understands.
	ProtocolVersion byte = 1

	// HeaderBytes is magic(1) + version(1) + type(2) + timestamp(8) + sender(20) + length(4).
	HeaderBytes = 1 + 1 + 2 + 8 + 20 + 4

	// SignatureBytes is the trailing Ed25519 signature length.
	SignatureBytes = ed25519.SignatureSize

	// MinFrameBytes is the smallest legal frame: header + zero-length payload + signature.
	MinFrameBytes = HeaderBytes + SignatureBytes

	// DefaultMaxMessageSize is MAX_MESSAGE_SIZE's default value (16 MiB).
	DefaultMaxMessageSize = 16 * 1024 * 1024

	// TimestampSkewTolerance bounds how far a frame's timestamp may drift
	// from the local wall clock in either direction.
	TimestampSkewTolerance = 300 * time.Second
)

// MessageType enumerates the wire message kinds from spec.md §4.2.
type MessageType uint16

const (
	MessageTypeQueryRequest     MessageType = 1
	MessageTypeQueryResponse    MessageType = 2
	MessageTypeChannelOpen      MessageType = 3
	MessageTypeChannelUpdate    MessageType = 4
	MessageTypeChannelClose     MessageType = 5
	MessageTypeManifestAnnounce MessageType = 6
	MessageTypePreviewRequest   MessageType = 7
	MessageTypePreviewResponse  MessageType = 8
	MessageTypeError            MessageType = 9
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeQueryRequest:
		return "QueryRequest"
	case MessageTypeQueryResponse:
		return "QueryResponse"
	case MessageTypeChannelOpen:
		return "ChannelOpen"
	case MessageTypeChannelUpdate:
		return "ChannelUpdate"
	case MessageTypeChannelClose:
		return "ChannelClose"
	case MessageTypeManifestAnnounce:
		return "ManifestAnnounce"
	case MessageTypePreviewRequest:
		return "PreviewRequest"
	case MessageTypePreviewResponse:
		return "PreviewResponse"
	case MessageTypeError:
		return "Error"
	default:
		return fmt.Sprintf("MessageType(%d)", uint16(t))
	}
}

// Frame is a single decoded wire message, with the payload left as raw
// canonical-CBOR bytes — callers decode the concrete payload type for
// Type themselves (see messages.go).
type Frame struct {
	Type      MessageType
	Timestamp time.Time
	Sender    ndlcrypto.PeerId
	Payload   []byte
	Signature ndlcrypto.Signature
}

// header lays out the fixed-size prefix fields in wire order.
func encodeHeader(msgType MessageType, timestamp time.Time, sender ndlcrypto.PeerId, payloadLen uint32) [HeaderBytes]byte {
	var hdr [HeaderBytes]byte
	hdr[0] = ProtocolMagic
	hdr[1] = ProtocolVersion
	binary.BigEndian.PutUint16(hdr[2:4], uint16(msgType))
	binary.BigEndian.PutUint64(hdr[4:12], uint64(timestamp.Unix()))
	copy(hdr[12:32], sender[:])
	binary.BigEndian.PutUint32(hdr[32:36], payloadLen)
	return hdr
}

// signingDigest computes hash(domain=0x01, magic‖version‖type‖timestamp‖sender‖length‖payload)
// per spec.md §4.2.
func signingDigest(hdr [HeaderBytes]byte, payload []byte) ndlcrypto.Hash {
	preimage := make([]byte, 0, HeaderBytes+len(payload))
	preimage = append(preimage, hdr[:]...)
	preimage = append(preimage, payload...)
	return ndlcrypto.HashDomain(ndlcrypto.DomainMessage, preimage)
}

// EncodeFrame builds and signs a complete wire frame. payload must already
// be canonical CBOR (see EncodeCanonical).
func EncodeFrame(msgType MessageType, timestamp time.Time, sender ndlcrypto.PeerId, payload []byte, sk ed25519.PrivateKey, maxMessageSize int) ([]byte, error) {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	if len(payload) > maxMessageSize {
		return nil, fmterr(ErrOversizeFrame, fmt.Sprintf("payload %d exceeds max %d", len(payload), maxMessageSize))
	}
	hdr := encodeHeader(msgType, timestamp, sender, uint32(len(payload)))
	digest := signingDigest(hdr, payload)
	sig, err := ndlcrypto.SignDigest(sk, digest)
	if err != nil {
		return nil, fmt.Errorf("wire: sign frame: %w", err)
	}
	out := make([]byte, 0, HeaderBytes+len(payload)+SignatureBytes)
	out = append(out, hdr[:]...)
	out = append(out, payload...)
	out = append(out, sig[:]...)
	return out, nil
}

// DecodeFrame parses and fully validates a wire frame per spec.md §4.2:
// magic, version, length, timestamp skew, and signature are all checked.
// now is the local wall clock used for the skew check.
func DecodeFrame(raw []byte, pk ed25519.PublicKey, now time.Time, maxMessageSize int) (*Frame, error) {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	if len(raw) < MinFrameBytes {
		return nil, fmterr(ErrUndersizeFrame, fmt.Sprintf("frame of %d bytes is below minimum %d", len(raw), MinFrameBytes))
	}

	var hdr [HeaderBytes]byte
	copy(hdr[:], raw[:HeaderBytes])

	if hdr[0] != ProtocolMagic {
		return nil, fmterr(ErrUnknownMagic, fmt.Sprintf("got 0x%02x", hdr[0]))
	}
	if hdr[1] != ProtocolVersion {
		return nil, fmterr(ErrUnsupportedVersion, fmt.Sprintf("got %d", hdr[1]))
	}

	msgType := MessageType(binary.BigEndian.Uint16(hdr[2:4]))
	ts := time.Unix(int64(binary.BigEndian.Uint64(hdr[4:12])), 0).UTC()

	var sender ndlcrypto.PeerId
	copy(sender[:], hdr[12:32])

	payloadLen := binary.BigEndian.Uint32(hdr[32:36])
	if uint64(payloadLen) > uint64(maxMessageSize) {
		return nil, fmterr(ErrOversizeFrame, fmt.Sprintf("declared payload %d exceeds max %d", payloadLen, maxMessageSize))
	}

	expectedTotal := HeaderBytes + int(payloadLen) + SignatureBytes
	if len(raw) != expectedTotal {
		if len(raw) < expectedTotal {
			return nil, fmterr(ErrTruncatedPayload, fmt.Sprintf("want %d bytes, got %d", expectedTotal, len(raw)))
		}
		return nil, fmterr(ErrLengthMismatch, fmt.Sprintf("want %d bytes, got %d", expectedTotal, len(raw)))
	}

	payload := raw[HeaderBytes : HeaderBytes+int(payloadLen)]
	sigBytes := raw[HeaderBytes+int(payloadLen):]
	var sig ndlcrypto.Signature
	copy(sig[:], sigBytes)

	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > TimestampSkewTolerance {
		return nil, fmterr(ErrTimestampSkew, fmt.Sprintf("timestamp %s is %s from now", ts, skew))
	}

	if !verifyFrameSignature(hdr, payload, pk, sig) {
		return nil, fmterr(ErrSignatureFailed, "")
	}

	return &Frame{
		Type:      msgType,
		Timestamp: ts,
		Sender:    sender,
		Payload:   append([]byte(nil), payload...),
		Signature: sig,
	}, nil
}

func verifyFrameSignature(hdr [HeaderBytes]byte, payload []byte, pk ed25519.PublicKey, sig ndlcrypto.Signature) bool {
	digest := signingDigest(hdr, payload)
	return ndlcrypto.VerifyDigest(pk, digest, sig)
}
