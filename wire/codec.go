package wire

import (
	"crypto/ed25519"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// EncodeMessage canonically encodes payload, frames it, and signs the frame
// as sender using sk. This is the single entry point production code should
// use to put a typed payload on the wire.
func EncodeMessage(msgType MessageType, timestamp time.Time, sender ndlcrypto.PeerId, payload interface{}, sk ed25519.PrivateKey, maxMessageSize int) ([]byte, error) {
	body, err := EncodeCanonical(payload)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(msgType, timestamp, sender, body, sk, maxMessageSize)
}

// DecodeMessage decodes and fully validates a wire frame (see DecodeFrame),
// then decodes its payload into out. out must be a pointer to the payload
// type expected for the frame's declared MessageType; callers are expected
// to switch on Frame.Type before calling this.
func DecodeMessage(raw []byte, pk ed25519.PublicKey, now time.Time, maxMessageSize int, out interface{}) (*Frame, error) {
	frame, err := DecodeFrame(raw, pk, now, maxMessageSize)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := DecodeCanonical(frame.Payload, out); err != nil {
			return nil, err
		}
	}
	return frame, nil
}
