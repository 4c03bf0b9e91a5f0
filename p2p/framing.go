package p2p

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// writeStreamRecord length-prefixes a complete wire frame for the control
// stream; Yamux streams are byte streams, not message streams, so message
// boundaries still need an explicit length prefix on top of them.
func writeStreamRecord(w io.Writer, frame []byte) error {
	if len(frame) > wire.DefaultMaxMessageSize+wire.HeaderBytes+wire.SignatureBytes {
		return fmt.Errorf("p2p: frame of %d bytes exceeds the maximum message size", len(frame))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

func readStreamRecord(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > wire.DefaultMaxMessageSize+wire.HeaderBytes+wire.SignatureBytes {
		return nil, fmt.Errorf("p2p: declared frame length %d exceeds the maximum message size", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
