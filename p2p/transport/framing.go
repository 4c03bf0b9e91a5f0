package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxRecordLen bounds a single length-prefixed record, generous enough for
// a Noise-XX handshake message or one ciphertext chunk (see maxPlaintextChunk).
const maxRecordLen = 1 << 20

// writeRecord writes b as a 4-byte-big-endian-length-prefixed record.
func writeRecord(w io.Writer, b []byte) error {
	if len(b) > maxRecordLen {
		return fmt.Errorf("p2p/transport: record of %d bytes exceeds max %d", len(b), maxRecordLen)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readRecord reads one length-prefixed record written by writeRecord.
func readRecord(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxRecordLen {
		return nil, fmt.Errorf("p2p/transport: declared record length %d exceeds max %d", n, maxRecordLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
