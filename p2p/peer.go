// Package p2p implements the network/DHT plane of spec.md §4.8: peer
// connections authenticated to a PeerId over Noise-XX + Yamux, provider
// lookup and manifest announcement via DHT, per-peer rate limiting, and
// inbound-frame dispatch to the content/channel/query handlers.
package p2p

import (
	"crypto/ed25519"
	"fmt"
	"net"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/p2p/transport"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// Peer is one authenticated, multiplexed connection to a remote node. All
// frame traffic for this peer flows over a single dedicated control
// stream; additional streams are available via transport.Session for
// future bulk-transfer use (not needed by the current message set, whose
// payloads are small CBOR documents).
type Peer struct {
	ID             ndlcrypto.PeerId
	Pub            ed25519.PublicKey
	Addr           string
	localID        ndlcrypto.PeerId
	localSK        ed25519.PrivateKey
	session        *transport.Session
	control        net.Conn
	maxMessageSize int
}

// Dial opens a TCP connection to addr, authenticates it to expectedRemote
// (if known) over Noise-XX, and opens the control stream as the session's
// initiator.
func Dial(addr string, localID ndlcrypto.PeerId, localSK ed25519.PrivateKey, expectedRemote *ndlcrypto.PeerId, maxMessageSize int) (*Peer, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("p2p: dial %s: %w", addr, err)
	}
	return newPeer(conn, addr, localID, localSK, expectedRemote, true, maxMessageSize)
}

// Accept authenticates an already-accepted inbound TCP connection over
// Noise-XX and opens the control stream as the session's responder.
func Accept(conn net.Conn, localID ndlcrypto.PeerId, localSK ed25519.PrivateKey, maxMessageSize int) (*Peer, error) {
	return newPeer(conn, conn.RemoteAddr().String(), localID, localSK, nil, false, maxMessageSize)
}

func newPeer(conn net.Conn, addr string, localID ndlcrypto.PeerId, localSK ed25519.PrivateKey, expectedRemote *ndlcrypto.PeerId, initiator bool, maxMessageSize int) (*Peer, error) {
	sc, err := transport.HandshakeXX(conn, localSK, initiator, expectedRemote)
	if err != nil {
		conn.Close()
		return nil, newErr(CodeHandshake, err.Error())
	}
	sess, err := transport.NewSession(sc, initiator)
	if err != nil {
		conn.Close()
		return nil, newErr(CodeHandshake, err.Error())
	}

	var control net.Conn
	if initiator {
		control, err = sess.OpenStream()
	} else {
		control, err = sess.AcceptStream()
	}
	if err != nil {
		sess.Close()
		return nil, newErr(CodeHandshake, fmt.Sprintf("open control stream: %v", err))
	}

	if maxMessageSize <= 0 {
		maxMessageSize = wire.DefaultMaxMessageSize
	}
	return &Peer{
		ID:             sc.RemotePeerID,
		Pub:            sc.RemotePub,
		Addr:           addr,
		localID:        localID,
		localSK:        localSK,
		session:        sess,
		control:        control,
		maxMessageSize: maxMessageSize,
	}, nil
}

// Send frames, signs and writes payload as a message of msgType on the
// control stream.
func (p *Peer) Send(msgType wire.MessageType, payload interface{}) error {
	raw, err := wire.EncodeMessage(msgType, time.Now().UTC(), p.localID, payload, p.localSK, p.maxMessageSize)
	if err != nil {
		return fmt.Errorf("p2p: encode message: %w", err)
	}
	return writeStreamRecord(p.control, raw)
}

// Recv reads and fully verifies the next frame on the control stream. The
// frame's signature is checked against p.Pub, the identity this peer
// authenticated as during the handshake.
func (p *Peer) Recv(now time.Time) (*wire.Frame, error) {
	raw, err := readStreamRecord(p.control)
	if err != nil {
		return nil, err
	}
	return wire.DecodeFrame(raw, p.Pub, now, p.maxMessageSize)
}

// Close tears down the peer's session and every stream on it.
func (p *Peer) Close() error {
	return p.session.Close()
}
