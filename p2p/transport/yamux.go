package transport

import (
	"fmt"
	"net"

	"github.com/hashicorp/yamux"
)

// Session multiplexes many logical streams over one SecureConn, matching
// spec.md §4.8's "TCP + Noise-XX + Yamux stack".
type Session struct {
	sess *yamux.Session
}

// NewSession wraps sc in a Yamux session. initiator must match the role sc
// was negotiated with in HandshakeXX: the Yamux client/server roles follow
// the Noise initiator/responder roles.
func NewSession(sc *SecureConn, initiator bool) (*Session, error) {
	config := yamux.DefaultConfig()
	if initiator {
		sess, err := yamux.Client(sc, config)
		if err != nil {
			return nil, fmt.Errorf("p2p/transport: yamux client: %w", err)
		}
		return &Session{sess: sess}, nil
	}
	sess, err := yamux.Server(sc, config)
	if err != nil {
		return nil, fmt.Errorf("p2p/transport: yamux server: %w", err)
	}
	return &Session{sess: sess}, nil
}

// OpenStream opens a new logical stream, initiator-side.
func (s *Session) OpenStream() (net.Conn, error) {
	return s.sess.Open()
}

// AcceptStream accepts the next logical stream opened by the remote side.
func (s *Session) AcceptStream() (net.Conn, error) {
	return s.sess.Accept()
}

// Close tears down every stream and the underlying connection.
func (s *Session) Close() error {
	return s.sess.Close()
}
