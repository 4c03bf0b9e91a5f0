// Package transport implements the Noise-XX + Yamux stack spec.md §4.8
// names literally ("Runs over a TCP + Noise-XX + Yamux stack. Each
// connection is authenticated to a PeerId").
package transport

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"net"

	"github.com/flynn/noise"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// maxPlaintextChunk keeps every Noise ciphertext record under the
// protocol's 65535-byte message limit once the AEAD tag is added.
const maxPlaintextChunk = 65535 - 16

// identityBinding is exchanged inside the Noise handshake payload: proof
// that the Ed25519 identity behind a PeerId also controls this session's
// ephemeral Noise static key, the same binding libp2p-noise's static-key
// signature extension provides (the original Rust transport builds its
// Noise config directly from the node's libp2p identity keypair).
type identityBinding struct {
	IdentityPub []byte `cbor:"identity_pub"`
	Signature   []byte `cbor:"signature"`
}

func signStaticKey(sk ed25519.PrivateKey, staticPub []byte) (identityBinding, error) {
	sig, err := ndlcrypto.Sign(sk, ndlcrypto.DomainMessage, staticPub)
	if err != nil {
		return identityBinding{}, err
	}
	pub, ok := sk.Public().(ed25519.PublicKey)
	if !ok {
		return identityBinding{}, fmt.Errorf("p2p/transport: private key has no ed25519 public key")
	}
	return identityBinding{IdentityPub: append([]byte(nil), pub...), Signature: sig[:]}, nil
}

func verifyStaticKey(b identityBinding, staticPub []byte) (ed25519.PublicKey, bool) {
	if len(b.IdentityPub) != ed25519.PublicKeySize || len(b.Signature) != ed25519.SignatureSize {
		return nil, false
	}
	var sig ndlcrypto.Signature
	copy(sig[:], b.Signature)
	pub := ed25519.PublicKey(b.IdentityPub)
	if !ndlcrypto.Verify(pub, ndlcrypto.DomainMessage, staticPub, sig) {
		return nil, false
	}
	return pub, true
}

// SecureConn is a Noise-XX-encrypted stream over an underlying net.Conn,
// authenticated to a remote PeerId. It implements io.ReadWriteCloser, the
// interface hashicorp/yamux needs to multiplex on top of it.
type SecureConn struct {
	conn net.Conn
	send *noise.CipherState
	recv *noise.CipherState

	RemotePeerID ndlcrypto.PeerId
	RemotePub    ed25519.PublicKey

	readBuf []byte
}

// HandshakeXX runs the Noise-XX handshake over conn as either the
// initiator (dialer) or the responder (listener), binding the session to
// identitySK's Ed25519 identity. If expectedRemote is non-nil (the dialer
// knows which peer it meant to reach), the derived remote PeerId must
// match it or the handshake is rejected.
func HandshakeXX(conn net.Conn, identitySK ed25519.PrivateKey, initiator bool, expectedRemote *ndlcrypto.PeerId) (*SecureConn, error) {
	staticKeyPair, err := cipherSuite.GenerateKeypair(nil)
	if err != nil {
		return nil, fmt.Errorf("p2p/transport: generate noise static keypair: %w", err)
	}
	binding, err := signStaticKey(identitySK, staticKeyPair.Public)
	if err != nil {
		return nil, fmt.Errorf("p2p/transport: sign static key: %w", err)
	}
	bindingBytes, err := wire.EncodeCanonical(binding)
	if err != nil {
		return nil, fmt.Errorf("p2p/transport: encode identity binding: %w", err)
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: staticKeyPair,
	})
	if err != nil {
		return nil, fmt.Errorf("p2p/transport: new handshake state: %w", err)
	}

	var send, recv *noise.CipherState
	var remoteBindingBytes []byte

	if initiator {
		msg1, _, _ := hs.WriteMessage(nil, nil)
		if err := writeRecord(conn, msg1); err != nil {
			return nil, fmt.Errorf("p2p/transport: write message 1: %w", err)
		}

		raw2, err := readRecord(conn)
		if err != nil {
			return nil, fmt.Errorf("p2p/transport: read message 2: %w", err)
		}
		payload2, _, _, err := hs.ReadMessage(nil, raw2)
		if err != nil {
			return nil, fmt.Errorf("p2p/transport: read message 2: %w", err)
		}
		remoteBindingBytes = payload2

		msg3, cs1, cs2 := hs.WriteMessage(nil, bindingBytes)
		if err := writeRecord(conn, msg3); err != nil {
			return nil, fmt.Errorf("p2p/transport: write message 3: %w", err)
		}
		send, recv = cs1, cs2
	} else {
		raw1, err := readRecord(conn)
		if err != nil {
			return nil, fmt.Errorf("p2p/transport: read message 1: %w", err)
		}
		if _, _, _, err := hs.ReadMessage(nil, raw1); err != nil {
			return nil, fmt.Errorf("p2p/transport: read message 1: %w", err)
		}

		msg2, _, _ := hs.WriteMessage(nil, bindingBytes)
		if err := writeRecord(conn, msg2); err != nil {
			return nil, fmt.Errorf("p2p/transport: write message 2: %w", err)
		}

		raw3, err := readRecord(conn)
		if err != nil {
			return nil, fmt.Errorf("p2p/transport: read message 3: %w", err)
		}
		payload3, cs1, cs2, err := hs.ReadMessage(nil, raw3)
		if err != nil {
			return nil, fmt.Errorf("p2p/transport: read message 3: %w", err)
		}
		remoteBindingBytes = payload3
		send, recv = cs2, cs1
	}

	var binding2 identityBinding
	if err := wire.DecodeCanonical(remoteBindingBytes, &binding2); err != nil {
		return nil, fmt.Errorf("p2p/transport: decode identity binding: %w", err)
	}
	remotePub, ok := verifyStaticKey(binding2, hs.PeerStatic())
	if !ok {
		return nil, fmt.Errorf("p2p/transport: remote identity binding signature invalid")
	}
	remotePeerID, err := ndlcrypto.PeerIdFromPublicKey(remotePub)
	if err != nil {
		return nil, fmt.Errorf("p2p/transport: derive remote peer id: %w", err)
	}
	if expectedRemote != nil && !remotePeerID.Equal(*expectedRemote) {
		return nil, fmt.Errorf("p2p/transport: dialed %s but handshake authenticated %s", expectedRemote.String(), remotePeerID.String())
	}

	return &SecureConn{
		conn:         conn,
		send:         send,
		recv:         recv,
		RemotePeerID: remotePeerID,
		RemotePub:    remotePub,
	}, nil
}

// Write encrypts p in maxPlaintextChunk-sized records and writes them to
// the underlying connection.
func (c *SecureConn) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxPlaintextChunk {
			n = maxPlaintextChunk
		}
		ciphertext := c.send.Encrypt(nil, nil, p[:n])
		if err := writeRecord(c.conn, ciphertext); err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

// Read decrypts records from the underlying connection into p, buffering
// any ciphertext-record remainder larger than len(p) across calls.
func (c *SecureConn) Read(p []byte) (int, error) {
	if len(c.readBuf) == 0 {
		raw, err := readRecord(c.conn)
		if err != nil {
			return 0, err
		}
		plaintext, err := c.recv.Decrypt(nil, nil, raw)
		if err != nil {
			return 0, fmt.Errorf("p2p/transport: decrypt record: %w", err)
		}
		c.readBuf = plaintext
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Close closes the underlying connection.
func (c *SecureConn) Close() error {
	return c.conn.Close()
}

var _ io.ReadWriteCloser = (*SecureConn)(nil)
