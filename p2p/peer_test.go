package p2p

import (
	"net"
	"testing"
	"time"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

func mustIdentity(t *testing.T) ndlcrypto.KeyPair {
	t.Helper()
	kp, err := ndlcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return kp
}

func peerID(t *testing.T, kp ndlcrypto.KeyPair) ndlcrypto.PeerId {
	t.Helper()
	id, err := ndlcrypto.PeerIdFromPublicKey(kp.Public)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	return id
}

func dialAccept(t *testing.T) (client, server *Peer) {
	t.Helper()
	serverKP := mustIdentity(t)
	clientKP := mustIdentity(t)
	serverID := peerID(t, serverKP)
	clientID := peerID(t, clientKP)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type acceptResult struct {
		peer *Peer
		err  error
	}
	serverCh := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverCh <- acceptResult{nil, err}
			return
		}
		p, err := Accept(conn, serverID, serverKP.Private, wire.DefaultMaxMessageSize)
		serverCh <- acceptResult{p, err}
	}()

	cp, err := Dial(ln.Addr().String(), clientID, clientKP.Private, &serverID, wire.DefaultMaxMessageSize)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	res := <-serverCh
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	return cp, res.peer
}

func TestDialAcceptAuthenticatesPeerIdentities(t *testing.T) {
	client, server := dialAccept(t)
	defer client.Close()
	defer server.Close()

	if client.ID.IsZero() || server.ID.IsZero() {
		t.Fatal("peer identities must not be zero")
	}
}

func TestPeerSendRecvRoundTrip(t *testing.T) {
	client, server := dialAccept(t)
	defer client.Close()
	defer server.Close()

	req := wire.PreviewRequestPayload{Hash: ndlcrypto.ContentHash([]byte("hello"))}
	if err := client.Send(wire.MessageTypePreviewRequest, req); err != nil {
		t.Fatalf("send: %v", err)
	}

	frame, err := server.Recv(time.Now())
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if frame.Type != wire.MessageTypePreviewRequest {
		t.Fatalf("got type %v, want PreviewRequest", frame.Type)
	}
	var got wire.PreviewRequestPayload
	if err := wire.DecodeCanonical(frame.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Hash != req.Hash {
		t.Fatalf("hash mismatch: got %x want %x", got.Hash, req.Hash)
	}
}
