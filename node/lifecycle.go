package node

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gdgiangi/nodalync-protocol-sub004/p2p"
)

// Run starts the node's listener, the inbound dispatch loop and the
// settlement batcher, and blocks until ctx is cancelled. All three are
// coordinated by a single errgroup (spec.md §5): cancelling ctx stops the
// listener first (no new connections are accepted), then the in-flight
// peer loops return once their current Recv call unblocks, and the
// batcher's ticker stops on the same signal. Run returns the first
// non-context-cancellation error any of the three encountered.
func (c *Context) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.Config.BindAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Batcher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		return c.acceptLoop(gctx, ln)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Context) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go c.servePeer(ctx, conn)
	}
}

// servePeer authenticates one inbound connection and dispatches frames on
// it until the connection closes or ctx is cancelled. A single
// misbehaving or disconnected peer never brings down the node: every
// error here is logged and ends only that peer's loop.
func (c *Context) servePeer(ctx context.Context, conn net.Conn) {
	peer, err := p2p.Accept(conn, c.PeerID, c.Identity.Private, c.Config.MaxMessageSize)
	if err != nil {
		c.Logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("peer handshake failed")
		return
	}
	defer peer.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := peer.Recv(time.Now().UTC())
		if err != nil {
			c.Logger.Debug().Err(err).Str("peer_id", peer.ID.String()).Msg("peer connection closed")
			return
		}
		msgType, payload := c.Dispatcher.Dispatch(frame, peer.Pub, time.Now().UTC())
		if msgType == 0 {
			continue
		}
		if err := peer.Send(msgType, payload); err != nil {
			c.Logger.Debug().Err(err).Str("peer_id", peer.ID.String()).Msg("failed to send reply")
			return
		}
	}
}
