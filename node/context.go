package node

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gdgiangi/nodalync-protocol-sub004/content"
	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
	"github.com/gdgiangi/nodalync-protocol-sub004/extractor"
	"github.com/gdgiangi/nodalync-protocol-sub004/p2p"
	"github.com/gdgiangi/nodalync-protocol-sub004/query"
	"github.com/gdgiangi/nodalync-protocol-sub004/settlement"
	"github.com/gdgiangi/nodalync-protocol-sub004/store"
)

// Context is one running Nodalync node: its identity, its on-disk store,
// and every service composed on top of it (content, query, settlement,
// p2p). It is the wiring point SPEC_FULL.md's components come together at;
// cmd/nodalync-node only constructs one of these and calls Run.
type Context struct {
	Config   Config
	Identity ndlcrypto.KeyPair
	PeerID   ndlcrypto.PeerId
	Logger   zerolog.Logger

	DB         *store.DB
	Content    *content.Service
	Queue      *settlement.Queue
	Batcher    *settlement.Batcher
	Query      *query.Service
	DHT        *p2p.DHT
	Dispatcher *p2p.Dispatcher
}

// Open validates cfg, unlocks the node identity, opens the on-disk store
// and composes every service on top of it. It does not start any network
// listener or background loop; call Run for that.
func Open(cfg Config, password []byte) (*Context, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("node: invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("node: create data dir: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	identity, err := LoadIdentity(cfg.DataDir, password)
	if err != nil {
		return nil, fmt.Errorf("node: load identity: %w", err)
	}
	peerID, err := ndlcrypto.PeerIdFromPublicKey(identity.Public)
	if err != nil {
		return nil, fmt.Errorf("node: derive peer id: %w", err)
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}

	contentSvc := &content.Service{Manifests: db, Blobs: db, Identity: identity}
	queue := &settlement.Queue{Store: db}

	backend, err := newSettlementBackend(cfg.SettlementBackend)
	if err != nil {
		db.Close()
		return nil, err
	}
	batcher := settlement.NewBatcher(db, backend, logger)
	batcher.Interval = cfg.BatchInterval

	querySvc := query.NewService(contentSvc, db, queue, extractor.Null{})

	dht := p2p.NewDHT()
	dispatcher := p2p.NewDispatcher(peerID, identity.Private, contentSvc, db, querySvc, dht, logger)
	dispatcher.DisputeWindow = cfg.DisputeWindow

	return &Context{
		Config:     cfg,
		Identity:   identity,
		PeerID:     peerID,
		Logger:     logger,
		DB:         db,
		Content:    contentSvc,
		Queue:      queue,
		Batcher:    batcher,
		Query:      querySvc,
		DHT:        dht,
		Dispatcher: dispatcher,
	}, nil
}

// Close releases the node's on-disk store handle.
func (c *Context) Close() error {
	return c.DB.Close()
}

func newSettlementBackend(kind string) (settlement.Backend, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "mock":
		return settlement.NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("node: unknown settlement backend %q", kind)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
