package node

import "testing"

func newTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.BindAddr = "127.0.0.1:0"
	return cfg
}

func TestOpenComposesEveryService(t *testing.T) {
	cfg := newTestConfig(t)
	ctx, err := Open(cfg, []byte("pw"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ctx.Close()

	if ctx.PeerID.IsZero() {
		t.Fatal("expected a non-zero peer id")
	}
	if ctx.Content == nil || ctx.Query == nil || ctx.Dispatcher == nil || ctx.Batcher == nil || ctx.DHT == nil {
		t.Fatal("expected every service to be composed")
	}
	if ctx.Batcher.Backend != nil {
		t.Fatal("expected no settlement backend with the default config")
	}
}

func TestOpenWiresMockSettlementBackend(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.SettlementBackend = "mock"
	ctx, err := Open(cfg, []byte("pw"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ctx.Close()

	if ctx.Batcher.Backend == nil {
		t.Fatal("expected a mock settlement backend to be wired")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.BindAddr = "not-an-address"
	if _, err := Open(cfg, []byte("pw")); err == nil {
		t.Fatal("expected an error for an invalid bind address")
	}
}

func TestOpenReloadsSamePeerIdentity(t *testing.T) {
	cfg := newTestConfig(t)
	first, err := Open(cfg, []byte("pw"))
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	firstID := first.PeerID
	first.Close()

	second, err := Open(cfg, []byte("pw"))
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	if !firstID.Equal(second.PeerID) {
		t.Fatal("expected re-opening the same data dir to recover the same peer id")
	}
}
