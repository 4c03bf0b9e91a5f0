// Package node wires the content, channel, settlement, query and p2p
// packages into one running process, and owns the on-disk configuration,
// identity keystore and shutdown lifecycle around them (spec.md §5, §6).
package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdgiangi/nodalync-protocol-sub004/channel"
	"github.com/gdgiangi/nodalync-protocol-sub004/wire"
)

// Config is the node's full runtime configuration, generalizing the
// teacher's network/datadir/bind-address/peers/log-level shape (spec.md
// §10.3) with the fields this system additionally needs: message-size and
// timing limits, the settlement cadence, and which settlement backend to
// use.
type Config struct {
	Network  string   `json:"network"`
	DataDir  string   `json:"data_dir"`
	BindAddr string   `json:"bind_addr"`
	LogLevel string   `json:"log_level"`
	Peers    []string `json:"peers"`
	MaxPeers int      `json:"max_peers"`

	MaxMessageSize int `json:"max_message_size"`

	BatchInterval time.Duration `json:"batch_interval"`
	DisputeWindow time.Duration `json:"dispute_window"`

	RequestTimeout   time.Duration `json:"request_timeout"`
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
	ConfirmTimeout   time.Duration `json:"confirm_timeout"`

	// SettlementBackend selects the external ledger adapter a Batcher
	// anchors batches to. "none" runs fully offline (spec.md §4.7's
	// offline-tolerance); "mock" wires settlement.MockBackend, useful for
	// local development and integration tests. A production ledger
	// backend is this system's Non-goal; this field only has somewhere to
	// point once one exists.
	SettlementBackend string `json:"settlement_backend"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedSettlementBackends = map[string]struct{}{
	"none": {},
	"mock": {},
}

// configFileEnvVar names the environment variable that overrides the
// default config file path (spec.md §10.3).
const configFileEnvVar = "NODALYNC_CONFIG"

// passwordEnvVar names the environment variable that unlocks the identity
// keystore (spec.md §10.3).
const passwordEnvVar = "NODALYNC_PASSWORD"

// DefaultDataDir returns the per-user default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".nodalync"
	}
	return filepath.Join(home, ".nodalync")
}

// DefaultConfigPath returns the default config file path, honoring
// NODALYNC_CONFIG if set.
func DefaultConfigPath() string {
	if p := os.Getenv(configFileEnvVar); p != "" {
		return p
	}
	return filepath.Join(DefaultDataDir(), "config.json")
}

// Password reads the identity keystore password from NODALYNC_PASSWORD. An
// empty environment variable is a valid (if weak) password, not a missing
// one: callers that require a password decide that policy themselves.
func Password() []byte {
	return []byte(os.Getenv(passwordEnvVar))
}

// DefaultConfig returns the configuration a freshly-initialized node
// starts with.
func DefaultConfig() Config {
	return Config{
		Network:           "mainnet",
		DataDir:           DefaultDataDir(),
		BindAddr:          "0.0.0.0:7420",
		Peers:             nil,
		LogLevel:          "info",
		MaxPeers:          64,
		MaxMessageSize:    wire.DefaultMaxMessageSize,
		BatchInterval:     60 * time.Second,
		DisputeWindow:     channel.DefaultDisputeWindow,
		RequestTimeout:    10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ConfirmTimeout:    60 * time.Second,
		SettlementBackend: "none",
	}
}

// NormalizePeers flattens and dedupes comma-separated peer address tokens,
// trimming whitespace and dropping empties, in first-seen order.
func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig checks cfg against every invariant it must hold, returning
// the first violation found. It deliberately does not aggregate every
// violation into one error: the caller (usually a CLI) reports one problem,
// fixes it, and re-runs, matching the teacher's validation shape.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 {
		return errors.New("max_peers must be > 0")
	}
	if cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be <= 4096")
	}
	if cfg.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be > 0")
	}
	if cfg.BatchInterval <= 0 {
		return errors.New("batch_interval must be > 0")
	}
	if cfg.DisputeWindow <= 0 {
		return errors.New("dispute_window must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	if cfg.HandshakeTimeout <= 0 {
		return errors.New("handshake_timeout must be > 0")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("confirm_timeout must be > 0")
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.SettlementBackend))
	if _, ok := allowedSettlementBackends[backend]; !ok {
		return fmt.Errorf("invalid settlement_backend %q", cfg.SettlementBackend)
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
