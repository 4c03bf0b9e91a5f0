package node

import (
	"fmt"
	"os"
	"path/filepath"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// keystoreDirName and keystoreFileName place the identity file at
// DataDir/identity/keypair.key, per spec.md §6's on-disk layout.
const (
	keystoreDirName  = "identity"
	keystoreFileName = "keypair.key"
)

// KeystorePath returns the identity keystore file path for a data
// directory.
func KeystorePath(dataDir string) string {
	return filepath.Join(dataDir, keystoreDirName, keystoreFileName)
}

// LoadIdentity unlocks the node's Ed25519 identity from its keystore file
// under password, generating and sealing a fresh identity on first run.
func LoadIdentity(dataDir string, password []byte) (ndlcrypto.KeyPair, error) {
	path := KeystorePath(dataDir)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generateAndSeal(path, password)
	}
	if err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: read keystore: %w", err)
	}
	ks, err := ndlcrypto.UnmarshalKeystore(raw)
	if err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: parse keystore: %w", err)
	}
	kp, err := ndlcrypto.OpenKeyPair(ks, password)
	if err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: unlock keystore: %w", err)
	}
	return kp, nil
}

func generateAndSeal(path string, password []byte) (ndlcrypto.KeyPair, error) {
	kp, err := ndlcrypto.GenerateIdentity()
	if err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: generate identity: %w", err)
	}
	ks, err := ndlcrypto.SealKeyPair(kp, password)
	if err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: seal identity: %w", err)
	}
	raw, err := ks.Marshal()
	if err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: marshal keystore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: create identity dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return ndlcrypto.KeyPair{}, fmt.Errorf("node: write keystore: %w", err)
	}
	return kp, nil
}
