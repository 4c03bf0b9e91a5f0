package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeystoreV1 is the on-disk format for identity/keypair.key (spec.md §6).
// The secret key is sealed under a password-derived key using Argon2id and
// AES-256-GCM.
type KeystoreV1 struct {
	Version    string `json:"version"` // "NDLKSv1"
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"` // AES-GCM seal of the Ed25519 private key
	PublicKey  []byte `json:"public_key"`
}

const keystoreVersion = "NDLKSv1"

// argon2id tuning. These are deliberately conservative defaults suitable for
// a local interactive unlock, not a server-side KDF budget.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

func deriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// SealKeyPair encrypts kp.Private under a key derived from password and
// returns the serializable keystore record.
func SealKeyPair(kp KeyPair, password []byte) (*KeystoreV1, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: keystore: read salt: %w", err)
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: keystore: read nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, kp.Private, nil)

	return &KeystoreV1{
		Version:    keystoreVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		PublicKey:  append([]byte(nil), kp.Public...),
	}, nil
}

// OpenKeyPair reverses SealKeyPair, verifying the AEAD tag and the recovered
// public key against the stored one.
func OpenKeyPair(ks *KeystoreV1, password []byte) (KeyPair, error) {
	if ks == nil {
		return KeyPair{}, fmt.Errorf("crypto: keystore: nil record")
	}
	if ks.Version != keystoreVersion {
		return KeyPair{}, fmt.Errorf("crypto: keystore: unsupported version %q", ks.Version)
	}
	key := deriveKey(password, ks.Salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: keystore: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: keystore: gcm: %w", err)
	}
	plain, err := gcm.Open(nil, ks.Nonce, ks.Ciphertext, nil)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: keystore: decrypt: wrong password or corrupted file")
	}
	if len(plain) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("crypto: keystore: recovered key has wrong length %d", len(plain))
	}
	priv := ed25519.PrivateKey(plain)
	pub := priv.Public().(ed25519.PublicKey)
	if len(ks.PublicKey) == ed25519.PublicKeySize {
		for i := range pub {
			if pub[i] != ks.PublicKey[i] {
				return KeyPair{}, fmt.Errorf("crypto: keystore: public key mismatch")
			}
		}
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// Marshal serializes ks as indented JSON, the on-disk keystore file format;
// UnmarshalKeystore parses it back.
func (ks *KeystoreV1) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func UnmarshalKeystore(b []byte) (*KeystoreV1, error) {
	var ks KeystoreV1
	if err := json.Unmarshal(b, &ks); err != nil {
		return nil, fmt.Errorf("crypto: keystore: parse: %w", err)
	}
	return &ks, nil
}
