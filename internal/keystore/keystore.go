// Package keystore holds per-client signing keys used to verify log
// envelopes. Production deployments load public keys from configuration and
// fail closed on unknown clients; private keys are registered only in test
// and demo setups so fixtures can sign payloads.
package keystore

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/sign"
)

// Store is the key lookup capability consumed by the transport codec.
// A lookup miss is not an error by itself; the codec decides whether it is
// fatal.
type Store interface {
	PublicKey(clientID string) (*[32]byte, bool)
	// PrivateKey is available only for clients registered with a key pair
	// (test/demo configurations).
	PrivateKey(clientID string) (*[64]byte, bool)
}

type keyPair struct {
	public  *[32]byte
	private *[64]byte // nil for production clients
}

// Memory is an in-memory key registry, safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]keyPair
}

// NewMemory creates an empty key registry.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]keyPair)}
}

// Register stores a client's public key. Idempotent per client: re-registering
// overwrites.
func (m *Memory) Register(clientID string, public *[32]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[clientID] = keyPair{public: public}
}

// RegisterPair stores both halves of a client's key pair. Test/demo only.
func (m *Memory) RegisterPair(clientID string, public *[32]byte, private *[64]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[clientID] = keyPair{public: public, private: private}
}

// PublicKey returns the verification key for a client, if registered.
func (m *Memory) PublicKey(clientID string) (*[32]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kp, ok := m.keys[clientID]
	if !ok || kp.public == nil {
		return nil, false
	}
	return kp.public, true
}

// PrivateKey returns the signing key for a client, if registered with one.
func (m *Memory) PrivateKey(clientID string) (*[64]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kp, ok := m.keys[clientID]
	if !ok || kp.private == nil {
		return nil, false
	}
	return kp.private, true
}

// GenerateKeyPair creates a fresh signing key pair from a cryptographically
// secure random source. Use for production key provisioning.
func GenerateKeyPair() (*[32]byte, *[64]byte, error) {
	public, private, err := sign.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key pair: %w", err)
	}
	return public, private, nil
}

// DeriveKeyPair deterministically derives a signing key pair from a seed
// string. Reproducible test fixtures only; never use for production keys.
func DeriveKeyPair(seed string) (*[32]byte, *[64]byte) {
	digest := sha256.Sum256([]byte(seed))
	// sign.GenerateKey reads exactly 32 bytes of entropy.
	public, private, err := sign.GenerateKey(bytes.NewReader(digest[:]))
	if err != nil {
		panic("keystore: derive from fixed seed: " + err.Error())
	}
	return public, private
}

// ParsePublicKey converts raw key bytes into the fixed-size form.
func ParsePublicKey(raw []byte) (*[32]byte, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("public key must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
