package crypto

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"vkrelay/internal/domain"
)

// KeyCache memoizes decoded key material per (host, signing session) pair.
// Signing and verification keys live in independent maps; an entry survives
// until the signing session rotates and its cache key changes with it.
//
// Reads and writes are idempotent replace-on-key operations, so a single
// mutex over both maps is enough.
type KeyCache struct {
	mu      sync.Mutex
	signing map[string]ed25519.PrivateKey
	verify  map[string]ed25519.PublicKey
}

func NewKeyCache() *KeyCache {
	return &KeyCache{
		signing: make(map[string]ed25519.PrivateKey),
		verify:  make(map[string]ed25519.PublicKey),
	}
}

func cacheKey(host domain.PairedHost) string {
	return fmt.Sprintf("%s:%s", host.HostID, host.SigningSessionID)
}

// SigningKey returns the client's private signing key for host, decoding
// the pairing JWK on first use.
func (c *KeyCache) SigningKey(host domain.PairedHost) (ed25519.PrivateKey, error) {
	if host.SigningSessionID == "" {
		return nil, fmt.Errorf("host %s: %w", host.HostID, domain.ErrPairingOutdated)
	}
	k := cacheKey(host)

	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.signing[k]; ok {
		return key, nil
	}
	key, err := DecodeClientKeyJWK(host.PrivateKeyJWK)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", host.HostID, err)
	}
	c.signing[k] = key
	return key, nil
}

// VerifyKey returns the host's public verification key, decoding the raw
// base64 bytes on first use.
func (c *KeyCache) VerifyKey(host domain.PairedHost) (ed25519.PublicKey, error) {
	if host.SigningSessionID == "" {
		return nil, fmt.Errorf("host %s: %w", host.HostID, domain.ErrPairingOutdated)
	}
	if host.ServerPublicKeyB64 == "" {
		return nil, fmt.Errorf("host %s: pairing has no server public key; re-pair the host", host.HostID)
	}
	k := cacheKey(host)

	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.verify[k]; ok {
		return key, nil
	}
	key, err := DecodeServerKeyB64(host.ServerPublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", host.HostID, err)
	}
	c.verify[k] = key
	return key, nil
}
