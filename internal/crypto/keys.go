package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// okpJWK is the subset of RFC 8037 we accept: an Ed25519 private key in
// OKP form. "d" is the 32-byte seed, "x" the matching public key.
type okpJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	D   string `json:"d"`
	X   string `json:"x"`
}

// DecodeClientKeyJWK parses the pairing's exported private key JWK into a
// usable Ed25519 signing key.
func DecodeClientKeyJWK(raw []byte) (ed25519.PrivateKey, error) {
	var jwk okpJWK
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return nil, fmt.Errorf("parsing private key JWK: %w", err)
	}
	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported key type %q/%q (want OKP/Ed25519)", jwk.Kty, jwk.Crv)
	}
	seed, err := base64.RawURLEncoding.DecodeString(jwk.D)
	if err != nil {
		return nil, fmt.Errorf("decoding JWK d: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("bad JWK seed length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	if jwk.X != "" {
		pub, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("decoding JWK x: %w", err)
		}
		if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(pub)) {
			return nil, fmt.Errorf("JWK public key does not match its seed")
		}
	}
	return priv, nil
}

// DecodeServerKeyB64 decodes the host's verification key from the base64
// raw bytes stored in the pairing record.
func DecodeServerKeyB64(s string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding server public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("bad server public key length %d", len(b))
	}
	return ed25519.PublicKey(b), nil
}

// EncodeClientKeyJWK exports an Ed25519 private key as an OKP JWK. The
// inverse of DecodeClientKeyJWK, used when generating pairings.
func EncodeClientKeyJWK(priv ed25519.PrivateKey) ([]byte, error) {
	return json.Marshal(okpJWK{
		Kty: "OKP",
		Crv: "Ed25519",
		D:   base64.RawURLEncoding.EncodeToString(priv.Seed()),
		X:   base64.RawURLEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
	})
}

// Fingerprint returns a short hex digest of a public key for logs and the
// hosts listing.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}
