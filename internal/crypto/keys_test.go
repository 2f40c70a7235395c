package crypto_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"

	"vkrelay/internal/crypto"
	"vkrelay/internal/domain"
)

func newPairing(t *testing.T, hostID domain.HostID, session domain.SigningSessionID) (domain.PairedHost, ed25519.PrivateKey, ed25519.PublicKey) {
	t.Helper()
	_, clientPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating client key: %v", err)
	}
	serverPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating server key: %v", err)
	}
	jwk, err := crypto.EncodeClientKeyJWK(clientPriv)
	if err != nil {
		t.Fatalf("encoding JWK: %v", err)
	}
	return domain.PairedHost{
		HostID:             hostID,
		SigningSessionID:   session,
		PrivateKeyJWK:      jwk,
		ServerPublicKeyB64: base64.StdEncoding.EncodeToString(serverPub),
	}, clientPriv, serverPub
}

func TestJWK_RoundTrip(t *testing.T) {
	host, clientPriv, _ := newPairing(t, "h1", "ss-1")

	got, err := crypto.DecodeClientKeyJWK(host.PrivateKeyJWK)
	if err != nil {
		t.Fatalf("DecodeClientKeyJWK: %v", err)
	}
	if !got.Equal(clientPriv) {
		t.Fatal("decoded key differs from original")
	}
}

func TestJWK_RejectsWrongCurve(t *testing.T) {
	if _, err := crypto.DecodeClientKeyJWK([]byte(`{"kty":"OKP","crv":"X25519","d":"AA"}`)); err == nil {
		t.Fatal("expected error for non-Ed25519 JWK")
	}
	if _, err := crypto.DecodeClientKeyJWK([]byte(`{"kty":"EC","crv":"P-256"}`)); err == nil {
		t.Fatal("expected error for EC JWK")
	}
	if _, err := crypto.DecodeClientKeyJWK([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JWK")
	}
}

func TestDecodeServerKeyB64(t *testing.T) {
	host, _, serverPub := newPairing(t, "h1", "ss-1")

	got, err := crypto.DecodeServerKeyB64(host.ServerPublicKeyB64)
	if err != nil {
		t.Fatalf("DecodeServerKeyB64: %v", err)
	}
	if !got.Equal(serverPub) {
		t.Fatal("decoded server key differs from original")
	}

	if _, err := crypto.DecodeServerKeyB64("%%%"); err == nil {
		t.Fatal("expected error for bad base64")
	}
	if _, err := crypto.DecodeServerKeyB64("QUJD"); err == nil {
		t.Fatal("expected error for wrong key length")
	}
}

func TestKeyCache_ReusesImportedKeys(t *testing.T) {
	cache := crypto.NewKeyCache()
	host, _, _ := newPairing(t, "h1", "ss-1")

	k1, err := cache.SigningKey(host)
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}

	// Corrupt the record's JWK; a cached entry must not re-import.
	host.PrivateKeyJWK = []byte(`broken`)
	k2, err := cache.SigningKey(host)
	if err != nil {
		t.Fatalf("SigningKey (cached): %v", err)
	}
	if !k1.Equal(k2) {
		t.Fatal("cache returned a different key")
	}

	v1, err := cache.VerifyKey(host)
	if err != nil {
		t.Fatalf("VerifyKey: %v", err)
	}
	host.ServerPublicKeyB64 = "broken"
	v2, err := cache.VerifyKey(host)
	if err != nil {
		t.Fatalf("VerifyKey (cached): %v", err)
	}
	if !v1.Equal(v2) {
		t.Fatal("cache returned a different verify key")
	}
}

func TestKeyCache_SessionRotationMisses(t *testing.T) {
	cache := crypto.NewKeyCache()
	host, _, _ := newPairing(t, "h1", "ss-1")

	if _, err := cache.SigningKey(host); err != nil {
		t.Fatalf("SigningKey: %v", err)
	}

	// A rotated session is a different cache entry; stale key material must
	// not leak across sessions.
	rotated, _, _ := newPairing(t, "h1", "ss-2")
	k1, _ := cache.SigningKey(host)
	k2, err := cache.SigningKey(rotated)
	if err != nil {
		t.Fatalf("SigningKey (rotated): %v", err)
	}
	if k1.Equal(k2) {
		t.Fatal("rotated session must import its own key")
	}
}

func TestKeyCache_OutdatedPairing(t *testing.T) {
	cache := crypto.NewKeyCache()
	host, _, _ := newPairing(t, "h1", "")

	if _, err := cache.SigningKey(host); !errors.Is(err, domain.ErrPairingOutdated) {
		t.Fatalf("want ErrPairingOutdated, got %v", err)
	}
	if _, err := cache.VerifyKey(host); !errors.Is(err, domain.ErrPairingOutdated) {
		t.Fatalf("want ErrPairingOutdated, got %v", err)
	}

	host, _, _ = newPairing(t, "h1", "ss-1")
	host.ServerPublicKeyB64 = ""
	if _, err := cache.VerifyKey(host); err == nil {
		t.Fatal("expected error for pairing without server key")
	}
}
