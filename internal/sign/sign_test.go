package sign_test

import (
	"crypto/ed25519"
	"net/http"
	"regexp"
	"testing"

	"vkrelay/internal/domain"
	"vkrelay/internal/sign"
)

func testKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	return pub, priv
}

func TestRequestSignature_Deterministic(t *testing.T) {
	_, priv := testKey(t)
	const (
		session = domain.SigningSessionID("ss-1")
		nonce   = "00112233445566778899aabbccddeeff"
		ts      = int64(1700000000)
	)
	body := []byte(`{"title":"hello"}`)

	a := sign.RequestAt(priv, session, "post", "/api/tasks", body, ts, nonce)
	b := sign.RequestAt(priv, session, "POST", "/api/tasks", body, ts, nonce)
	if a.Signature != b.Signature {
		t.Fatal("same inputs (method case-folded) should produce the same signature")
	}

	// Changing any one field must change the signature.
	variants := []domain.RelaySignature{
		sign.RequestAt(priv, session, "GET", "/api/tasks", body, ts, nonce),
		sign.RequestAt(priv, session, "POST", "/api/other", body, ts, nonce),
		sign.RequestAt(priv, "ss-2", "POST", "/api/tasks", body, ts, nonce),
		sign.RequestAt(priv, session, "POST", "/api/tasks", []byte("x"), ts, nonce),
		sign.RequestAt(priv, session, "POST", "/api/tasks", body, ts+1, nonce),
		sign.RequestAt(priv, session, "POST", "/api/tasks", body, ts, "ffeeddccbbaa99887766554433221100"),
	}
	for i, v := range variants {
		if v.Signature == a.Signature {
			t.Fatalf("variant %d did not change the signature", i)
		}
	}
}

func TestRequestSignature_Verifies(t *testing.T) {
	pub, priv := testKey(t)
	body := []byte("payload")

	sig := sign.Request(priv, "ss-1", http.MethodPut, "/api/things?x=1", body)
	if !sign.VerifyRequest(pub, http.MethodPut, "/api/things?x=1", body, sig) {
		t.Fatal("genuine signature should verify")
	}
	if sign.VerifyRequest(pub, http.MethodPut, "/api/things?x=2", body, sig) {
		t.Fatal("changed path should not verify")
	}
	if sign.VerifyRequest(pub, http.MethodPut, "/api/things?x=1", []byte("tampered"), sig) {
		t.Fatal("changed body should not verify")
	}

	otherPub, _ := testKey(t)
	if sign.VerifyRequest(otherPub, http.MethodPut, "/api/things?x=1", body, sig) {
		t.Fatal("wrong key should not verify")
	}
}

func TestRequestSignature_EmptyBody(t *testing.T) {
	pub, priv := testKey(t)

	sig := sign.Request(priv, "ss-1", http.MethodGet, "/api/ws", nil)
	if !sign.VerifyRequest(pub, http.MethodGet, "/api/ws", nil, sig) {
		t.Fatal("nil body should verify against nil body")
	}
	if !sign.VerifyRequest(pub, http.MethodGet, "/api/ws", []byte{}, sig) {
		t.Fatal("nil and empty bodies hash identically")
	}
}

func TestNewNonce_Format(t *testing.T) {
	hex32 := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		n := sign.NewNonce()
		if !hex32.MatchString(n) {
			t.Fatalf("nonce %q is not 32 hex chars", n)
		}
		if seen[n] {
			t.Fatalf("nonce %q repeated", n)
		}
		seen[n] = true
	}
}

func TestHeaders_RoundTrip(t *testing.T) {
	_, priv := testKey(t)
	sig := sign.Request(priv, "ss-1", http.MethodGet, "/api/x", nil)

	h := http.Header{}
	sign.SetHeaders(h, sig)
	got, ok := sign.FromHeaders(h)
	if !ok {
		t.Fatal("FromHeaders should succeed")
	}
	if got != sig {
		t.Fatalf("header round trip mismatch: %+v != %+v", got, sig)
	}

	if _, ok := sign.FromHeaders(http.Header{}); ok {
		t.Fatal("empty headers should not parse")
	}
}

func TestQuery_RoundTrip(t *testing.T) {
	_, priv := testKey(t)
	sig := sign.Request(priv, "ss-1", http.MethodGet, "/api/ws", nil)

	got, ok := sign.FromQuery(sign.QueryValues(sig))
	if !ok {
		t.Fatal("FromQuery should succeed")
	}
	if got != sig {
		t.Fatalf("query round trip mismatch: %+v != %+v", got, sig)
	}
}

func TestFrameSignature(t *testing.T) {
	pub, priv := testKey(t)
	payload := []byte("frame data")

	sig := sign.Frame(priv, "ss-1", "nonce", 3, "binary", payload)
	if !sign.VerifyFrame(pub, "ss-1", "nonce", 3, "binary", payload, sig) {
		t.Fatal("genuine frame signature should verify")
	}
	if sign.VerifyFrame(pub, "ss-1", "nonce", 4, "binary", payload, sig) {
		t.Fatal("changed seq should not verify")
	}
	if sign.VerifyFrame(pub, "ss-1", "nonce", 3, "text", payload, sig) {
		t.Fatal("changed msg type should not verify")
	}
	if sign.VerifyFrame(pub, "ss-1", "other", 3, "binary", payload, sig) {
		t.Fatal("changed request nonce should not verify")
	}
	if sign.VerifyFrame(pub, "ss-1", "nonce", 3, "binary", payload, "!!not-base64!!") {
		t.Fatal("malformed signature encoding should not verify")
	}
}
