package sign

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vkrelay/internal/domain"
)

// Signature transport fields, shared between HTTP headers and WebSocket
// upgrade query parameters.
const (
	HeaderSession   = "x-vk-sig-session"
	HeaderTimestamp = "x-vk-sig-ts"
	HeaderNonce     = "x-vk-sig-nonce"
	HeaderSignature = "x-vk-sig-signature"
)

const canonicalVersion = "v1"

// NewNonce returns 16 random bytes rendered as hex (a UUID with the hyphens
// stripped).
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// CanonicalRequest builds the deterministic message signed for one HTTP
// request. The body must be the exact bytes that will be transmitted, or
// the signature will not verify on the host side. An empty body hashes the
// empty byte sequence.
func CanonicalRequest(ts int64, method, pathAndQuery string, session domain.SigningSessionID, nonce string, body []byte) string {
	return strings.Join([]string{
		canonicalVersion,
		strconv.FormatInt(ts, 10),
		strings.ToUpper(method),
		pathAndQuery,
		string(session),
		nonce,
		bodyDigest(body),
	}, "|")
}

// RequestAt signs one request with an explicit timestamp and nonce.
func RequestAt(key ed25519.PrivateKey, session domain.SigningSessionID, method, pathAndQuery string, body []byte, ts int64, nonce string) domain.RelaySignature {
	msg := CanonicalRequest(ts, method, pathAndQuery, session, nonce, body)
	return domain.RelaySignature{
		SigningSessionID: session,
		Timestamp:        ts,
		Nonce:            nonce,
		Signature:        base64.StdEncoding.EncodeToString(ed25519.Sign(key, []byte(msg))),
	}
}

// Request signs one request at the current time with a fresh nonce.
func Request(key ed25519.PrivateKey, session domain.SigningSessionID, method, pathAndQuery string, body []byte) domain.RelaySignature {
	return RequestAt(key, session, method, pathAndQuery, body, time.Now().Unix(), NewNonce())
}

// VerifyRequest recomputes the canonical message from the received values
// and checks sig against pub. Used by the host side of the exchange.
func VerifyRequest(pub ed25519.PublicKey, method, pathAndQuery string, body []byte, sig domain.RelaySignature) bool {
	msg := CanonicalRequest(sig.Timestamp, method, pathAndQuery, sig.SigningSessionID, sig.Nonce, body)
	raw, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, []byte(msg), raw)
}

// CanonicalFrame builds the deterministic message signed for one WebSocket
// frame.
func CanonicalFrame(session domain.SigningSessionID, requestNonce string, seq uint64, msgType string, payload []byte) string {
	return strings.Join([]string{
		canonicalVersion,
		string(session),
		requestNonce,
		strconv.FormatUint(seq, 10),
		msgType,
		bodyDigest(payload),
	}, "|")
}

// Frame signs one frame and returns the base64 signature.
func Frame(key ed25519.PrivateKey, session domain.SigningSessionID, requestNonce string, seq uint64, msgType string, payload []byte) string {
	msg := CanonicalFrame(session, requestNonce, seq, msgType, payload)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, []byte(msg)))
}

// VerifyFrame checks a frame signature against the peer's public key.
func VerifyFrame(pub ed25519.PublicKey, session domain.SigningSessionID, requestNonce string, seq uint64, msgType string, payload []byte, sigB64 string) bool {
	raw, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	msg := CanonicalFrame(session, requestNonce, seq, msgType, payload)
	return ed25519.Verify(pub, []byte(msg), raw)
}

// SetHeaders attaches the signature values to an outbound HTTP request.
func SetHeaders(h http.Header, sig domain.RelaySignature) {
	h.Set(HeaderSession, string(sig.SigningSessionID))
	h.Set(HeaderTimestamp, strconv.FormatInt(sig.Timestamp, 10))
	h.Set(HeaderNonce, sig.Nonce)
	h.Set(HeaderSignature, sig.Signature)
}

// FromHeaders reads the signature values from an inbound request. ok is
// false when any of the four is missing or malformed.
func FromHeaders(h http.Header) (sig domain.RelaySignature, ok bool) {
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return sig, false
	}
	sig = domain.RelaySignature{
		SigningSessionID: domain.SigningSessionID(h.Get(HeaderSession)),
		Timestamp:        ts,
		Nonce:            h.Get(HeaderNonce),
		Signature:        h.Get(HeaderSignature),
	}
	if sig.SigningSessionID == "" || sig.Nonce == "" || sig.Signature == "" {
		return sig, false
	}
	return sig, true
}

// QueryValues renders the signature values as WebSocket upgrade query
// parameters.
func QueryValues(sig domain.RelaySignature) url.Values {
	v := url.Values{}
	v.Set(HeaderSession, string(sig.SigningSessionID))
	v.Set(HeaderTimestamp, strconv.FormatInt(sig.Timestamp, 10))
	v.Set(HeaderNonce, sig.Nonce)
	v.Set(HeaderSignature, sig.Signature)
	return v
}

// FromQuery reads the signature values from upgrade query parameters.
func FromQuery(v url.Values) (sig domain.RelaySignature, ok bool) {
	ts, err := strconv.ParseInt(v.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return sig, false
	}
	sig = domain.RelaySignature{
		SigningSessionID: domain.SigningSessionID(v.Get(HeaderSession)),
		Timestamp:        ts,
		Nonce:            v.Get(HeaderNonce),
		Signature:        v.Get(HeaderSignature),
	}
	if sig.SigningSessionID == "" || sig.Nonce == "" || sig.Signature == "" {
		return sig, false
	}
	return sig, true
}
