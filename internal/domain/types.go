package domain

import "encoding/json"

// HostID identifies a paired local host.
type HostID string

// SigningSessionID scopes which key pair is currently valid for a pairing.
// It is rotated by re-pairing.
type SigningSessionID string

// PairedHost is the pairing record created when a host is paired out of band.
// The transport reads it on every signed operation and never mutates it.
//
// A record whose SigningSessionID is empty predates the signing protocol and
// cannot be used until the host is re-paired.
type PairedHost struct {
	HostID             HostID           `json:"host_id"`
	Name               string           `json:"name,omitempty"`
	SigningSessionID   SigningSessionID `json:"signing_session_id"`
	PrivateKeyJWK      json.RawMessage  `json:"private_key_jwk"`
	ServerPublicKeyB64 string           `json:"server_public_key_b64"`
	PairedAt           int64            `json:"paired_at,omitempty"`
}

// RelaySignature holds the four values that authenticate one request or one
// WebSocket handshake. It is computed fresh every time and never persisted;
// replay protection relies on the nonce and timestamp being unique.
type RelaySignature struct {
	SigningSessionID SigningSessionID
	Timestamp        int64  // unix seconds at signing time
	Nonce            string // 16 random bytes as hex
	Signature        string // base64 Ed25519 signature over the canonical message
}

// RelaySession is returned by the relay backend when a session is created
// for a host.
type RelaySession struct {
	ID string `json:"session_id"`
}

// RelayHostContext bundles everything needed to issue signed calls for one
// host: the pairing record and the resolved relay session base URL.
type RelayHostContext struct {
	HostID              HostID
	Host                PairedHost
	RelaySessionBaseURL string
}
