// Package relaytest is an in-memory relay for exercising the signed
// transport end to end without a production relay.
//
// It implements the bootstrap API (session creation, auth codes, base-URL
// establishment), verifies the x-vk-sig-* values on every forwarded request
// with real Ed25519 checks, enforces timestamp skew and nonce uniqueness,
// and speaks the signed envelope protocol on its websocket endpoint acting
// as the paired host. GenerateHost mints a complete pairing (client key in
// JWK form, host key, signing session) so a test or the dev stub can go
// from nothing to a verified signed exchange in a few lines.
package relaytest
