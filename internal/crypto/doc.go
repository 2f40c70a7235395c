// Package crypto handles the Ed25519 key material carried by pairing
// records.
//
// Contents
//
//   - Decoding the client's private signing key from its OKP JWK form
//     (DecodeClientKeyJWK)
//   - Decoding the host's raw base64 verification key (DecodeServerKeyB64)
//   - KeyCache, which imports each pairing's keys at most once per
//     (host, signing session) pair and reuses them for the session lifetime
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// Key decode failures are unrecoverable "re-pair this host" conditions and
// are never retried.
package crypto
