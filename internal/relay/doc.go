// Package relay implements the HTTP side of the signed transport.
//
// Backend speaks the relay bootstrap API (session creation, auth codes,
// base-URL establishment). Client issues signed requests to an established
// relay session: each request carries the x-vk-sig-* headers computed over
// the exact bytes being transmitted, and a 401/403 response evicts the
// cached session so the next call re-resolves. Dispatcher decides per call
// whether relaying applies at all: only workspace-scoped local API paths
// reached from a workspace route are relayed; everything else falls through
// to a direct, unsigned request.
//
// There is no silent fallback from signed to unsigned once relaying has been
// determined to apply: a failure to resolve or sign is a hard failure.
package relay
