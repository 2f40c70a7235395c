// Package session resolves and caches the relay session context for paired
// hosts.
//
// Resolving a host performs the bootstrap exchange against the relay API
// (create session, obtain auth code, exchange it for the session base URL)
// and caches the resulting base URL per host. Concurrent callers share one
// in-flight exchange. A failed exchange is evicted before its waiters are
// released, so later callers always retry from scratch instead of observing
// a stale failure. Auth rejections on signed requests invalidate the cache
// through Invalidate, forcing re-resolution on the next call.
package session
