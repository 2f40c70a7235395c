package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vkrelay/internal/domain"
)

// entry is one cached base-URL resolution. done is closed when the exchange
// finishes; baseURL and err are immutable afterwards.
type entry struct {
	done    chan struct{}
	baseURL string
	err     error
}

// Resolver establishes and caches relay session base URLs per host.
type Resolver struct {
	pairings domain.PairingStore
	backend  domain.RelayBackend
	log      *zap.Logger

	mu      sync.Mutex
	entries map[domain.HostID]*entry
}

func NewResolver(pairings domain.PairingStore, backend domain.RelayBackend, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		pairings: pairings,
		backend:  backend,
		log:      log.Named("resolver"),
		entries:  make(map[domain.HostID]*entry),
	}
}

// Resolve returns the relay context for id, reusing the cached base URL when
// one is available. Pairing problems are detected before any network call.
func (r *Resolver) Resolve(ctx context.Context, id domain.HostID) (domain.RelayHostContext, error) {
	host, ok, err := r.pairings.PairedHost(ctx, id)
	if err != nil {
		return domain.RelayHostContext{}, fmt.Errorf("looking up pairing for %s: %w", id, err)
	}
	if !ok {
		return domain.RelayHostContext{}, fmt.Errorf("host %s: %w", id, domain.ErrNotPaired)
	}
	if host.SigningSessionID == "" {
		return domain.RelayHostContext{}, fmt.Errorf("host %s: %w", id, domain.ErrPairingOutdated)
	}

	base, err := r.baseURL(ctx, id)
	if err != nil {
		return domain.RelayHostContext{}, err
	}
	return domain.RelayHostContext{HostID: id, Host: host, RelaySessionBaseURL: base}, nil
}

// Invalidate drops the cached base URL for id. Called after a 401/403 on a
// signed request so the next call re-resolves.
func (r *Resolver) Invalidate(id domain.HostID) {
	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.log.Debug("evicting relay session", zap.String("host", string(id)))
		delete(r.entries, id)
	}
	r.mu.Unlock()
}

func (r *Resolver) baseURL(ctx context.Context, id domain.HostID) (string, error) {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		<-e.done
		return e.baseURL, e.err
	}
	e := &entry{done: make(chan struct{})}
	r.entries[id] = e
	r.mu.Unlock()

	base, err := r.exchange(ctx, id)

	r.mu.Lock()
	if err != nil {
		// Evict before releasing waiters: a caller arriving after this
		// point must start a fresh exchange, never read the failure.
		if r.entries[id] == e {
			delete(r.entries, id)
		}
		e.err = err
	} else {
		e.baseURL = base
	}
	r.mu.Unlock()
	close(e.done)

	return base, err
}

func (r *Resolver) exchange(ctx context.Context, id domain.HostID) (string, error) {
	sess, err := r.backend.CreateSession(ctx, id)
	if err != nil {
		return "", fmt.Errorf("creating relay session for %s: %w", id, err)
	}
	code, err := r.backend.CreateAuthCode(ctx, sess.ID)
	if err != nil {
		return "", fmt.Errorf("creating relay auth code for %s: %w", id, err)
	}
	base, err := r.backend.EstablishBaseURL(ctx, id, code)
	if err != nil {
		return "", fmt.Errorf("establishing relay session for %s: %w", id, err)
	}
	r.log.Debug("relay session established",
		zap.String("host", string(id)),
		zap.String("base_url", base))
	return base, nil
}
