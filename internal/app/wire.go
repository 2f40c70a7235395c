package app

import (
	"net/http"
	"net/http/cookiejar"

	"go.uber.org/zap"

	"vkrelay/internal/crypto"
	"vkrelay/internal/relay"
	"vkrelay/internal/session"
	"vkrelay/internal/store"
	"vkrelay/internal/ws"
)

// Wire bundles the stores, caches and clients for the CLI.
type Wire struct {
	Pairings *store.PairingFileStore
	Active   *store.ActiveHost
	Keys     *crypto.KeyCache
	Resolver *session.Resolver
	Relay    *relay.Client
	Dispatch *relay.Dispatcher
	WS       *ws.Dialer
	HTTP     *http.Client
	Log      *zap.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// The relay session credential is a cookie set during establishment;
	// the shared client's jar carries it onto every signed request.
	httpClient := cfg.HTTP
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Jar: jar}
	}

	pairings := store.NewPairingFileStore(cfg.Home, cfg.Passphrase)
	active := store.NewActiveHost()
	keys := crypto.NewKeyCache()

	backend := relay.NewBackend(cfg.RelayAPIURL, httpClient)
	resolver := session.NewResolver(pairings, backend, log)
	client := relay.NewClient(resolver, keys, httpClient, log)
	dispatch := relay.NewDispatcher(client, active, httpClient, cfg.DirectBaseURL, log)

	return &Wire{
		Pairings: pairings,
		Active:   active,
		Keys:     keys,
		Resolver: resolver,
		Relay:    client,
		Dispatch: dispatch,
		WS:       &ws.Dialer{Resolver: resolver, Keys: keys, Log: log},
		HTTP:     httpClient,
		Log:      log,
	}, nil
}
