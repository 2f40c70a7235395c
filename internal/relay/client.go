package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"vkrelay/internal/crypto"
	"vkrelay/internal/domain"
	"vkrelay/internal/session"
	"vkrelay/internal/sign"
)

// Request describes one call through the relay. Body is drained once; the
// same bytes are hashed into the signature and transmitted, which is the
// property the host-side verification depends on.
type Request struct {
	Method string // defaults to GET
	Header http.Header
	Body   io.Reader
}

// Client issues signed HTTP requests to a host's relay session.
type Client struct {
	resolver *session.Resolver
	keys     *crypto.KeyCache
	http     *http.Client
	log      *zap.Logger
}

func NewClient(resolver *session.Resolver, keys *crypto.KeyCache, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{resolver: resolver, keys: keys, http: httpClient, log: log.Named("relay")}
}

// Do resolves the host's relay session, signs the request over method, path
// and body, and dispatches it to {baseURL}{pathAndQuery}.
//
// A 401 or 403 response evicts the cached session base URL so the next call
// re-resolves, but the response is still returned to the caller: retry
// policy belongs to the caller, not this layer.
func (c *Client) Do(ctx context.Context, id domain.HostID, pathAndQuery string, r Request) (*http.Response, error) {
	hctx, err := c.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := c.keys.SigningKey(hctx.Host)
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	sig := sign.Request(key, hctx.Host.SigningSessionID, method, pathAndQuery, body)

	req, err := http.NewRequestWithContext(ctx, method, hctx.RelaySessionBaseURL+pathAndQuery, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" && len(body) > 0 {
		req.Header.Set("Content-Type", http.DetectContentType(body))
	}
	sign.SetHeaders(req.Header, sig)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.log.Warn("relay rejected signed request, evicting session",
			zap.String("host", string(id)),
			zap.String("path", pathAndQuery),
			zap.Int("status", resp.StatusCode))
		c.resolver.Invalidate(id)
	}
	return resp, nil
}
