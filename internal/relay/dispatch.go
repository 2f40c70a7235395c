package relay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"vkrelay/internal/domain"
)

// hostIDParam is the query parameter naming an explicit target host on a
// workspace route.
const hostIDParam = "hostId"

// IsWorkspaceRoutePath reports whether the caller's current route is
// workspace-scoped. Workspace routes are /workspaces and everything under
// it, plus the two project deep links:
//
//	/projects/{p}/issues/{i}/workspaces/{w}
//	/projects/{p}/workspaces/create/{w}
func IsWorkspaceRoutePath(path string) bool {
	if path == "/workspaces" || strings.HasPrefix(path, "/workspaces/") {
		return true
	}
	seg := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(seg) == 6 && seg[0] == "projects" && seg[2] == "issues" && seg[4] == "workspaces":
		return seg[1] != "" && seg[3] != "" && seg[5] != ""
	case len(seg) == 5 && seg[0] == "projects" && seg[2] == "workspaces" && seg[3] == "create":
		return seg[1] != "" && seg[4] != ""
	}
	return false
}

// ShouldRelayAPIPath reports whether path targets the workspace-scoped local
// API. Paths under /api/remote/ already address the relay control plane and
// are never re-relayed.
func ShouldRelayAPIPath(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/api/remote/")
}

// Route is the caller's current page context: its path and query.
type Route struct {
	Path  string
	Query url.Values
}

// Dispatcher routes local API calls either through a host's signed relay
// session or directly to the local API, depending on the current route.
type Dispatcher struct {
	client     *Client
	active     domain.ActiveHostStore
	direct     *http.Client
	directBase string
	log        *zap.Logger
}

func NewDispatcher(client *Client, active domain.ActiveHostStore, direct *http.Client, directBase string, log *zap.Logger) *Dispatcher {
	if direct == nil {
		direct = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		client:     client,
		active:     active,
		direct:     direct,
		directBase: strings.TrimRight(directBase, "/"),
		log:        log.Named("dispatch"),
	}
}

// HostIDFor resolves which host, if any, the current route implies. An
// explicit hostId query parameter on a workspace route wins and is written
// back to the active-host memory; otherwise the remembered active host is
// used.
func (d *Dispatcher) HostIDFor(route Route) (domain.HostID, bool) {
	if !IsWorkspaceRoutePath(route.Path) {
		return "", false
	}
	if id := route.Query.Get(hostIDParam); id != "" {
		d.active.SetActiveHostID(domain.HostID(id))
		return domain.HostID(id), true
	}
	return d.active.ActiveHostID()
}

// Request performs one local API call, relaying it through the current
// host's signed session when the target path and route qualify, and falling
// through to a direct unsigned request otherwise.
func (d *Dispatcher) Request(ctx context.Context, route Route, pathAndQuery string, r Request) (*http.Response, error) {
	if ShouldRelayAPIPath(pathAndQuery) {
		if id, ok := d.HostIDFor(route); ok {
			d.log.Debug("relaying local API call",
				zap.String("host", string(id)),
				zap.String("path", pathAndQuery))
			return d.client.Do(ctx, id, pathAndQuery, r)
		}
	}
	return d.directRequest(ctx, pathAndQuery, r)
}

func (d *Dispatcher) directRequest(ctx context.Context, pathAndQuery string, r Request) (*http.Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.directBase+pathAndQuery, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return d.direct.Do(req)
}
