package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"vkrelay/internal/domain"
	"vkrelay/internal/relay"
	"vkrelay/internal/store"
)

func TestIsWorkspaceRoutePath(t *testing.T) {
	yes := []string{
		"/workspaces",
		"/workspaces/abc",
		"/workspaces/abc/def",
		"/projects/p1/issues/i1/workspaces/w1",
		"/projects/p1/workspaces/create/w1",
	}
	no := []string{
		"/",
		"/account",
		"/projects/p1",
		"/projects/p1/issues/i1",
		"/projects/p1/issues/i1/workspaces",
		"/projects/p1/workspaces/create",
		"/projects/p1/workspaces/w1",
		"/workspace",
	}
	for _, p := range yes {
		if !relay.IsWorkspaceRoutePath(p) {
			t.Errorf("IsWorkspaceRoutePath(%q) = false, want true", p)
		}
	}
	for _, p := range no {
		if relay.IsWorkspaceRoutePath(p) {
			t.Errorf("IsWorkspaceRoutePath(%q) = true, want false", p)
		}
	}
}

func TestShouldRelayAPIPath(t *testing.T) {
	yes := []string{"/api/things", "/api/tasks/1", "/api/things?x=1"}
	no := []string{"/api/remote/things", "/not-api/x", "/api", "/"}
	for _, p := range yes {
		if !relay.ShouldRelayAPIPath(p) {
			t.Errorf("ShouldRelayAPIPath(%q) = false, want true", p)
		}
	}
	for _, p := range no {
		if relay.ShouldRelayAPIPath(p) {
			t.Errorf("ShouldRelayAPIPath(%q) = true, want false", p)
		}
	}
}

func TestHostIDFor(t *testing.T) {
	active := store.NewActiveHost()
	d := relay.NewDispatcher(nil, active, nil, "", nil)

	// Off a workspace route nothing is relayed, even with a remembered host.
	active.SetActiveHostID("remembered")
	if _, ok := d.HostIDFor(relay.Route{Path: "/projects/p1"}); ok {
		t.Fatal("non-workspace route must not resolve a host")
	}

	// An explicit hostId wins and is written back.
	q := url.Values{"hostId": {"h9"}}
	id, ok := d.HostIDFor(relay.Route{Path: "/workspaces/abc", Query: q})
	if !ok || id != "h9" {
		t.Fatalf("want h9, got (%q, %v)", id, ok)
	}
	if got, _ := active.ActiveHostID(); got != "h9" {
		t.Fatalf("explicit hostId should update the active host, got %q", got)
	}

	// Without a query parameter the active host is used.
	id, ok = d.HostIDFor(relay.Route{Path: "/workspaces"})
	if !ok || id != "h9" {
		t.Fatalf("want remembered h9, got (%q, %v)", id, ok)
	}
}

func TestDispatcher_FallsThroughToDirect(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"served": "direct", "path": r.URL.Path})
	}))
	defer direct.Close()

	active := store.NewActiveHost()
	d := relay.NewDispatcher(nil, active, direct.Client(), direct.URL, nil)

	cases := []struct {
		route relay.Route
		path  string
	}{
		// Relay-eligible path, but not a workspace route.
		{relay.Route{Path: "/projects/p1"}, "/api/things"},
		// Workspace route, but the relay control plane is never re-relayed.
		{relay.Route{Path: "/workspaces"}, "/api/remote/things"},
		// Workspace route with no host id anywhere.
		{relay.Route{Path: "/workspaces"}, "/api/things"},
		// Not an API path at all.
		{relay.Route{Path: "/workspaces"}, "/assets/logo.svg"},
	}
	for _, c := range cases {
		resp, err := d.Request(context.Background(), c.route, c.path, relay.Request{})
		if err != nil {
			t.Fatalf("Request(%s from %s): %v", c.path, c.route.Path, err)
		}
		var out map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decoding direct response: %v", err)
		}
		resp.Body.Close()
		if out["served"] != "direct" {
			t.Fatalf("%s from %s should go direct", c.path, c.route.Path)
		}
	}
}

func TestDispatcher_RelaysWorkspaceAPICall(t *testing.T) {
	rig := newClientRig(t)

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "must not be reached", http.StatusTeapot)
	}))
	defer direct.Close()

	active := store.NewActiveHost()
	d := relay.NewDispatcher(rig.client, active, direct.Client(), direct.URL, nil)

	route := relay.Route{Path: "/workspaces/abc", Query: url.Values{"hostId": {string(rig.hostID)}}}
	resp, err := d.Request(context.Background(), route, "/api/things", relay.Request{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("relayed request failed: %s: %s", resp.Status, body)
	}
	var out struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding relayed response: %v", err)
	}
	if out.Path != "/api/things" {
		t.Fatalf("relay saw path %q", out.Path)
	}

	// The explicit hostId was remembered for later query-less calls.
	if id, ok := active.ActiveHostID(); !ok || id != domain.HostID(rig.hostID) {
		t.Fatalf("active host not recorded, got (%q, %v)", id, ok)
	}
}
