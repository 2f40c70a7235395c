package relay_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"vkrelay/internal/crypto"
	"vkrelay/internal/domain"
	"vkrelay/internal/relay"
	"vkrelay/internal/relaytest"
	"vkrelay/internal/session"
	"vkrelay/internal/store"
)

// clientRig wires a signed client against an in-memory relay with one
// paired host, sharing a cookie jar between the bootstrap exchange and
// signed requests the way the CLI does.
type clientRig struct {
	relay  *relaytest.Relay
	client *relay.Client
	hostID domain.HostID
}

func newClientRig(t *testing.T) *clientRig {
	t.Helper()

	r := relaytest.New()
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	r.SetExternalURL(srv.URL)

	const hostID = domain.HostID("h1")
	host, err := r.GenerateHost(hostID)
	if err != nil {
		t.Fatalf("GenerateHost: %v", err)
	}
	pairings := store.NewMemoryPairingStore()
	pairings.SavePairedHost(host)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	httpClient := &http.Client{Jar: jar}

	resolver := session.NewResolver(pairings, relay.NewBackend(srv.URL, httpClient), nil)
	return &clientRig{
		relay:  r,
		client: relay.NewClient(resolver, crypto.NewKeyCache(), httpClient, nil),
		hostID: hostID,
	}
}

func TestClient_SignedRequestVerifies(t *testing.T) {
	rig := newClientRig(t)

	body := `{"title":"new task"}`
	resp, err := rig.client.Do(context.Background(), rig.hostID, "/api/tasks", relay.Request{
		Method: http.MethodPost,
		Body:   strings.NewReader(body),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relay rejected the signed request: %s", resp.Status)
	}

	var out struct {
		Method  string `json:"method"`
		Path    string `json:"path"`
		BodyB64 string `json:"body_b64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding echo: %v", err)
	}
	if out.Method != http.MethodPost || out.Path != "/api/tasks" {
		t.Fatalf("relay saw %s %s", out.Method, out.Path)
	}
	if got, _ := base64.StdEncoding.DecodeString(out.BodyB64); string(got) != body {
		t.Fatalf("relay saw body %q", got)
	}
}

func TestClient_QueryStringIsSigned(t *testing.T) {
	rig := newClientRig(t)

	resp, err := rig.client.Do(context.Background(), rig.hostID, "/api/tasks?status=open", relay.Request{})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signed query request rejected: %s", resp.Status)
	}
}

func TestClient_UnpairedHost(t *testing.T) {
	rig := newClientRig(t)

	if _, err := rig.client.Do(context.Background(), "ghost", "/api/tasks", relay.Request{}); err == nil {
		t.Fatal("expected an error for an unpaired host")
	}
}

func TestClient_AuthRejectionEvictsSession(t *testing.T) {
	rig := newClientRig(t)

	// Prime the session cache.
	resp, err := rig.client.Do(context.Background(), rig.hostID, "/api/tasks", relay.Request{})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if n := rig.relay.SessionExchanges(); n != 1 {
		t.Fatalf("want 1 exchange after priming, got %d", n)
	}

	// The 401 is returned to the caller, not retried.
	rig.relay.RejectNextSigned(1)
	resp, err = rig.client.Do(context.Background(), rig.hostID, "/api/tasks", relay.Request{})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 surfaced to the caller, got %s", resp.Status)
	}

	// But the cached session was evicted: the next call re-resolves.
	resp, err = rig.client.Do(context.Background(), rig.hostID, "/api/tasks", relay.Request{})
	if err != nil {
		t.Fatalf("Do after eviction: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-resolved request should succeed, got %s", resp.Status)
	}
	if n := rig.relay.SessionExchanges(); n != 2 {
		t.Fatalf("want a second exchange after the 401, got %d", n)
	}
}

func TestClient_NonceNeverReused(t *testing.T) {
	rig := newClientRig(t)

	// The relay rejects nonce replays, so distinct requests passing proves
	// each one carried a fresh nonce.
	for i := 0; i < 5; i++ {
		resp, err := rig.client.Do(context.Background(), rig.hostID, "/api/tasks", relay.Request{})
		if err != nil {
			t.Fatalf("Do %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d rejected: %s", i, resp.Status)
		}
	}
}
