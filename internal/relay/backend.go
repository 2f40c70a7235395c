package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vkrelay/internal/domain"
)

// Backend talks to the relay bootstrap API. The HTTP client should carry a
// cookie jar: establishing a session sets the relay's session cookie, and
// every subsequent signed request must present it.
type Backend struct {
	Base string
	HTTP *http.Client
}

func NewBackend(base string, client *http.Client) *Backend {
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{Base: strings.TrimRight(base, "/"), HTTP: client}
}

var _ domain.RelayBackend = (*Backend)(nil)

func (b *Backend) CreateSession(ctx context.Context, id domain.HostID) (domain.RelaySession, error) {
	var out domain.RelaySession
	in := struct {
		HostID string `json:"host_id"`
	}{HostID: string(id)}
	if err := b.post(ctx, "/v1/relay/sessions", in, &out); err != nil {
		return domain.RelaySession{}, err
	}
	return out, nil
}

func (b *Backend) CreateAuthCode(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	path := "/v1/relay/sessions/" + url.PathEscape(sessionID) + "/codes"
	if err := b.post(ctx, path, struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (b *Backend) EstablishBaseURL(ctx context.Context, id domain.HostID, code string) (string, error) {
	var out struct {
		BaseURL string `json:"base_url"`
	}
	in := struct {
		HostID string `json:"host_id"`
		Code   string `json:"code"`
	}{HostID: string(id), Code: code}
	if err := b.post(ctx, "/v1/relay/establish", in, &out); err != nil {
		return "", err
	}
	return strings.TrimRight(out.BaseURL, "/"), nil
}

func (b *Backend) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
