package relaytest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"vkrelay/internal/crypto"
	"vkrelay/internal/domain"
	"vkrelay/internal/sign"
	"vkrelay/internal/ws"
)

// allowedSkew bounds how far a request timestamp may drift from the relay
// clock.
const allowedSkew = 5 * time.Minute

// sessionCookie is set when a relay session is established and expected on
// signed requests, standing in for the production relay's credential.
const sessionCookie = "vk_relay_session"

type pairedHost struct {
	id        domain.HostID
	sessionID domain.SigningSessionID
	hostKey   ed25519.PrivateKey // signs host→client traffic
	clientPub ed25519.PublicKey  // verifies client→host traffic
}

// HostConn is the host side of an established signed socket, handed to the
// relay's WSHandler.
type HostConn struct {
	raw *websocket.Conn
	sc  *ws.SigningContext
}

// Read verifies and returns the next client frame.
func (h *HostConn) Read() (ws.MsgType, []byte, error) {
	mt, raw, err := h.raw.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	if mt != websocket.TextMessage {
		return "", nil, fmt.Errorf("non-text transport frame")
	}
	return h.sc.DecodeFrame(raw)
}

// Send signs and writes one frame to the client.
func (h *HostConn) Send(t ws.MsgType, payload []byte) error {
	raw, err := h.sc.EncodeFrame(t, payload)
	if err != nil {
		return err
	}
	return h.raw.WriteMessage(websocket.TextMessage, raw)
}

// SendRaw writes an arbitrary text frame, bypassing signing. Lets tests
// inject malformed or tampered envelopes.
func (h *HostConn) SendRaw(raw []byte) error {
	return h.raw.WriteMessage(websocket.TextMessage, raw)
}

// Close sends a signed close envelope and closes the raw socket. A zero
// code closes without a code.
func (h *HostConn) Close(code int, reason string) error {
	if err := h.Send(ws.MsgClose, ws.EncodeClosePayload(code, reason)); err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = h.raw.WriteMessage(websocket.CloseMessage, msg)
	return h.raw.Close()
}

// Relay is the in-memory relay server.
type Relay struct {
	mu        sync.Mutex
	baseURL   string
	hosts     map[domain.HostID]*pairedHost
	sessions  map[string]domain.HostID
	codes     map[string]string
	nonces    map[string]bool
	exchanges int
	reject    int

	// WSHandler serves established signed sockets. The default echoes text
	// and binary frames, answers pings and mirrors closes.
	WSHandler func(*HostConn)

	// APIHandler serves verified signed HTTP requests. The default echoes
	// method, path and body as JSON.
	APIHandler http.HandlerFunc

	upgrader websocket.Upgrader
	router   *mux.Router
}

func New() *Relay {
	r := &Relay{
		hosts:    make(map[domain.HostID]*pairedHost),
		sessions: make(map[string]domain.HostID),
		codes:    make(map[string]string),
		nonces:   make(map[string]bool),
	}
	m := mux.NewRouter()
	m.HandleFunc("/v1/relay/sessions", r.createSession).Methods(http.MethodPost)
	m.HandleFunc("/v1/relay/sessions/{id}/codes", r.createAuthCode).Methods(http.MethodPost)
	m.HandleFunc("/v1/relay/establish", r.establish).Methods(http.MethodPost)
	m.HandleFunc("/hosts/{host}/api/ws", r.serveWS)
	m.PathPrefix("/hosts/{host}/").HandlerFunc(r.serveSigned)
	r.router = m
	return r
}

func (r *Relay) Handler() http.Handler { return r.router }

// SetExternalURL records the URL clients reach this relay at; established
// base URLs are derived from it.
func (r *Relay) SetExternalURL(u string) {
	r.mu.Lock()
	r.baseURL = u
	r.mu.Unlock()
}

// GenerateHost mints a pairing: fresh client and host key pairs under a new
// signing session. The returned record is what the out-of-band pairing flow
// would have stored on the client.
func (r *Relay) GenerateHost(id domain.HostID) (domain.PairedHost, error) {
	clientPub, clientPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.PairedHost{}, err
	}
	hostPub, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.PairedHost{}, err
	}
	jwk, err := crypto.EncodeClientKeyJWK(clientPriv)
	if err != nil {
		return domain.PairedHost{}, err
	}
	sessionID := domain.SigningSessionID("ss-" + uuid.NewString())

	r.mu.Lock()
	r.hosts[id] = &pairedHost{
		id:        id,
		sessionID: sessionID,
		hostKey:   hostPriv,
		clientPub: clientPub,
	}
	r.mu.Unlock()

	return domain.PairedHost{
		HostID:             id,
		SigningSessionID:   sessionID,
		PrivateKeyJWK:      jwk,
		ServerPublicKeyB64: base64.StdEncoding.EncodeToString(hostPub),
		PairedAt:           time.Now().Unix(),
	}, nil
}

// SessionExchanges counts completed CreateSession calls.
func (r *Relay) SessionExchanges() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exchanges
}

// RejectNextSigned makes the next n signed HTTP requests fail with 401
// regardless of their signatures.
func (r *Relay) RejectNextSigned(n int) {
	r.mu.Lock()
	r.reject = n
	r.mu.Unlock()
}

func (r *Relay) createSession(w http.ResponseWriter, req *http.Request) {
	var in struct {
		HostID string `json:"host_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hosts[domain.HostID(in.HostID)]; !ok {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}
	id := uuid.NewString()
	r.sessions[id] = domain.HostID(in.HostID)
	r.exchanges++
	writeJSON(w, domain.RelaySession{ID: id})
}

func (r *Relay) createAuthCode(w http.ResponseWriter, req *http.Request) {
	sessionID := mux.Vars(req)["id"]
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	code := uuid.NewString()
	r.codes[code] = sessionID
	writeJSON(w, struct {
		Code string `json:"code"`
	}{Code: code})
}

func (r *Relay) establish(w http.ResponseWriter, req *http.Request) {
	var in struct {
		HostID string `json:"host_id"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.codes[in.Code]
	if !ok || r.sessions[sessionID] != domain.HostID(in.HostID) {
		http.Error(w, "bad auth code", http.StatusForbidden)
		return
	}
	delete(r.codes, in.Code) // codes are single use
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sessionID, Path: "/"})
	writeJSON(w, struct {
		BaseURL string `json:"base_url"`
	}{BaseURL: r.baseURL + "/hosts/" + url.PathEscape(in.HostID)})
}

// signedPath reconstructs the path-and-query the client signed: the path
// relative to its session base URL, with the signature parameters removed.
// Remaining query parameters are re-encoded in sorted key order, which the
// stub also expects of its clients.
func signedPath(req *http.Request, host domain.HostID) string {
	prefix := "/hosts/" + string(host)
	p := req.URL.Path[len(prefix):]
	q := req.URL.Query()
	q.Del(sign.HeaderSession)
	q.Del(sign.HeaderTimestamp)
	q.Del(sign.HeaderNonce)
	q.Del(sign.HeaderSignature)
	if enc := q.Encode(); enc != "" {
		p += "?" + enc
	}
	return p
}

// checkSig validates timestamp skew and nonce uniqueness, then verifies sig
// over the reconstructed canonical request.
func (r *Relay) checkSig(host *pairedHost, method, pathAndQuery string, body []byte, sig domain.RelaySignature) error {
	if sig.SigningSessionID != host.sessionID {
		return fmt.Errorf("unknown signing session")
	}
	drift := time.Since(time.Unix(sig.Timestamp, 0))
	if drift > allowedSkew || drift < -allowedSkew {
		return fmt.Errorf("timestamp outside allowed skew")
	}
	r.mu.Lock()
	if r.nonces[sig.Nonce] {
		r.mu.Unlock()
		return fmt.Errorf("nonce replayed")
	}
	r.nonces[sig.Nonce] = true
	r.mu.Unlock()
	if !sign.VerifyRequest(host.clientPub, method, pathAndQuery, body, sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

func (r *Relay) hostFor(req *http.Request) *pairedHost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hosts[domain.HostID(mux.Vars(req)["host"])]
}

func (r *Relay) serveSigned(w http.ResponseWriter, req *http.Request) {
	host := r.hostFor(req)
	if host == nil {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}
	r.mu.Lock()
	if r.reject > 0 {
		r.reject--
		r.mu.Unlock()
		http.Error(w, "session expired", http.StatusUnauthorized)
		return
	}
	r.mu.Unlock()
	if _, err := req.Cookie(sessionCookie); err != nil {
		http.Error(w, "no relay session", http.StatusUnauthorized)
		return
	}
	sig, ok := sign.FromHeaders(req.Header)
	if !ok {
		http.Error(w, "missing signature", http.StatusForbidden)
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := r.checkSig(host, req.Method, signedPath(req, host.id), body, sig); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if r.APIHandler != nil {
		r.APIHandler(w, req)
		return
	}
	writeJSON(w, struct {
		Method  string `json:"method"`
		Path    string `json:"path"`
		BodyB64 string `json:"body_b64"`
	}{
		Method:  req.Method,
		Path:    signedPath(req, host.id),
		BodyB64: base64.StdEncoding.EncodeToString(body),
	})
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	host := r.hostFor(req)
	if host == nil {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}
	sig, ok := sign.FromQuery(req.URL.Query())
	if !ok {
		http.Error(w, "missing signature", http.StatusForbidden)
		return
	}
	if err := r.checkSig(host, http.MethodGet, signedPath(req, host.id), nil, sig); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	raw, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	conn := &HostConn{
		raw: raw,
		sc: &ws.SigningContext{
			SessionID:    host.sessionID,
			RequestNonce: sig.Nonce,
			SigningKey:   host.hostKey,
			VerifyKey:    host.clientPub,
		},
	}
	if r.WSHandler != nil {
		r.WSHandler(conn)
		return
	}
	echo(conn)
}

// echo is the default host behaviour: mirror text and binary, answer ping,
// mirror close.
func echo(c *HostConn) {
	defer c.raw.Close()
	for {
		t, payload, err := c.Read()
		if err != nil {
			return
		}
		switch t {
		case ws.MsgText, ws.MsgBinary:
			if err := c.Send(t, payload); err != nil {
				return
			}
		case ws.MsgPing:
			if err := c.Send(ws.MsgPong, payload); err != nil {
				return
			}
		case ws.MsgClose:
			code, reason, _ := ws.DecodeClosePayload(payload)
			_ = c.Close(code, reason)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
