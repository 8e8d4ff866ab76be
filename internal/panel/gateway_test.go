package panel_test

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maksim200738-droid/rockvpn/internal/config"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

const (
	rfcPrivateHex = "77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a"
	rfcPublicHex  = "8520f0098930a754748b7ddcb43ef75a0dbf3a0d26381af4eba4a98eaa9b4e6a"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func b64(t *testing.T, hexStr string) string {
	t.Helper()
	raw, err := hex.DecodeString(hexStr)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// fakePanel минимальная имитация API 3X-UI.
type fakePanel struct {
	mu sync.Mutex

	inbounds map[int][]map[string]any
	order    []int
	nextID   int

	calls map[string]int

	addClientStatus int
	addClientBody   string
	ignoreDelClient bool
	failUpdate      bool
	delay           time.Duration
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		inbounds:        map[int][]map[string]any{},
		nextID:          1,
		calls:           map[string]int{},
		addClientStatus: http.StatusOK,
		addClientBody:   `{"success":true,"msg":"ok"}`,
	}
}

func (f *fakePanel) addInbound(clients ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	list := make([]map[string]any, 0, len(clients))
	for _, c := range clients {
		list = append(list, map[string]any{"id": c, "email": "user_" + c[:8], "enable": true})
	}
	f.inbounds[id] = list
	f.order = append(f.order, id)
	return id
}

func (f *fakePanel) clientIDs(inboundID int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for _, c := range f.inbounds[inboundID] {
		ids = append(ids, c["id"].(string))
	}
	return ids
}

func (f *fakePanel) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePanel) inboundJSON(id int) map[string]any {
	settings, _ := json.Marshal(map[string]any{"clients": f.inbounds[id], "decryption": "none"})
	return map[string]any{
		"id": id, "remark": "VLESS-REALITY", "port": 443, "protocol": "vless", "enable": true,
		"settings": string(settings), "streamSettings": "{}", "sniffing": "{}",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/login":
		f.calls["login"]++
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "admin" || creds["password"] != "secret" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "msg": "wrong credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "session", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if c, err := r.Cookie("3x-ui"); err != nil || c.Value != "session" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case path == "/panel/api/inbounds/list":
		f.calls["list"]++
		obj := []map[string]any{}
		for _, id := range f.order {
			obj = append(obj, f.inboundJSON(id))
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "obj": obj})
	case path == "/panel/api/inbounds/add":
		f.calls["add"]++
		id := f.nextID
		f.nextID++
		f.inbounds[id] = []map[string]any{}
		f.order = append(f.order, id)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "obj": f.inboundJSON(id)})
	case path == "/panel/api/inbounds/addClient":
		f.calls["addClient"]++
		if f.addClientStatus == http.StatusOK {
			var req struct {
				ID       int    `json:"id"`
				Settings string `json:"settings"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			var settings struct {
				Clients []map[string]any `json:"clients"`
			}
			_ = json.Unmarshal([]byte(req.Settings), &settings)
			f.inbounds[req.ID] = append(f.inbounds[req.ID], settings.Clients...)
		}
		w.WriteHeader(f.addClientStatus)
		_, _ = w.Write([]byte(f.addClientBody))
	case strings.HasPrefix(path, "/panel/api/inbounds/delClient/"):
		f.calls["delClient"]++
		parts := strings.Split(strings.TrimPrefix(path, "/panel/api/inbounds/delClient/"), "/")
		id, _ := strconv.Atoi(parts[0])
		if !f.ignoreDelClient {
			f.inbounds[id] = without(f.inbounds[id], parts[1])
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case strings.HasPrefix(path, "/panel/api/inbounds/update/"):
		f.calls["update"]++
		if f.failUpdate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id, _ := strconv.Atoi(strings.TrimPrefix(path, "/panel/api/inbounds/update/"))
		var req struct {
			Settings string `json:"settings"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var settings struct {
			Clients []map[string]any `json:"clients"`
		}
		_ = json.Unmarshal([]byte(req.Settings), &settings)
		f.inbounds[id] = settings.Clients
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func without(clients []map[string]any, id string) []map[string]any {
	out := []map[string]any{}
	for _, c := range clients {
		if c["id"] != id {
			out = append(out, c)
		}
	}
	return out
}

func newGateway(t *testing.T, fake *fakePanel, password string, timeout time.Duration) *panel.Gateway {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	g, err := panel.New(
		config.Panel{BaseURL: srv.URL + "/", Username: "admin", Password: password, Timeout: timeout},
		config.Server{
			Address: "vpn.example.com", Port: 443, SNI: "yahoo.com", ShortID: "ab12",
			PrivateKey: b64(t, rfcPrivateHex), Fingerprint: "chrome", Flow: "xtls-rprx-vision", Dest: "yahoo.com:443",
		},
		newNoopLogger(),
	)
	require.NoError(t, err)
	return g
}

func loggedIn(t *testing.T, fake *fakePanel) *panel.Gateway {
	t.Helper()
	g := newGateway(t, fake, "secret", time.Second)
	require.NoError(t, g.Authenticate(context.Background()))
	return g
}

func TestGateway_Authenticate(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "valid credentials", password: "secret"},
		{name: "rejected credentials", password: "wrong", wantErr: panel.ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, newFakePanel(), tt.password, time.Second)
			err := g.Authenticate(context.Background())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGateway_ListInbounds_WithoutSession(t *testing.T) {
	g := newGateway(t, newFakePanel(), "secret", time.Second)

	_, err := g.ListInbounds(context.Background())
	assert.True(t, errors.Is(err, panel.ErrAuth), "got %v", err)
}

func TestGateway_ListInbounds(t *testing.T) {
	fake := newFakePanel()
	id := fake.addInbound("11111111-aaaa-bbbb-cccc-000000000001", "22222222-aaaa-bbbb-cccc-000000000002")
	g := loggedIn(t, fake)

	inbounds, err := g.ListInbounds(context.Background())
	require.NoError(t, err)
	require.Len(t, inbounds, 1)
	assert.Equal(t, id, inbounds[0].ID)
	assert.Len(t, inbounds[0].Clients, 2)
	assert.True(t, inbounds[0].HasClient("22222222-aaaa-bbbb-cccc-000000000002"))
}

func TestGateway_CreateInbound(t *testing.T) {
	fake := newFakePanel()
	g := loggedIn(t, fake)

	inb, err := g.CreateInbound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inb.ID)
	assert.Equal(t, 1, fake.count("add"))
}

func TestGateway_CreateCredential(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "success body", status: http.StatusOK, body: `{"success":true}`},
		{name: "unparseable body still counts as created", status: http.StatusOK, body: `<html>ok</html>`},
		{name: "success false with 200 counts as created", status: http.StatusOK, body: `{"success":false,"msg":"dup"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: panel.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePanel()
			inboundID := fake.addInbound()
			fake.addClientStatus = tt.status
			fake.addClientBody = tt.body
			g := loggedIn(t, fake)

			cred, err := g.CreateCredential(context.Background(), inboundID)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, cred.ID, 36)
			assert.Equal(t, inboundID, cred.InboundID)
			assert.Equal(t, "user_"+cred.ID[:8], cred.Label)
		})
	}
}

func TestGateway_DeleteCredential(t *testing.T) {
	const target = "33333333-aaaa-bbbb-cccc-000000000003"
	const other = "44444444-aaaa-bbbb-cccc-000000000004"

	tests := []struct {
		name          string
		clients       []string
		ignoreDel     bool
		failUpdate    bool
		wantErr       error
		wantDelCalls  int
		wantUpdCalls  int
		wantRemaining []string
	}{
		{
			name:          "already absent is a no-op",
			clients:       []string{other},
			wantRemaining: []string{other},
		},
		{
			name:          "deleted via delClient",
			clients:       []string{target, other},
			wantDelCalls:  1,
			wantRemaining: []string{other},
		},
		{
			name:          "falls back to rewriting client list",
			clients:       []string{target, other},
			ignoreDel:     true,
			wantDelCalls:  1,
			wantUpdCalls:  1,
			wantRemaining: []string{other},
		},
		{
			name:          "fallback failure is upstream error",
			clients:       []string{target},
			ignoreDel:     true,
			failUpdate:    true,
			wantErr:       panel.ErrUpstream,
			wantDelCalls:  1,
			wantUpdCalls:  1,
			wantRemaining: []string{target},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePanel()
			inboundID := fake.addInbound(tt.clients...)
			fake.ignoreDelClient = tt.ignoreDel
			fake.failUpdate = tt.failUpdate
			g := loggedIn(t, fake)

			err := g.DeleteCredential(context.Background(), inboundID, target)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantDelCalls, fake.count("delClient"))
			assert.Equal(t, tt.wantUpdCalls, fake.count("update"))
			assert.Equal(t, tt.wantRemaining, fake.clientIDs(inboundID))
		})
	}
}

func TestGateway_DeleteCredential_Idempotent(t *testing.T) {
	const target = "55555555-aaaa-bbbb-cccc-000000000005"
	fake := newFakePanel()
	inboundID := fake.addInbound(target)
	g := loggedIn(t, fake)

	require.NoError(t, g.DeleteCredential(context.Background(), inboundID, target))
	require.NoError(t, g.DeleteCredential(context.Background(), inboundID, target))

	assert.Equal(t, 1, fake.count("delClient"))
	assert.Equal(t, 0, fake.count("update"))
}

func TestGateway_DeleteCredential_MissingInbound(t *testing.T) {
	fake := newFakePanel()
	g := loggedIn(t, fake)

	assert.NoError(t, g.DeleteCredential(context.Background(), 99, "66666666-aaaa-bbbb-cccc-000000000006"))
	assert.Equal(t, 0, fake.count("delClient"))
}

func TestGateway_TimeoutIsUpstreamError(t *testing.T) {
	fake := newFakePanel()
	g := newGateway(t, fake, "secret", 50*time.Millisecond)
	fake.delay = 200 * time.Millisecond

	err := g.Authenticate(context.Background())
	assert.True(t, errors.Is(err, panel.ErrUpstream), "got %v", err)
}
