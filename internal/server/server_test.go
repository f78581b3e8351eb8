package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/h0rv/brickhunt/internal/api"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider serves fixed manifests keyed by set number
type mockProvider struct {
	manifests map[string]domain.Manifest
	err       error
}

func (m *mockProvider) Fetch(ctx context.Context, setNum string) (domain.Manifest, error) {
	if m.err != nil {
		return domain.Manifest{}, m.err
	}
	manifest, ok := m.manifests[setNum]
	if !ok {
		return domain.Manifest{}, fmt.Errorf("set %s: %w", setNum, domain.ErrNotFound)
	}
	return manifest, nil
}

// Test fixtures
func createTestManifest() domain.Manifest {
	return domain.Manifest{
		Set: domain.SetMeta{SetNum: "6020-1", Name: "Magic Tower", Year: 1993},
		Entries: []domain.ManifestEntry{
			{PartNum: "3001", PartName: "Brick 2 x 4", ColorID: 4, ColorName: "Red", QtyNeeded: 3},
			{PartNum: "3713", PartName: "Technic Bush", ColorID: 71, ColorName: "Light Bluish Gray", QtyNeeded: 2},
			{PartNum: "3001", PartName: "Brick 2 x 4", ColorID: 4, ColorName: "Red", QtyNeeded: 5},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, provider ManifestProvider) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := New(st, provider, discardLogger(), "https://brickhunt.example")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func defaultProvider() *mockProvider {
	return &mockProvider{manifests: map[string]domain.Manifest{"6020-1": createTestManifest()}}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createTestSession(t *testing.T, ts *httptest.Server) api.CreateSessionResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+api.SessionsPath, api.CreateSessionRequest{SetNum: "6020-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.CreateSessionResponse](t, resp)
}

func TestHealthcheck(t *testing.T) {
	_, ts := newTestServer(t, defaultProvider())
	resp, err := http.Get(ts.URL + api.HealthcheckPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	_, ts := newTestServer(t, defaultProvider())

	created := createTestSession(t, ts)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "https://brickhunt.example/api/sessions/"+created.Token, created.ShareURL)
	assert.Equal(t, "Magic Tower", created.Session.Set.Name)

	resp, err := http.Get(ts.URL + api.SessionsPath + "/" + created.Token)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	loaded := decode[api.SessionResponse](t, resp)
	// Duplicate 3001/Red rows merged
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "3001", loaded.Items[0].PartNum)
	assert.Equal(t, 8, loaded.Items[0].QtyNeeded)
	assert.Equal(t, 0, loaded.Items[0].QtyFound)
}

func TestCreateSession_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockProvider
		body     string
		want     int
	}{
		{"empty set number", defaultProvider(), `{"set_num":""}`, http.StatusUnprocessableEntity},
		{"malformed body", defaultProvider(), `{`, http.StatusUnprocessableEntity},
		{"unknown set", defaultProvider(), `{"set_num":"9999-1"}`, http.StatusNotFound},
		{"provider down", &mockProvider{err: &domain.ProviderError{Op: "get set", Err: io.ErrUnexpectedEOF}}, `{"set_num":"6020-1"}`, http.StatusBadGateway},
		{"invalid manifest", &mockProvider{manifests: map[string]domain.Manifest{"6020-1": {
			Entries: []domain.ManifestEntry{{PartNum: "3001", ColorID: 4, QtyNeeded: -1}},
		}}}, `{"set_num":"6020-1"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, tt.provider)
			resp, err := http.Post(ts.URL+api.SessionsPath, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decode[api.ErrorResponse](t, resp).Error)
		})
	}
}

func TestGetSession_NotFound(t *testing.T) {
	_, ts := newTestServer(t, defaultProvider())
	resp, err := http.Get(ts.URL + api.SessionsPath + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateFound(t *testing.T) {
	_, ts := newTestServer(t, defaultProvider())
	created := createTestSession(t, ts)
	itemURL := fmt.Sprintf("%s%s/%s/items/%d/found", ts.URL, api.SessionsPath, created.Token, 1)

	t.Run("clamped at needed", func(t *testing.T) {
		resp := postJSON(t, itemURL, api.UpdateFoundRequest{Delta: 50})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		n := decode[domain.Notification](t, resp)
		assert.Equal(t, domain.Notification{ItemID: 1, QtyFound: 8}, n)
	})

	t.Run("clamped at zero", func(t *testing.T) {
		resp := postJSON(t, itemURL, api.UpdateFoundRequest{Delta: -50})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, decode[domain.Notification](t, resp).QtyFound)
	})

	t.Run("unknown item", func(t *testing.T) {
		url := fmt.Sprintf("%s%s/%s/items/%d/found", ts.URL, api.SessionsPath, created.Token, 999)
		resp := postJSON(t, url, api.UpdateFoundRequest{Delta: 1})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func dialEvents(t *testing.T, srv *Server, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + api.SessionsPath + "/" + token + "/events"
	before := srv.Hub().Count(token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return srv.Hub().Count(token) == before+1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) domain.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var n domain.Notification
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestEvents_BroadcastToAllSubscribers(t *testing.T) {
	srv, ts := newTestServer(t, defaultProvider())
	created := createTestSession(t, ts)

	a := dialEvents(t, srv, ts, created.Token)
	b := dialEvents(t, srv, ts, created.Token)

	itemURL := fmt.Sprintf("%s%s/%s/items/%d/found", ts.URL, api.SessionsPath, created.Token, 2)
	postJSON(t, itemURL, api.UpdateFoundRequest{Delta: 1})
	postJSON(t, itemURL, api.UpdateFoundRequest{Delta: 1})

	for _, conn := range []*websocket.Conn{a, b} {
		assert.Equal(t, domain.Notification{ItemID: 2, QtyFound: 1}, readNotification(t, conn))
		assert.Equal(t, domain.Notification{ItemID: 2, QtyFound: 2}, readNotification(t, conn))
	}
}

func TestEvents_ResetBroadcastsChangedItems(t *testing.T) {
	srv, ts := newTestServer(t, defaultProvider())
	created := createTestSession(t, ts)
	base := ts.URL + api.SessionsPath + "/" + created.Token

	postJSON(t, base+"/items/1/found", api.UpdateFoundRequest{Delta: 2})
	conn := dialEvents(t, srv, ts, created.Token)

	resp := postJSON(t, base+"/reset", struct{}{})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Only item 1 had progress
	assert.Equal(t, domain.Notification{ItemID: 1, QtyFound: 0}, readNotification(t, conn))
}

func TestEvents_UnknownSession(t *testing.T) {
	_, ts := newTestServer(t, defaultProvider())
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + api.SessionsPath + "/missing/events"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvents_UnsubscribeOnDisconnect(t *testing.T) {
	srv, ts := newTestServer(t, defaultProvider())
	created := createTestSession(t, ts)

	conn := dialEvents(t, srv, ts, created.Token)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return srv.Hub().Count(created.Token) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/api/sessions/abcdefgh/items/1/found", redactPath("/api/sessions/abcdefghijklmnop/items/1/found"))
	assert.Equal(t, "/api/sessions/abc", redactPath("/api/sessions/abc"))
	assert.Equal(t, "/healthcheck", redactPath("/healthcheck"))
}
