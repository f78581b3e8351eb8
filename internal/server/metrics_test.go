package server

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/h0rv/brickhunt/internal/api"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsDomainEvents(t *testing.T) {
	srv, ts := newTestServer(t, defaultProvider())
	created := createTestSession(t, ts)

	itemURL := fmt.Sprintf("%s%s/%s/items/%d/found", ts.URL, api.SessionsPath, created.Token, 1)
	postJSON(t, itemURL, api.UpdateFoundRequest{Delta: 1})
	postJSON(t, itemURL, api.UpdateFoundRequest{Delta: 1})
	postJSON(t, ts.URL+api.SessionsPath+"/"+created.Token+"/items/999/found", api.UpdateFoundRequest{Delta: 1})
	postJSON(t, ts.URL+api.SessionsPath+"/"+created.Token+"/reset", struct{}{})

	m := srv.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.updates.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resets))

	route := api.SessionsPath + "/{token}/items/{id:[0-9]+}/found"
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodPost, route, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodPost, route, "404")))
}

func TestMetrics_Endpoint(t *testing.T) {
	_, ts := newTestServer(t, defaultProvider())
	created := createTestSession(t, ts)

	resp, err := http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "brickhunt_sessions_created_total 1")
	assert.Contains(t, string(body), "brickhunt_subscribers 0")
	assert.NotContains(t, string(body), created.Token)
}
