package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/streamlinepay/platform/libs/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstream(t *testing.T, name string) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("X-Upstream", name)
		_, _ = io.WriteString(w, r.Method+" "+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u
}

func TestRegisterRoutes(t *testing.T) {
	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, upstreams{
		users:        upstream(t, "users"),
		transactions: upstream(t, "transactions"),
	}, http.DefaultTransport, slog.New(slog.NewTextHandler(io.Discard, nil)))

	testCases := []struct {
		path         string
		wantUpstream string
	}{
		{path: "/api/users", wantUpstream: "users"},
		{path: "/api/transactions", wantUpstream: "transactions"},
		{path: "/api/transactions/", wantUpstream: "transactions"},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, http.StatusOK, rw.Code)
			assert.Equal(t, tc.wantUpstream, rw.Header().Get("X-Upstream"))
			assert.Equal(t, "GET "+tc.path, rw.Body.String())
			assert.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, upstreams{users: u, transactions: u}, http.DefaultTransport,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/api/users", nil))
	assert.Equal(t, http.StatusBadGateway, rw.Code)
	assert.JSONEq(t, `{"error":"upstream unavailable"}`, rw.Body.String())
}

func TestParseUpstream(t *testing.T) {
	t.Setenv("GW_TEST_UPSTREAM", "user-service:8081")
	_, err := parseUpstream("GW_TEST_UPSTREAM", "")
	assert.Error(t, err)

	t.Setenv("GW_TEST_UPSTREAM", "http://user-service:8081")
	u, err := parseUpstream("GW_TEST_UPSTREAM", "")
	require.NoError(t, err)
	assert.Equal(t, "user-service:8081", u.Host)
}
