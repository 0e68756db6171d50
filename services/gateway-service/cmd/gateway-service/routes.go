package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/streamlinepay/platform/libs/config"
	"github.com/streamlinepay/platform/libs/httpx"
)

type upstreams struct {
	users        *url.URL
	transactions *url.URL
}

func upstreamsFromEnv() (upstreams, error) {
	users, err := parseUpstream("USER_SERVICE_URL", "http://user-service:8081")
	if err != nil {
		return upstreams{}, err
	}
	transactions, err := parseUpstream("TRANSACTION_SERVICE_URL", "http://transaction-service:8082")
	if err != nil {
		return upstreams{}, err
	}
	return upstreams{users: users, transactions: transactions}, nil
}

func parseUpstream(key, fallback string) (*url.URL, error) {
	raw := config.String(key, fallback)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s must be an absolute url (got %q)", key, raw)
	}
	return u, nil
}

func registerRoutes(mux *http.ServeMux, up upstreams, transport http.RoundTripper, logger *slog.Logger) {
	registerProxy(mux, "/api/users", newProxy(up.users, transport, logger))
	registerProxy(mux, "/api/transactions", newProxy(up.transactions, transport, logger))
}

func newProxy(target *url.URL, transport http.RoundTripper, logger *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed", "err", err, "upstream", target.Host,
			"request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusBadGateway, "upstream unavailable")
	}
	// Upstreams apply their own CORS policy; keep a single set of headers.
	proxy.ModifyResponse = func(resp *http.Response) error {
		for key := range resp.Header {
			if strings.HasPrefix(key, "Access-Control-") {
				resp.Header.Del(key)
			}
		}
		return nil
	}
	return proxy
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}
