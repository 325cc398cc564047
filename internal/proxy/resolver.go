// Package proxy implements the request-routing resolver: it maps an
// inbound (host, path) pair to a published artifact and serves it with
// single-page-application fallback.
package proxy

import (
	"io"
	"net/http"

	"github.com/manasamancharla/deployly/pkg/logger"
	"go.uber.org/zap"
)

// Resolver is a stateless per-request proxy in front of the artifact
// store's serving endpoint. Requests share nothing but the HTTP client, so
// they are safe to handle in parallel without coordination.
type Resolver struct {
	endpoint string
	lookup   TargetLookup
	client   *http.Client
}

// NewResolver builds a Resolver. endpoint is the artifact serving base up
// to and including the key prefix (no trailing slash).
func NewResolver(endpoint string, lookup TargetLookup, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	return &Resolver{endpoint: endpoint, lookup: lookup, client: client}
}

func (rv *Resolver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	slug, err := rv.lookup.Resolve(ctx, req.Host)
	if err != nil {
		http.Error(w, "proxy error: cannot resolve host", http.StatusInternalServerError)
		return
	}

	path := req.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	resp, err := rv.fetch(req, slug+path)
	if err != nil {
		logger.L().Error("artifact fetch failed",
			zap.String("slug", slug),
			zap.String("path", path),
			zap.Error(err),
		)
		http.Error(w, "proxy error: upstream fetch failed", http.StatusInternalServerError)
		return
	}

	// SPA fallback: one retry against index.html, never more. A missing
	// fallback comes back as the upstream's own 404.
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		resp, err = rv.fetch(req, slug+"/index.html")
		if err != nil {
			logger.L().Error("fallback fetch failed", zap.String("slug", slug), zap.Error(err))
			http.Error(w, "proxy error: upstream fetch failed", http.StatusInternalServerError)
			return
		}
	}
	defer resp.Body.Close()

	// Pass the upstream result through unchanged.
	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (rv *Resolver) fetch(req *http.Request, keyPath string) (*http.Response, error) {
	target := rv.endpoint + "/" + keyPath
	upstream, err := http.NewRequestWithContext(req.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return rv.client.Do(upstream)
}
