package proxy

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manasamancharla/deployly/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// fakeStore serves canned responses keyed by request path and records every
// fetch the resolver makes.
type fakeStore struct {
	mu       sync.Mutex
	requests []string
	objects  map[string]string
}

func (f *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		f.mu.Unlock()

		body, ok := f.objects[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakeStore) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestResolver(t *testing.T, store *fakeStore) (*Resolver, *httptest.Server) {
	t.Helper()
	upstream := httptest.NewServer(store.handler())
	t.Cleanup(upstream.Close)
	return NewResolver(upstream.URL, SubdomainLookup{}, upstream.Client()), upstream
}

func TestRootPathNormalizedToIndex(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"/abc123/index.html": "<html>home</html>",
	}}
	rv, _ := newTestResolver(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "abc123.localhost:8000"
	rr := httptest.NewRecorder()
	rv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "<html>home</html>", rr.Body.String())
	require.Equal(t, []string{"/abc123/index.html"}, store.fetched())
}

func TestPassThroughFidelity(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"/abc123/app.js": "console.log(1)",
	}}
	rv, _ := newTestResolver(t, store)

	req := httptest.NewRequest(http.MethodGet, "/app.js", nil)
	req.Host = "abc123.example.com"
	rr := httptest.NewRecorder()
	rv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "console.log(1)", rr.Body.String())
	require.Equal(t, `"abc"`, rr.Header().Get("ETag"))
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Len(t, store.fetched(), 1)
}

func TestSPAFallbackOn404(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"/abc123/index.html": "<html>spa</html>",
	}}
	rv, _ := newTestResolver(t, store)

	req := httptest.NewRequest(http.MethodGet, "/missing-route", nil)
	req.Host = "abc123.localhost"
	rr := httptest.NewRecorder()
	rv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "<html>spa</html>", rr.Body.String())
	require.Equal(t, []string{"/abc123/missing-route", "/abc123/index.html"}, store.fetched())
}

func TestFallbackMissReturnedAsIsNotRetried(t *testing.T) {
	store := &fakeStore{objects: map[string]string{}}
	rv, _ := newTestResolver(t, store)

	req := httptest.NewRequest(http.MethodGet, "/nothing", nil)
	req.Host = "ghost.localhost"
	rr := httptest.NewRecorder()
	rv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	// Exactly one fallback fetch, never more.
	require.Equal(t, []string{"/ghost/nothing", "/ghost/index.html"}, store.fetched())
}

func TestDotlessHostUsedWhole(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"/abc123/index.html": "ok",
	}}
	rv, _ := newTestResolver(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "abc123"
	rr := httptest.NewRecorder()
	rv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"/abc123/index.html"}, store.fetched())
}

func TestTransportFailureReturns500(t *testing.T) {
	store := &fakeStore{objects: map[string]string{}}
	upstream := httptest.NewServer(store.handler())
	endpoint := upstream.URL
	upstream.Close() // connection refused from here on

	rv := NewResolver(endpoint, SubdomainLookup{}, &http.Client{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "abc123.localhost"
	rr := httptest.NewRecorder()
	rv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.True(t, strings.HasPrefix(rr.Body.String(), "proxy error"))
	// The diagnostic stays short and never echoes upstream addressing.
	require.NotContains(t, rr.Body.String(), endpoint)
}
