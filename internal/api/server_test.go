package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigger/internal/cache"
	"github.com/JakeFAU/sitedigger/internal/config"
	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/inspector"
)

func TestServer_Inspect_ReturnsResultWithoutHTML(t *testing.T) {
	t.Parallel()

	fake := newFakeInspector()
	server := newTestServer(fake, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/inspect?url=example.com&refresh=true", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got inspect.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "https://example.com", got.URL)
	require.Empty(t, got.HTML)
	require.Equal(t, "Example", got.Overview.Title)
	require.True(t, fake.lastOpts.ForceRefresh)
}

func TestServer_Inspect_IncludesHTMLOnRequest(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeInspector(), config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/inspect?url=example.com&include_html=1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<title>Example</title>")
}

func TestServer_Inspect_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{name: "missing url", target: "/v1/inspect", want: http.StatusBadRequest},
		{name: "bad refresh flag", target: "/v1/inspect?url=a.com&refresh=maybe", want: http.StatusBadRequest},
		{name: "malformed", target: "/v1/inspect?url=http://", err: inspect.ErrMalformedURL, want: http.StatusBadRequest},
		{
			name:   "fetch failed",
			target: "/v1/inspect?url=down.example.com",
			err:    fmt.Errorf("%w: %w", inspect.ErrFetchFailed, inspect.ErrProbeTimeout),
			want:   http.StatusBadGateway,
		},
		{name: "unexpected", target: "/v1/inspect?url=a.com", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := newFakeInspector()
			fake.inspectErr = tt.err
			rec := httptest.NewRecorder()
			newTestServer(fake, config.Config{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, tt.want, rec.Code)
			require.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestServer_CacheEndpoints(t *testing.T) {
	t.Parallel()

	fake := newFakeInspector()
	fake.entries = []cache.EntryInfo{{Key: "https://example.com", StoredAt: time.Unix(100, 0).UTC()}}
	handler := newTestServer(fake, config.Config{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
	require.Contains(t, rec.Body.String(), "https://example.com")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache/entry?url=Example.com/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"invalidated":"https://example.com"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache/entry", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"removed":1`)
}

func TestServer_CacheListError(t *testing.T) {
	t.Parallel()

	fake := newFakeInspector()
	fake.cacheErr = errors.New("backend offline")
	rec := httptest.NewRecorder()
	newTestServer(fake, config.Config{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cache", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newFakeInspector(), config.Config{}).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}}
	server := newTestServer(newFakeInspector(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz?api_key=secret", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newFakeInspector(), config.Config{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "req-generated", rec.Header().Get("X-Request-ID"))

	const supplied = "0190d6a4-8c2e-7b6a-9f3e-1a2b3c4d5e6f"
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", supplied)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, supplied, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := &Server{logger: zap.NewNop()}
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeIDGen struct{}

func (fakeIDGen) RequestID() string { return "req-generated" }

type fakeInspector struct {
	mu         sync.Mutex
	lastOpts   inspector.Options
	inspectErr error
	cacheErr   error
	entries    []cache.EntryInfo
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{}
}

func (f *fakeInspector) Inspect(_ context.Context, rawURL string, opts inspector.Options) (inspect.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if f.inspectErr != nil {
		return inspect.Result{}, f.inspectErr
	}
	key, err := inspect.Normalize(rawURL)
	if err != nil {
		return inspect.Result{}, err
	}
	return inspect.Result{
		URL:       key,
		HTML:      "<html><head><title>Example</title></head></html>",
		Overview:  &inspect.Overview{Title: "Example"},
		FetchedAt: time.Unix(100, 0).UTC(),
	}, nil
}

func (f *fakeInspector) Invalidate(_ context.Context, rawURL string) (string, error) {
	return inspect.Normalize(rawURL)
}

func (f *fakeInspector) Clear(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.entries)
	f.entries = nil
	return n, f.cacheErr
}

func (f *fakeInspector) Entries(context.Context) ([]cache.EntryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cacheErr != nil {
		return nil, f.cacheErr
	}
	return append([]cache.EntryInfo(nil), f.entries...), nil
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(svc Inspector, cfg config.Config) *Server {
	return NewServer(svc, fakeIDGen{}, cfg, zap.NewNop())
}
