package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

func TestProbeCapturesResponse(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		w.Header().Set("Server", "unit-test")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "digger-test"})
	out, err := f.Probe(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Equal(t, "<html><title>ok</title></html>", string(out.Body))
	require.Equal(t, "unit-test", out.Headers["server"])
	require.Equal(t, "a, b", out.Headers["x-multi"])
	require.Equal(t, srv.URL, out.URL)
	require.Positive(t, out.Elapsed)
	require.Empty(t, out.Redirects)
	require.Equal(t, "digger-test", <-agents)
}

func TestProbeFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("done"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out, err := New(Config{}).Probe(context.Background(), srv.URL+"/start", time.Second)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/end", out.FinalURL)
	require.Equal(t, []inspect.Redirect{
		{From: srv.URL + "/start", To: srv.URL + "/middle", Status: http.StatusMovedPermanently},
		{From: srv.URL + "/middle", To: srv.URL + "/end", Status: http.StatusFound},
	}, out.Redirects)
}

func TestProbeStopsAfterMaxRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	_, err := New(Config{MaxRedirects: 2}).Probe(context.Background(), srv.URL+"/", time.Second)
	require.Error(t, err)
	require.False(t, errors.Is(err, inspect.ErrProbeTimeout))
}

func TestProbeReturnsErrorStatuses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	out, err := New(Config{}).Probe(context.Background(), srv.URL+"/sitemap.xml", time.Second)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, out.StatusCode)
	require.False(t, out.Reachable())
}

func TestProbeTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	start := time.Now()
	_, err := New(Config{}).Probe(context.Background(), srv.URL, 50*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, inspect.ErrProbeTimeout)
	require.Less(t, elapsed, 150*time.Millisecond)
}

func TestProbeTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := New(Config{}).Probe(context.Background(), target, time.Second)
	require.Error(t, err)
	require.False(t, errors.Is(err, inspect.ErrProbeTimeout))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	state := &probeState{outcome: inspect.ProbeOutcome{URL: "https://example.com"}}
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Now(), state)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	require.True(t, state.responded)
	require.Equal(t, http.StatusCreated, state.outcome.StatusCode)
	require.Equal(t, "body", string(state.outcome.Body))
	require.Equal(t, "ok", state.outcome.Headers["x-resp"])
	require.Equal(t, "https://example.com/final", state.outcome.FinalURL)

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	require.NoError(t, state.err)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, state.err, "boom")
}

func TestNormalizeHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	require.Empty(t, NormalizeHeaders(nil))
	require.Equal(t,
		map[string]string{"content-type": "text/html", "vary": "Accept, Origin"},
		NormalizeHeaders(http.Header{"Content-Type": {"text/html"}, "Vary": {"Accept", "Origin"}}),
	)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
