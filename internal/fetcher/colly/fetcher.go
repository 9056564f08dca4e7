// Package collyfetcher implements inspect.Prober using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 10
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	MaxBodySize  int
	MaxRedirects int
}

// Fetcher implements inspect.Prober using a fresh Colly collector per probe.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// probeState is owned by the goroutine running Visit until it is sent back.
type probeState struct {
	outcome   inspect.ProbeOutcome
	responded bool
	err       error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
	}
}

// Probe issues a GET for url, following redirects, and gives up after timeout.
// A probe that runs out of time fails with inspect.ErrProbeTimeout.
func (f *Fetcher) Probe(ctx context.Context, url string, timeout time.Duration) (inspect.ProbeOutcome, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	state := &probeState{outcome: inspect.ProbeOutcome{URL: url}}
	collector := f.buildCollector(ctx, timeout, start, state)

	done := make(chan *probeState, 1)
	go func() {
		if err := collector.Visit(url); err != nil && state.err == nil {
			state.err = err
		}
		done <- state
	}()

	select {
	case <-ctx.Done():
		return inspect.ProbeOutcome{}, classify(ctx.Err(), url, timeout)
	case st := <-done:
		if st.err != nil {
			return inspect.ProbeOutcome{}, classify(st.err, url, timeout)
		}
		if !st.responded {
			return inspect.ProbeOutcome{}, fmt.Errorf("colly visit %s: no response", url)
		}
		return st.outcome, nil
	}
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	timeout time.Duration,
	start time.Time,
	state *probeState,
) *colly.Collector {
	collector := colly.NewCollector(colly.Async(false))
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	if f.cfg.MaxBodySize > 0 {
		collector.MaxBodySize = f.cfg.MaxBodySize
	}
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.Context = ctx
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)
	collector.SetRedirectHandler(f.redirectHandler(state))

	f.configureCollectorHooks(collector, start, state)
	return collector
}

func (f *Fetcher) redirectHandler(state *probeState) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		status := 0
		if req.Response != nil {
			status = req.Response.StatusCode
		}
		state.outcome.Redirects = append(state.outcome.Redirects, inspect.Redirect{
			From:   via[len(via)-1].URL.String(),
			To:     req.URL.String(),
			Status: status,
		})
		return nil
	}
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, start time.Time, state *probeState) {
	hooks.OnResponse(func(r *colly.Response) {
		finalURL := state.outcome.URL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		if n := len(state.outcome.Redirects); n > 0 {
			finalURL = state.outcome.Redirects[n-1].To
		}
		var headers http.Header
		if r.Headers != nil {
			headers = *r.Headers
		}
		state.outcome = inspect.ProbeOutcome{
			URL:        state.outcome.URL,
			FinalURL:   finalURL,
			StatusCode: r.StatusCode,
			Headers:    NormalizeHeaders(headers),
			Body:       append([]byte(nil), r.Body...),
			Elapsed:    time.Since(start),
			Redirects:  state.outcome.Redirects,
		}
		state.responded = true
	})

	hooks.OnError(func(r *colly.Response, err error) {
		// With ParseHTTPErrorResponse set, error statuses still reach OnResponse;
		// only transport failures land here.
		if r != nil && r.StatusCode > 0 {
			return
		}
		state.err = err
	})
}

// NormalizeHeaders lowercases header names and joins repeated values.
func NormalizeHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return out
}

func classify(err error, url string, timeout time.Duration) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s after %s", inspect.ErrProbeTimeout, url, timeout)
	}
	return fmt.Errorf("colly visit %s: %w", url, err)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
