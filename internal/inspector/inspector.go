// Package inspector runs the inspection pipeline: normalize, consult the
// cache, probe the site, extract facets, assemble and write through.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/sitedigger/internal/cache"
	"github.com/JakeFAU/sitedigger/internal/extract"
	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/metrics"
)

const defaultProbeTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/JakeFAU/sitedigger/internal/inspector")

// Inspection outcomes reported to metrics.
const (
	outcomeCached    = "cached"
	outcomeFetched   = "fetched"
	outcomeMalformed = "malformed"
	outcomeFailed    = "failed"
)

// Config tunes a Service.
type Config struct {
	// ProbeTimeout bounds every probe of one run, primary and auxiliary alike.
	ProbeTimeout time.Duration
	// Auxiliary lists the well-known paths checked beside the primary probe.
	Auxiliary []inspect.AuxiliaryProbe
	// MaxAge marks cached entries older than this as stale. Zero disables it.
	MaxAge time.Duration
}

// Cache is the result store consulted and written by the Service.
type Cache interface {
	Get(ctx context.Context, key string) (inspect.CacheEntry, bool, error)
	Set(ctx context.Context, key string, result inspect.Result) (inspect.CacheEntry, error)
	Invalidate(ctx context.Context, key string) error
	Clear(ctx context.Context) (int, error)
	Entries(ctx context.Context) ([]cache.EntryInfo, error)
}

// Options controls a single Inspect call.
type Options struct {
	ForceRefresh bool
}

// Option customizes a Service.
type Option func(*Service)

// WithDNSResolver enables the DNS facet.
func WithDNSResolver(r inspect.DNSResolver) Option {
	return func(s *Service) { s.dns = r }
}

// WithCertificateInspector enables the Certificate facet for https URLs.
func WithCertificateInspector(c inspect.CertificateInspector) Option {
	return func(s *Service) { s.certs = c }
}

// Service is the single entry point of the pipeline. It is safe for
// concurrent use; concurrent calls for one key share a single fetch.
type Service struct {
	cfg    Config
	prober inspect.Prober
	cache  Cache
	clock  inspect.Clock
	dns    inspect.DNSResolver
	certs  inspect.CertificateInspector
	logger *zap.Logger
	flight singleflight.Group
}

type flightResult struct {
	result inspect.Result
	cached bool
}

// New builds a Service.
func New(cfg Config, prober inspect.Prober, c Cache, clock inspect.Clock, logger *zap.Logger, opts ...Option) *Service {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:    cfg,
		prober: prober,
		cache:  c,
		clock:  clock,
		logger: logger.Named("inspector"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inspect returns the report for rawURL. Only ErrMalformedURL and
// ErrFetchFailed are surfaced; cache trouble degrades to a fetch or to an
// unpersisted result.
func (s *Service) Inspect(ctx context.Context, rawURL string, opts Options) (_ inspect.Result, err error) {
	ctx, span := tracer.Start(ctx, "inspector.Inspect", trace.WithAttributes(
		attribute.String("url.raw", rawURL),
		attribute.Bool("force_refresh", opts.ForceRefresh),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	key, err := inspect.Normalize(rawURL)
	if err != nil {
		metrics.ObserveInspection(outcomeMalformed)
		return inspect.Result{}, err
	}
	if !inspect.Validate(key) {
		metrics.ObserveInspection(outcomeMalformed)
		return inspect.Result{}, fmt.Errorf("%w: %q", inspect.ErrMalformedURL, rawURL)
	}

	span.SetAttributes(attribute.String("url.key", key))

	if !opts.ForceRefresh {
		if cached, ok := s.lookup(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			metrics.ObserveInspection(outcomeCached)
			return cached, nil
		}
	}

	for {
		var fr flightResult
		fr, err = s.join(ctx, key, opts.ForceRefresh)
		if err != nil {
			if errors.Is(err, inspect.ErrFetchFailed) {
				metrics.ObserveInspection(outcomeFailed)
			}
			return inspect.Result{}, err
		}
		// A refresh that attached to a flight answered from cache must
		// start its own probe.
		if opts.ForceRefresh && fr.cached {
			continue
		}
		if fr.cached {
			metrics.ObserveInspection(outcomeCached)
		} else {
			metrics.ObserveInspection(outcomeFetched)
		}
		return fr.result, nil
	}
}

// Invalidate drops the cached entry for rawURL.
func (s *Service) Invalidate(ctx context.Context, rawURL string) (string, error) {
	key, err := inspect.Normalize(rawURL)
	if err != nil {
		return "", err
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		return key, fmt.Errorf("invalidate: %w", err)
	}
	s.logger.Info("cache entry invalidated", zap.String("url", key))
	return key, nil
}

// Clear drops every cached entry.
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.cache.Clear(ctx)
	if err != nil {
		return n, fmt.Errorf("clear cache: %w", err)
	}
	s.logger.Info("cache cleared", zap.Int("removed", n))
	return n, nil
}

// Entries lists cached keys with their timestamps.
func (s *Service) Entries(ctx context.Context) ([]cache.EntryInfo, error) {
	entries, err := s.cache.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	return entries, nil
}

// join attaches to the in-flight computation for key, starting one if none
// exists. The computation itself is detached from ctx so that a departing
// caller does not cancel it for the others.
func (s *Service) join(ctx context.Context, key string, force bool) (flightResult, error) {
	led := false
	ch := s.flight.DoChan(key, func() (any, error) {
		led = true
		fctx := context.WithoutCancel(ctx)
		if !force {
			if res, ok := s.lookup(fctx, key); ok {
				return flightResult{result: res, cached: true}, nil
			}
		}
		res, err := s.fetch(fctx, key)
		if err != nil {
			return flightResult{}, err
		}
		return flightResult{result: res}, nil
	})

	select {
	case <-ctx.Done():
		return flightResult{}, fmt.Errorf("inspect %s: %w", key, ctx.Err())
	case r := <-ch:
		if !led {
			metrics.ObserveInflightJoin()
			s.logger.Debug("joined in-flight inspection", zap.String("url", key))
		}
		if r.Err != nil {
			return flightResult{}, r.Err
		}
		fr, _ := r.Val.(flightResult)
		return fr, nil
	}
}

// lookup reports a fresh cache hit. Read failures count as a miss.
func (s *Service) lookup(ctx context.Context, key string) (inspect.Result, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.ObserveCacheLookup(metrics.CacheError)
		s.logger.Warn("cache read failed, treating as miss", zap.String("url", key), zap.Error(err))
		return inspect.Result{}, false
	case !ok:
		metrics.ObserveCacheLookup(metrics.CacheMiss)
		return inspect.Result{}, false
	case s.stale(entry):
		metrics.ObserveCacheLookup(metrics.CacheStale)
		s.logger.Debug("cache entry stale", zap.String("url", key), zap.Time("stored_at", entry.StoredAt))
		return inspect.Result{}, false
	}
	metrics.ObserveCacheLookup(metrics.CacheHit)
	return entry.Result, true
}

func (s *Service) stale(entry inspect.CacheEntry) bool {
	if s.cfg.MaxAge <= 0 {
		return false
	}
	return s.clock.Now().Sub(entry.StoredAt) > s.cfg.MaxAge
}

// fetch runs one full pipeline pass and writes the result through.
func (s *Service) fetch(ctx context.Context, key string) (inspect.Result, error) {
	ctx, span := tracer.Start(ctx, "inspector.fetch", trace.WithAttributes(attribute.String("url.key", key)))
	defer span.End()
	start := time.Now()
	origin, err := inspect.Origin(key)
	if err != nil {
		return inspect.Result{}, err
	}
	host := inspect.Hostname(key)

	var (
		g          errgroup.Group
		primary    inspect.ProbeOutcome
		auxiliary  = make([]auxiliaryOutcome, len(s.cfg.Auxiliary))
		dnsRecords *inspect.DNS
		cert       *inspect.Certificate
	)

	g.Go(func() error {
		out, err := s.probe(ctx, metrics.ProbePrimary, key)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", inspect.ErrFetchFailed, key, err)
		}
		primary = out
		return nil
	})
	for i, aux := range s.cfg.Auxiliary {
		g.Go(func() error {
			auxiliary[i] = s.probeAuxiliary(ctx, origin, aux)
			return nil
		})
	}
	if s.dns != nil {
		g.Go(func() error {
			dnsRecords = s.resolveDNS(ctx, host)
			return nil
		})
	}
	if s.certs != nil && strings.HasPrefix(key, "https://") {
		g.Go(func() error {
			cert = s.inspectCertificate(ctx, host)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, "primary probe failed")
		s.logger.Warn("primary probe failed", zap.String("url", key), zap.Error(err))
		return inspect.Result{}, err
	}

	result := s.assemble(key, primary, auxiliary)
	result.DNS = dnsRecords
	result.Certificate = cert

	if _, err := s.cache.Set(ctx, key, result); err != nil {
		metrics.ObserveCacheWrite("error")
		s.logger.Warn("cache write failed, returning unpersisted result", zap.String("url", key), zap.Error(err))
	} else {
		metrics.ObserveCacheWrite("ok")
	}

	s.logger.Info("inspection complete",
		zap.String("url", key),
		zap.Int("status", primary.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (s *Service) probe(ctx context.Context, kind, target string) (inspect.ProbeOutcome, error) {
	ctx, span := tracer.Start(ctx, "inspector.probe", trace.WithAttributes(
		attribute.String("probe.kind", kind),
		attribute.String("url.full", target),
	))
	defer span.End()

	out, err := s.prober.Probe(ctx, target, s.cfg.ProbeTimeout)
	if err != nil {
		span.RecordError(err)
	} else {
		span.SetAttributes(attribute.Int("http.response.status_code", out.StatusCode))
	}
	switch {
	case errors.Is(err, inspect.ErrProbeTimeout):
		metrics.ObserveProbe(kind, "timeout", s.cfg.ProbeTimeout)
	case err != nil:
		metrics.ObserveProbe(kind, "error", out.Elapsed)
	default:
		metrics.ObserveProbe(kind, "ok", out.Elapsed)
	}
	if err != nil {
		return inspect.ProbeOutcome{}, err //nolint:wrapcheck
	}
	return out, nil
}

func (s *Service) assemble(key string, primary inspect.ProbeOutcome, auxiliary []auxiliaryOutcome) inspect.Result {
	body := string(primary.Body)
	metrics.ObserveBytes(len(primary.Body))

	facets, err := extract.Extract(body)
	if err != nil {
		s.logger.Warn("markup could not be parsed", zap.String("url", key), zap.Error(err))
	}
	if facets.SkippedJSONLD > 0 {
		s.logger.Debug("skipped malformed json-ld", zap.String("url", key), zap.Int("count", facets.SkippedJSONLD))
	}

	finalURL := primary.FinalURL
	if finalURL == "" {
		finalURL = key
	}
	if facets.Overview != nil && facets.Overview.Favicon != "" {
		facets.Overview.Favicon = resolveReference(finalURL, facets.Overview.Favicon)
	}

	return inspect.Result{
		URL:             key,
		HTML:            body,
		Overview:        facets.Overview,
		Metadata:        facets.Metadata,
		Discoverability: mergeAuxiliary(facets.Discoverability, auxiliary),
		Resources:       facets.Resources,
		DataFeeds:       facets.DataFeeds,
		Networking: &inspect.Networking{
			StatusCode: primary.StatusCode,
			FinalURL:   finalURL,
			Server:     primary.Headers["server"],
			Headers:    primary.Headers,
			Redirects:  primary.Redirects,
		},
		Performance: &inspect.Performance{
			LoadTime: primary.Elapsed,
			PageSize: len(primary.Body),
		},
		FetchedAt: s.clock.Now(),
	}
}

func (s *Service) resolveDNS(ctx context.Context, host string) *inspect.DNS {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()
	start := time.Now()
	records, err := s.dns.Resolve(ctx, host)
	if err != nil {
		metrics.ObserveProbe(metrics.ProbeDNS, "error", time.Since(start))
		s.logger.Debug("dns lookup failed", zap.String("host", host), zap.Error(err))
		return nil
	}
	metrics.ObserveProbe(metrics.ProbeDNS, "ok", time.Since(start))
	return records
}

func (s *Service) inspectCertificate(ctx context.Context, host string) *inspect.Certificate {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()
	start := time.Now()
	cert, err := s.certs.Inspect(ctx, host)
	if err != nil {
		metrics.ObserveProbe(metrics.ProbeTLS, "error", time.Since(start))
		s.logger.Debug("certificate inspection failed", zap.String("host", host), zap.Error(err))
		return nil
	}
	metrics.ObserveProbe(metrics.ProbeTLS, "ok", time.Since(start))
	return cert
}

func resolveReference(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// auxiliaryOutcome is what one well-known path probe contributes.
type auxiliaryOutcome struct {
	name      string
	url       string
	reachable bool
	sitemaps  []string
}

func (s *Service) probeAuxiliary(ctx context.Context, origin string, aux inspect.AuxiliaryProbe) auxiliaryOutcome {
	path := aux.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := origin + path
	res := auxiliaryOutcome{name: aux.Name, url: target}

	out, err := s.probe(ctx, metrics.ProbeAuxiliary, target)
	if err != nil {
		s.logger.Debug("auxiliary probe failed", zap.String("probe", aux.Name), zap.String("url", target), zap.Error(err))
		return res
	}
	if !out.Reachable() {
		s.logger.Debug("auxiliary probe unreachable", zap.String("probe", aux.Name), zap.Int("status", out.StatusCode))
		return res
	}
	res.reachable = true

	if aux.Name == inspect.ProbeRobots {
		data, err := robotstxt.FromStatusAndBytes(out.StatusCode, out.Body)
		if err != nil {
			s.logger.Debug("robots.txt did not parse", zap.String("url", target), zap.Error(err))
		} else if len(data.Sitemaps) > 0 {
			res.sitemaps = append([]string(nil), data.Sitemaps...)
		}
	}
	return res
}

// mergeAuxiliary folds reachable auxiliary probes into d. The facet is
// created when markup had none but a probe succeeded.
func mergeAuxiliary(d *inspect.Discoverability, auxiliary []auxiliaryOutcome) *inspect.Discoverability {
	for _, aux := range auxiliary {
		if !aux.reachable {
			continue
		}
		if d == nil {
			d = &inspect.Discoverability{Alternates: []inspect.Alternate{}}
		}
		switch aux.name {
		case inspect.ProbeSitemap:
			d.Sitemap = aux.url
		case inspect.ProbeRobots:
			d.RobotsTxt = aux.url
			d.DeclaredSitemaps = aux.sitemaps
		default:
			if d.WellKnown == nil {
				d.WellKnown = make(map[string]string)
			}
			d.WellKnown[aux.name] = aux.url
		}
	}
	return d
}
