// Package dns resolves the records shown in the DNS facet.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

// ErrNoRecords is returned when every lookup for a host failed.
var ErrNoRecords = errors.New("no dns records resolved")

type lookuper interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// Resolver implements inspect.DNSResolver on top of net.Resolver.
type Resolver struct {
	lookup lookuper
}

// New returns a Resolver using the system resolver.
func New() *Resolver {
	return &Resolver{lookup: net.DefaultResolver}
}

// Resolve runs every lookup concurrently. A failed lookup leaves its list
// empty; ErrNoRecords is returned only when all of them failed.
func (r *Resolver) Resolve(ctx context.Context, host string) (*inspect.DNS, error) {
	out := &inspect.DNS{
		A:    []string{},
		AAAA: []string{},
		MX:   []inspect.MX{},
		TXT:  []string{},
		NS:   []string{},
	}
	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	const lookups = 5

	g.Go(func() error {
		addrs, err := r.lookup.LookupIPAddr(ctx, host)
		if err != nil {
			failed.Add(1)
			return nil
		}
		for _, a := range addrs {
			if a.IP.To4() != nil {
				out.A = append(out.A, a.IP.String())
			} else {
				out.AAAA = append(out.AAAA, a.IP.String())
			}
		}
		return nil
	})
	g.Go(func() error {
		cname, err := r.lookup.LookupCNAME(ctx, host)
		if err != nil {
			failed.Add(1)
			return nil
		}
		if c := trimDot(cname); !strings.EqualFold(c, trimDot(host)) {
			out.CNAME = c
		}
		return nil
	})
	g.Go(func() error {
		mx, err := r.lookup.LookupMX(ctx, host)
		if err != nil {
			failed.Add(1)
			return nil
		}
		for _, m := range mx {
			out.MX = append(out.MX, inspect.MX{Priority: m.Pref, Exchange: trimDot(m.Host)})
		}
		sort.SliceStable(out.MX, func(i, j int) bool { return out.MX[i].Priority < out.MX[j].Priority })
		return nil
	})
	g.Go(func() error {
		txt, err := r.lookup.LookupTXT(ctx, host)
		if err != nil {
			failed.Add(1)
			return nil
		}
		out.TXT = append(out.TXT, txt...)
		return nil
	})
	g.Go(func() error {
		ns, err := r.lookup.LookupNS(ctx, host)
		if err != nil {
			failed.Add(1)
			return nil
		}
		for _, n := range ns {
			out.NS = append(out.NS, trimDot(n.Host))
		}
		return nil
	})
	_ = g.Wait()

	if failed.Load() == lookups {
		return nil, fmt.Errorf("resolve %s: %w", host, ErrNoRecords)
	}
	return out, nil
}

func trimDot(s string) string {
	return strings.TrimSuffix(s, ".")
}
