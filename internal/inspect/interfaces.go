package inspect

import (
	"context"
	"time"
)

// Prober issues one network request with a hard timeout.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) (ProbeOutcome, error)
}

// DNSResolver looks up records for a host.
type DNSResolver interface {
	Resolve(ctx context.Context, host string) (*DNS, error)
}

// CertificateInspector reads the TLS certificate presented by a host.
type CertificateInspector interface {
	Inspect(ctx context.Context, host string) (*Certificate, error)
}

// KVStore is the persistence collaborator behind the cache.
type KVStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
