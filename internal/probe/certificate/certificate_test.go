package certificate

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitedigger/internal/clock/system"
)

func TestInspectReadsPeerCertificate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	inspector := New(Config{Port: port, Timeout: time.Second}, system.New())
	cert, err := inspector.Inspect(context.Background(), host)
	require.NoError(t, err)
	require.Contains(t, cert.Subject, "Acme Co")
	require.NotEmpty(t, cert.Issuer)
	require.True(t, cert.ValidTo.After(cert.ValidFrom))
	require.Greater(t, cert.DaysUntilExpiry, 0)
	require.NotEmpty(t, cert.Chain)
}

func TestInspectFailsWithoutListener(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	inspector := New(Config{Port: port, Timeout: time.Second}, system.New())
	_, err = inspector.Inspect(context.Background(), "127.0.0.1")
	require.Error(t, err)
}
