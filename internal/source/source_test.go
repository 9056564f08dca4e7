package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	t.Parallel()

	v, ok := Static("  example.com ").Lookup(context.Background())
	require.True(t, ok)
	require.Equal(t, "example.com", v)

	_, ok = Static("   ").Lookup(context.Background())
	require.False(t, ok)
}

func TestClipboard(t *testing.T) {
	t.Parallel()

	c := &Clipboard{read: func() (string, error) { return "\nhttps://example.com\n", nil }}
	v, ok := c.Lookup(context.Background())
	require.True(t, ok)
	require.Equal(t, "https://example.com", v)

	failing := &Clipboard{read: func() (string, error) { return "", errors.New("no display") }}
	_, ok = failing.Lookup(context.Background())
	require.False(t, ok)
}

func TestReaderTakesFirstNonBlankLine(t *testing.T) {
	t.Parallel()

	v, ok := NewReader(strings.NewReader("\n\n  example.org/docs \nother.com\n")).Lookup(context.Background())
	require.True(t, ok)
	require.Equal(t, "example.org/docs", v)

	_, ok = NewReader(strings.NewReader("")).Lookup(context.Background())
	require.False(t, ok)
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clip := &Clipboard{read: func() (string, error) { return "copied text, not a url", nil }}
	stdin := NewReader(strings.NewReader("example.net"))

	got, ok := Resolve(ctx, nil, Static(""), clip, stdin)
	require.True(t, ok)
	require.Equal(t, "example.net", got)

	got, ok = Resolve(ctx, nil, Static("https://first.example.com"), NewReader(strings.NewReader("second.example.com")))
	require.True(t, ok)
	require.Equal(t, "https://first.example.com", got)

	_, ok = Resolve(ctx, nil, Static("ftp://files.example.com"), clip)
	require.False(t, ok)
}
