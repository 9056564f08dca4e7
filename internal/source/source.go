// Package source finds the URL to inspect when none is given explicitly.
// Each source either yields a candidate or reports that it has none; a
// failing source is not an error.
package source

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

// Source yields one candidate URL.
type Source interface {
	Name() string
	Lookup(ctx context.Context) (string, bool)
}

// Static returns a fixed value, typically a command-line argument.
type Static string

// Name implements Source.
func (Static) Name() string { return "argument" }

// Lookup implements Source.
func (s Static) Lookup(context.Context) (string, bool) {
	v := strings.TrimSpace(string(s))
	return v, v != ""
}

// Clipboard reads the system clipboard.
type Clipboard struct {
	read func() (string, error)
}

// NewClipboard returns a Clipboard backed by the system clipboard.
func NewClipboard() *Clipboard {
	if clipboard.Unsupported {
		return &Clipboard{}
	}
	return &Clipboard{read: clipboard.ReadAll}
}

// Name implements Source.
func (*Clipboard) Name() string { return "clipboard" }

// Lookup implements Source. An unsupported or empty clipboard yields nothing.
func (c *Clipboard) Lookup(context.Context) (string, bool) {
	if c.read == nil {
		return "", false
	}
	text, err := c.read()
	if err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// Reader takes the first non-blank line of r, usually stdin.
type Reader struct {
	r io.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Name implements Source.
func (*Reader) Name() string { return "stdin" }

// Lookup implements Source.
func (s *Reader) Lookup(context.Context) (string, bool) {
	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, true
		}
	}
	return "", false
}

// Resolve returns the first candidate, in order, that normalizes to a valid
// http(s) URL. The raw candidate is returned so the caller normalizes once.
func Resolve(ctx context.Context, logger *zap.Logger, sources ...Source) (string, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, src := range sources {
		candidate, ok := src.Lookup(ctx)
		if !ok {
			logger.Debug("source yielded nothing", zap.String("source", src.Name()))
			continue
		}
		normalized, err := inspect.Normalize(candidate)
		if err != nil || !inspect.Validate(normalized) {
			logger.Debug("source yielded an invalid url", zap.String("source", src.Name()), zap.String("candidate", candidate))
			continue
		}
		logger.Debug("url resolved", zap.String("source", src.Name()), zap.String("url", normalized))
		return candidate, true
	}
	return "", false
}
