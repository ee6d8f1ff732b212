// Package fetch provides access to archived chunk data. An Opener lists
// chunk keys and opens the byte stream behind one key. Decompression
// happens at this boundary, so decoding always sees plain framed bytes
// regardless of where the chunk is stored.
package fetch

import (
	"context"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"
)

// Opener is a source of archived chunks.
type Opener interface {
	// List returns the chunk keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Open returns the decompressed record stream for a chunk key.
	// The caller must close the returned stream.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Factory creates an Opener from configuration parameters. Factories
// validate required params, apply defaults, and return a fully
// constructed Opener or a descriptive error.
type Factory func(ctx context.Context, params map[string]string, logger *slog.Logger) (Opener, error)

// gunzip wraps a compressed stream; Close releases the gzip reader and
// then the underlying stream.
type gunzip struct {
	gz   *gzip.Reader
	body io.Closer
}

func newGunzip(body io.ReadCloser) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(body)
	if err != nil {
		_ = body.Close()
		return nil, err
	}
	return &gunzip{gz: gz, body: body}, nil
}

func (g *gunzip) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gunzip) Close() error {
	var errs []error
	if err := g.gz.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := g.body.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
