package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rewind/internal/logging"
)

// Local is an Opener over a directory tree of gzip-compressed chunk
// files. Keys are slash-separated paths relative to the root.
type Local struct {
	root   string
	logger *slog.Logger
}

// NewLocal builds a Local Opener rooted at dir. The directory must
// already exist.
func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if dir == "" {
		return nil, errors.New("local: root is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local: %s is not a directory", dir)
	}
	return &Local{
		root:   dir,
		logger: logging.Default(logger).With("component", "fetch", "type", "local"),
	}, nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".gz") {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local: list %q: %w", prefix, err)
	}
	l.logger.Debug("listed chunks", "prefix", prefix, "count", len(keys))
	return keys, nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("local: open %q: %w", key, err)
	}
	rc, err := newGunzip(f)
	if err != nil {
		return nil, fmt.Errorf("local: gunzip %q: %w", key, err)
	}
	return rc, nil
}

var _ Opener = (*Local)(nil)
