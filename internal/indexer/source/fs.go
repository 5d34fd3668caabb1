package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FS walks a directory tree and yields every regular file whose extension
// is in the allow list. The document id is the file path.
type FS struct {
	root       string
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewFS returns a filesystem source. An empty extension list accepts every
// file.
func NewFS(root string, extensions []string) *FS {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &FS{
		root:       root,
		extensions: exts,
		logger:     slog.Default().With("component", "fs-source", "root", root),
	}
}

func (s *FS) Name() string { return "fs:" + s.root }

func (s *FS) Close() error { return nil }

func (s *FS) Walk(ctx context.Context, fn func(Document) error) error {
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("opening source root: %w", err)
	}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !s.accepts(path) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		return fn(Document{ID: path, Text: ParseArticle(raw)})
	})
	return stopped(err)
}

func (s *FS) accepts(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
