package corpus

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Object is one entry discovered in the corpus backing store.
type Object struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// Scanner enumerates and reads a corpus backing store. Scan returns
// every object under the configured root, keyed by storage path;
// filtering indexable documents from manifests and other noise is the
// syncer's job, because the manifest resolver needs the full listing.
type Scanner interface {
	Scan(ctx context.Context) (map[string]Object, error)
	Read(ctx context.Context, key string) (io.ReadCloser, error)
}

// FilesystemScanner walks a local directory tree. Keys are
// slash-separated paths relative to the root, matching the storage
// path convention the deriver expects.
type FilesystemScanner struct {
	root string
}

// NewFilesystemScanner creates a scanner over a local directory.
func NewFilesystemScanner(root string) (*FilesystemScanner, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("corpus root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", root)
	}
	return &FilesystemScanner{root: root}, nil
}

func (s *FilesystemScanner) Scan(ctx context.Context) (map[string]Object, error) {
	objects := make(map[string]Object)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", p, err)
		}
		key := filepath.ToSlash(rel)

		objects[key] = Object{
			Key: key,
			// Local files carry no content hash; modification time plus
			// size stands in as the change marker.
			ETag:         fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus root: %w", err)
	}

	return objects, nil
}

func (s *FilesystemScanner) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("key %s escapes the corpus root", key)
	}
	f, err := os.Open(filepath.Join(s.root, clean))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}
