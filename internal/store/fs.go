package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// lz4Extension marks transparently compressed objects on disk.
const lz4Extension = ".lz4"

// stateFilePerm is the permission for written objects.
const stateFilePerm = 0o644

// FSStore is a filesystem-backed object store rooted at a directory. Writes
// are atomic (temp file + rename). Raw run artifacts may optionally be
// compressed with LZ4 on disk; compression is transparent to callers, which
// always see the logical key and uncompressed bytes.
type FSStore struct {
	root string

	// compressArtifacts enables LZ4 compression for run artifacts
	// (keys ending in _comparison.json). Summaries stay plain: they are
	// small and read constantly.
	compressArtifacts bool
}

// NewFSStore creates a filesystem store rooted at dir.
func NewFSStore(dir string, compressArtifacts bool) (*FSStore, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	return &FSStore{root: dir, compressArtifacts: compressArtifacts}, nil
}

// Get implements Store.Get. It checks the plain path first, then the
// compressed variant.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err == nil {
		return data, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	compressed, lzErr := os.ReadFile(s.path(key) + lz4Extension)
	if lzErr != nil {
		if errors.Is(lzErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("read %s: %w", key, lzErr)
	}

	plain, decodeErr := io.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
	if decodeErr != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, decodeErr)
	}

	return plain, nil
}

// Put implements Store.Put with an atomic temp-file-and-rename write.
func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) error {
	target := s.path(key)

	if s.compressArtifacts && isArtifactKey(key) {
		compressed, err := compressLZ4(data)
		if err != nil {
			return fmt.Errorf("compress %s: %w", key, err)
		}

		data = compressed
		target += lz4Extension
	}

	dir := filepath.Dir(target)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}

	_, writeErr := tmp.Write(data)

	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write %s: %w", key, errors.Join(writeErr, closeErr))
	}

	chmodErr := os.Chmod(tmp.Name(), stateFilePerm)
	if chmodErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("chmod %s: %w", key, chmodErr)
	}

	renameErr := os.Rename(tmp.Name(), target)
	if renameErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("rename %s: %w", key, renameErr)
	}

	return nil
}

// ListPrefix implements Store.ListPrefix. Compressed objects are reported
// under their logical key. Results are sorted by key for stable iteration.
func (s *FSStore) ListPrefix(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo

	walkRoot := s.root

	walkErr := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		key := strings.TrimPrefix(filepath.ToSlash(strings.TrimPrefix(p, walkRoot)), "/")
		key = strings.TrimSuffix(key, lz4Extension)

		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}

		infos = append(infos, ObjectInfo{
			Key:          key,
			LastModified: info.ModTime().UTC(),
			Size:         info.Size(),
		})

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, walkErr)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	return infos, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func isArtifactKey(key string) bool {
	return strings.HasPrefix(key, BlueprintPrefix) && strings.HasSuffix(key, artifactSuffix)
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)

	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}

	closeErr := w.Close()
	if closeErr != nil {
		return nil, closeErr
	}

	return buf.Bytes(), nil
}
