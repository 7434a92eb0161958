package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalConfig holds the configuration for disk storage.
type LocalConfig struct {
	TempDir string // Scratch directory; defaults to $TMPDIR/shortreel
	RootDir string // Blob root; defaults to TempDir/blobs
	BaseURL string // Public URL prefix for blobs; file:// URLs when empty
}

// LocalStorage implements BlobStore and TempStore on local disk.
type LocalStorage struct {
	tempDir string
	rootDir string
	baseURL string
}

var (
	_ BlobStore = (*LocalStorage)(nil)
	_ TempStore = (*LocalStorage)(nil)
)

// NewLocalStorage creates a new LocalStorage instance.
// Both directories are created if they don't exist.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "shortreel")
	}
	rootDir := cfg.RootDir
	if rootDir == "" {
		rootDir = filepath.Join(tempDir, "blobs")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.MkdirAll(rootDir, 0750); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	return &LocalStorage{
		tempDir: tempDir,
		rootDir: rootDir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// RootDir returns the blob root directory.
func (s *LocalStorage) RootDir() string {
	return s.rootDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	ext := filepath.Ext(name)
	f, err := os.CreateTemp(s.tempDir, strings.TrimSuffix(name, ext)+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Put writes data under the blob root and returns its URL.
// The write goes through a temp file and rename so readers never see a partial blob.
func (s *LocalStorage) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	dest := s.blobPath(k)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dest), ".put_*")
	if err != nil {
		return "", fmt.Errorf("create blob file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename blob: %w", err)
	}

	return s.URL(k), nil
}

// Get reads the blob stored under key.
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.blobPath(k)) // #nosec G304 - key is cleaned above
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// List returns all keys under prefix.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put_") {
			return nil
		}
		rel, err := filepath.Rel(s.rootDir, p)
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
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the blob stored under key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(k)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *LocalStorage) URL(key string) string {
	if s.baseURL == "" {
		return "file://" + filepath.ToSlash(s.blobPath(key))
	}
	return s.baseURL + "/" + key
}

func (s *LocalStorage) blobPath(key string) string {
	return filepath.Join(s.rootDir, filepath.FromSlash(key))
}
