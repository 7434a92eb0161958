// Package storage provides the blob store that holds generated assets and the
// temporary workspace used while rendering. Backends exist for local disk,
// S3 and MinIO.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the blob store.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidKey is returned for empty keys or keys escaping the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// BlobStore persists generated assets under slash-separated keys.
type BlobStore interface {
	// Put stores data under key and returns a URL the asset can be fetched from.
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// TempStore is the scratch workspace used while rendering.
type TempStore interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// TempDir returns the directory temporary files are written to.
	TempDir() string
}

// ContentTypeFor guesses the content type from the key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".srt":
		return "application/x-subrip"
	case ".vtt":
		return "text/vtt"
	default:
		return "application/octet-stream"
	}
}

// cleanKey normalizes key and rejects keys that would escape the root.
func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" || k == "." || strings.HasPrefix(key, "../") || strings.Contains(key, "/../") {
		return "", ErrInvalidKey
	}
	return k, nil
}
