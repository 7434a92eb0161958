// Package id provides unique identifier generation for videos.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix is prepended to every generated video ID.
const Prefix = "vid-"

// Generate creates a new unique video ID.
// Format: vid-<uuid v4 without dashes>
// Example: vid-3f2b8c1e9d0a4b7c8e6f5a4b3c2d1e0f
func Generate() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	raw, ok := strings.CutPrefix(s, Prefix)
	if !ok || len(raw) != 32 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
