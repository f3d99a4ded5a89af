// Package fileid derives stable identifiers from document paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "doc:"

// DocumentID returns the registry ID for the given path. The path is cleaned first,
// so "/a/./b.pdf" and "/a/b.pdf" map to the same document.
func DocumentID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(hash[:])
}

// Source returns the value stored as the "source" metadata of every chunk cut from path:
// the absolute, cleaned path. It falls back to the cleaned input when the working
// directory cannot be resolved.
func Source(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
