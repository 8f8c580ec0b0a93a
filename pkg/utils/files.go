package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// MakeDir creates a directory with all parent directories
func MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WithExtension swaps the extension of path. ext includes the dot.
func WithExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// WithSuffix inserts suffix between the stem and ext, e.g. song.mp3 -> song_vocals.mid.
func WithSuffix(path, suffix, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix + ext
}

// ResolveUnder joins rel onto root, rejecting paths that escape root.
// Absolute paths are accepted only when they lie under root.
func ResolveUnder(root, rel string) (string, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(base, rel)
	out := filepath.Join(root, rel)
	if filepath.IsAbs(rel) {
		target = filepath.Clean(rel)
		out = target
	}
	relBack, err := filepath.Rel(base, target)
	if err != nil {
		return "", errors.New("path escapes resource directory: " + rel)
	}
	if relBack == ".." || strings.HasPrefix(relBack, ".."+string(filepath.Separator)) {
		return "", errors.New("path escapes resource directory: " + rel)
	}
	return out, nil
}
