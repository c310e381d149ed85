package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// CreateFolder creates every folder given, ignoring the ones that already exist.
func CreateFolder(folderPath ...string) error {
	for _, folder := range folderPath {
		if folder == "" {
			continue
		}
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", folder, err)
		}
	}
	return nil
}

// PublicURLForStatic builds the public URL of a file stored under staticsDir.
func PublicURLForStatic(baseURL, basePath, staticsDir, filePath string) (string, error) {
	rel, err := filepath.Rel(staticsDir, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is not under %s", filePath, staticsDir)
	}
	return strings.TrimRight(baseURL, "/") + basePath + "/statics/" + filepath.ToSlash(rel), nil
}

// LocalPathForPublicURL maps a URL served by this service from /statics back to
// the file on disk. ok is false for foreign URLs and for paths escaping staticsDir.
func LocalPathForPublicURL(rawURL, baseURL, basePath, staticsDir string) (string, bool) {
	if baseURL == "" || rawURL == "" {
		return "", false
	}
	prefix := strings.TrimRight(baseURL, "/") + basePath + "/statics/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}

	rest := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil || unescaped == "" {
		return "", false
	}

	cleaned := path.Clean("/" + unescaped)
	if cleaned == "/" {
		return "", false
	}
	return filepath.Join(staticsDir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), true
}
