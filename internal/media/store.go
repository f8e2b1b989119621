// Package media persists downloaded message media to disk and exposes
// public URLs for the HTTP media route.
package media

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store writes media files under a base directory and maps them to URLs
// served from the /media/ route.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the media directory if needed. baseURL is the public
// address clients use to reach this process, without a trailing slash.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// SaveAudio writes a voice note to disk and returns its public URL.
func (s *Store) SaveAudio(tenantID string, data []byte, mimeType string) (string, error) {
	ext := extensionFor(mimeType)
	name := fmt.Sprintf("%s-%d-%s%s", sanitize(tenantID), time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return s.baseURL + "/media/" + name, nil
}

func extensionFor(mimeType string) string {
	// Strip codec parameters like "audio/ogg; codecs=opus".
	base := mimeType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4a"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
