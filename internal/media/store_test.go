package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_SaveAudio(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://localhost:3000/")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	url, err := s.SaveAudio("tenant-1", []byte("oggdata"), "audio/ogg; codecs=opus")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:3000/media/") {
		t.Errorf("unexpected url: %s", url)
	}
	if !strings.HasSuffix(url, ".ogg") {
		t.Errorf("expected .ogg extension, got %s", url)
	}

	name := strings.TrimPrefix(url, "http://localhost:3000/media/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "oggdata" {
		t.Errorf("file content mismatch: %q", data)
	}
}

func TestStore_SaveAudio_UnknownMime(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://localhost:3000")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	url, err := s.SaveAudio("t", []byte{1}, "application/x-unknown-thing")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if !strings.HasSuffix(url, ".bin") {
		t.Errorf("expected .bin fallback, got %s", url)
	}
}

func TestStore_SanitizesTenantID(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://localhost:3000")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	url, err := s.SaveAudio("../evil/../../tenant", []byte{1}, "audio/ogg")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	name := strings.TrimPrefix(url, "http://localhost:3000/media/")
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		t.Errorf("filename not sanitized: %s", name)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("file not inside media dir: %v", err)
	}
}
