package qr

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestDataURL(t *testing.T) {
	url, err := DataURL("2@AbCdEf0123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("expected data URL prefix, got %q", url[:min(len(url), 30)])
	}

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	// PNG magic bytes.
	if len(png) < 8 || png[0] != 0x89 || string(png[1:4]) != "PNG" {
		t.Error("payload is not a PNG image")
	}
}

func TestDataURL_EmptySecret(t *testing.T) {
	if _, err := DataURL(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
