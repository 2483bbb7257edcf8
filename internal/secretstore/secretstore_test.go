package secretstore

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(dir, filepath.Join(dir, "api_key.enc"), nil)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	s := newTestStore(t)

	if err := s.WriteAPIKey("super-secret-key"); err != nil {
		t.Fatalf("WriteAPIKey: %v", err)
	}

	got, err := s.ReadAPIKey()
	if err != nil {
		t.Fatalf("ReadAPIKey: %v", err)
	}
	if got != "super-secret-key" {
		t.Fatalf("round-tripped key = %q, want %q", got, "super-secret-key")
	}
}

func TestSealedFileIsNotPlaintext(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteAPIKey("super-secret-key"); err != nil {
		t.Fatalf("WriteAPIKey: %v", err)
	}

	sealed, err := os.ReadFile(s.sealedPath)
	if err != nil {
		t.Fatalf("read sealed file: %v", err)
	}
	if containsSubstring(string(sealed), "super-secret-key") {
		t.Fatal("sealed file contains the plaintext key")
	}
}

func TestReadAPIKeyMissingFileIsSecretError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadAPIKey()
	if err == nil {
		t.Fatal("expected error for missing sealed key")
	}
	if _, ok := err.(*SecretError); !ok {
		t.Fatalf("expected *SecretError, got %T", err)
	}
}

func TestEnvOverrideBypassesSealedStore(t *testing.T) {
	s := newTestStore(t)
	t.Setenv("API_KEY_OVERRIDE", "override-key")

	got, err := s.ReadAPIKey()
	if err != nil {
		t.Fatalf("ReadAPIKey: %v", err)
	}
	if got != "override-key" {
		t.Fatalf("got %q, want override-key", got)
	}
}

func TestEnvOverrideLogsWarning(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(dir, filepath.Join(dir, "api_key.enc"), zap.New(core))
	t.Setenv("API_KEY_OVERRIDE", "override-key")

	if _, err := s.ReadAPIKey(); err != nil {
		t.Fatalf("ReadAPIKey: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning logged, got %d", logs.Len())
	}
}

func containsSubstring(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
