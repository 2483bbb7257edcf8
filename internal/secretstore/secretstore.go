// Package secretstore provides a concrete local implementation of the
// agent's api_key read_api_key() interface, sealing the key at rest with
// a machine-local symmetric key rather than leaving secret storage as an
// unimplemented external interface.
package secretstore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyFileName = "secretbox.key"
	keySize     = 32
	nonceSize   = 24
)

// SecretError indicates the API key is missing, unreadable, or
// undecipherable. Fatal at startup.
type SecretError struct {
	Op  string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secretstore: %s: %v", e.Op, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// Store seals and opens the API key under a machine-local key kept
// alongside it in the secrets directory.
type Store struct {
	dir        string
	keyPath    string
	sealedPath string
	log        *zap.Logger
}

// New returns a Store rooted at dir (the data directory's secrets/
// subdirectory), sealing/opening keyFile (api_key.enc) within it.
func New(dir, keyFile string, log *zap.Logger) *Store {
	return &Store{
		dir:        dir,
		keyPath:    filepath.Join(dir, keyFileName),
		sealedPath: keyFile,
		log:        log,
	}
}

// ReadAPIKey resolves the API key: API_KEY_OVERRIDE env var first, else
// the sealed on-disk value. The override takes precedence over the
// sealed store and is logged as a warning.
func (s *Store) ReadAPIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv("API_KEY_OVERRIDE")); v != "" {
		if s.log != nil {
			s.log.Warn("API_KEY_OVERRIDE takes precedence over the sealed secret store")
		}
		return v, nil
	}
	return s.open()
}

// WriteAPIKey seals key and persists it, generating a machine-local key on
// first use.
func (s *Store) WriteAPIKey(key string) error {
	boxKey, err := s.loadOrCreateKey()
	if err != nil {
		return &SecretError{Op: "load key", Err: err}
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return &SecretError{Op: "generate nonce", Err: err}
	}

	sealed := secretbox.Seal(nonce[:], []byte(key), &nonce, boxKey)

	if err := os.WriteFile(s.sealedPath, sealed, 0o600); err != nil {
		return &SecretError{Op: "write sealed key", Err: err}
	}
	return nil
}

func (s *Store) open() (string, error) {
	boxKey, err := s.loadOrCreateKey()
	if err != nil {
		return "", &SecretError{Op: "load key", Err: err}
	}

	sealed, err := os.ReadFile(s.sealedPath)
	if err != nil {
		return "", &SecretError{Op: "read sealed key", Err: err}
	}
	if len(sealed) < nonceSize {
		return "", &SecretError{Op: "decode sealed key", Err: errors.New("sealed payload too short")}
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, boxKey)
	if !ok {
		return "", &SecretError{Op: "open sealed key", Err: errors.New("decryption failed")}
	}
	return string(plain), nil
}

func (s *Store) loadOrCreateKey() (*[keySize]byte, error) {
	data, err := os.ReadFile(s.keyPath)
	if err == nil && len(data) == keySize {
		var key [keySize]byte
		copy(key[:], data)
		return &key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.keyPath, key[:], 0o600); err != nil {
		return nil, err
	}
	return &key, nil
}
