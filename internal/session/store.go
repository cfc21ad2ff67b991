// Package session persists the single session token and exposes it to the
// rest of the client through an explicitly passed Session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ecmdash/internal/config"
)

// Store holds at most one token. Get reports ok=false when none is stored.
type Store interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Open returns the Store for a configured backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		return NewFileStore(path)
	case config.BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != "", nil
}

func (m *MemoryStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// FileStore keeps the token in a small JSON document readable only by the
// current user.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDoc struct {
	Token string `json:"token"`
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session path is required")
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

func (f *FileStore) Get(context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read session: %w", err)
	}
	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", false, fmt.Errorf("decode session: %w", err)
	}
	return doc.Token, doc.Token != "", nil
}

func (f *FileStore) Set(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.Marshal(fileDoc{Token: token})
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
