package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileStore keeps settings in a TOML file, one table per namespace:
//
//	[admin]
//	installationId = "5c1e..."
//
//	[proxy]
//	enabled = true
//	server = "proxy.internal"
//	port = 3128
//
// The file is re-read on every Get so edits apply without a restart.
// A missing file reads as empty.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[namespace][key]
	if !ok {
		return "", false, nil
	}
	return fmt.Sprint(v), true, nil
}

func (s *FileStore) Set(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if data[namespace] == nil {
		data[namespace] = make(map[string]any)
	}
	data[namespace][key] = value

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

func (s *FileStore) load() (map[string]map[string]any, error) {
	data := make(map[string]map[string]any)
	if _, err := toml.DecodeFile(s.path, &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, fmt.Errorf("parse settings file %s: %w", s.path, err)
	}
	return data, nil
}

var _ Store = (*FileStore)(nil)
