package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists registry snapshots.
type Store interface {
	Load() (map[string][]int64, error)
	Save(wallets map[string][]int64) error
}

// FileStore keeps the registry as a JSON document of address -> chat ids.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty registry.
func (s *FileStore) Load() (map[string][]int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read wallets file: %w", err)
	}

	wallets := make(map[string][]int64)
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("parse wallets file: %w", err)
	}
	return wallets, nil
}

// Save writes the document through a temp file and rename.
func (s *FileStore) Save(wallets map[string][]int64) error {
	data, err := json.MarshalIndent(wallets, "", "    ")
	if err != nil {
		return fmt.Errorf("encode wallets: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace wallets file: %w", err)
	}
	return nil
}
