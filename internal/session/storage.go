package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrKeyNotFound is returned when a storage key has no value.
var ErrKeyNotFound = errors.New("key not found")

// Storage is durable client-side key/value persistence.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// SetMany stores every entry or none of them.
	SetMany(entries map[string]string) error
	Remove(key string) error
}

// storageFile is the on-disk layout of FileStorage.
type storageFile struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// FileStorage keeps entries in a single JSON document inside a private
// state directory. Every write replaces the document atomically.
type FileStorage struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStorage creates a file backed storage.
// If baseDir is empty, uses ~/.wardstock/
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".wardstock")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &FileStorage{baseDir: baseDir}

	if err := s.ensureFile(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("session storage initialized")

	return s, nil
}

// Path returns the location of the storage document.
func (s *FileStorage) Path() string {
	return filepath.Join(s.baseDir, "storage.json")
}

// Get returns the value stored under key or ErrKeyNotFound.
func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}

	value, ok := doc.Entries[key]
	if !ok {
		return "", ErrKeyNotFound
	}

	return value, nil
}

// Set stores value under key.
func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	doc.Entries[key] = value

	return s.save(doc)
}

// SetMany stores all entries in a single document write.
func (s *FileStorage) SetMany(entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	for key, value := range entries {
		doc.Entries[key] = value
	}

	return s.save(doc)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Entries[key]; !ok {
		return nil
	}

	delete(doc.Entries, key)

	return s.save(doc)
}

func (s *FileStorage) ensureFile() error {
	if _, err := os.Stat(s.Path()); err == nil {
		return nil
	}

	return s.save(&storageFile{
		Version: 1,
		Entries: make(map[string]string),
	})
}

func (s *FileStorage) load() (*storageFile, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &storageFile{Version: 1, Entries: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}

	var doc storageFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse storage: %w", err)
	}

	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}

	return &doc, nil
}

// save writes the document to a temp file and renames it into place.
func (s *FileStorage) save(doc *storageFile) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	path := s.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save storage: %w", err)
	}

	return nil
}

// MemoryStorage implements Storage in memory.
// Data is lost when the process exits.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *MemoryStorage) SetMany(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range entries {
		m.entries[key] = value
	}
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
