// Package corpus loads and normalizes per-role achievement records, the sole
// ground truth for every downstream validation step.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store abstracts the external storage collaborator that holds role records.
// The pipeline only ever reads from it.
type Store interface {
	// List returns the available role record identifiers.
	List(ctx context.Context) ([]string, error)
	// Read returns the raw text of one role record.
	Read(ctx context.Context, id string) (string, error)
}

// DirStore reads role records from a directory of <role-id>.txt files.
type DirStore struct {
	Dir string
}

// NewDirStore creates a store over the given directory.
func NewDirStore(dir string) *DirStore {
	return &DirStore{Dir: dir}
}

// List returns role IDs derived from .txt filenames, sorted for determinism.
func (s *DirStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", s.Dir, err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Read returns the content of one role record file.
func (s *DirStore) Read(_ context.Context, id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, id+".txt"))
	if err != nil {
		return "", fmt.Errorf("failed to read role record %s: %w", id, err)
	}
	return string(data), nil
}

// MapStore serves role records from memory. Used in tests and by callers that
// already hold the corpus.
type MapStore struct {
	Records map[string]string
}

// List returns the record IDs sorted for determinism.
func (s *MapStore) List(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.Records))
	for id := range s.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Read returns one record's text.
func (s *MapStore) Read(_ context.Context, id string) (string, error) {
	text, ok := s.Records[id]
	if !ok {
		return "", fmt.Errorf("role record %s not found", id)
	}
	return text, nil
}
