// Package landmarks implements the landmark template store: averaged hand
// landmarks for known signs, loaded from extraction output files, with a
// nearest-centroid classifier and alias suggestions for unknown signs.
//
// Two store implementations exist: an in-memory store fed from a data
// directory of *_landmarks.json files, and an optional PostgreSQL store that
// keeps the flattened coordinates in a pgvector column so classification is
// a single nearest-neighbour query.
package landmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/junghee-19/SignLink/pkg/provider/landmark"
)

// ErrNotFound is returned by Get when no template exists for the sign.
var ErrNotFound = errors.New("landmarks: sign not found")

// ErrNoMatch is returned by Classify when no template is comparable to the
// input (no templates loaded, empty input, or only length mismatches).
var ErrNoMatch = errors.New("landmarks: no matching template")

// Store is the abstraction over a landmark template store. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the template stored under sign's lowercase key.
	// Returns ErrNotFound when the sign is unknown.
	Get(ctx context.Context, sign string) (*landmark.Template, error)

	// Put inserts or replaces a template under its Key.
	Put(ctx context.Context, tpl *landmark.Template) error

	// Signs returns all stored template keys, sorted.
	Signs(ctx context.Context) ([]string, error)

	// Classify returns the key of the template nearest to points.
	// Returns ErrNoMatch when nothing is comparable.
	Classify(ctx context.Context, points []landmark.Point) (string, error)

	// Close releases any resources held by the store.
	Close() error
}

// MemStore is an in-memory Store, typically populated from a data directory
// via LoadDir. Safe for concurrent use.
type MemStore struct {
	mu        sync.RWMutex
	templates map[string]*landmark.Template
}

// Compile-time interface assertion.
var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{templates: make(map[string]*landmark.Template)}
}

// LoadDir reads every *_landmarks.json file in dir into the store. Files
// that fail to parse abort the load; a missing directory is an error, an
// empty one is not. Returns the number of templates loaded.
func (s *MemStore) LoadDir(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_landmarks.json"))
	if err != nil {
		return 0, fmt.Errorf("landmarks: glob %q: %w", dir, err)
	}
	if matches == nil {
		if _, err := os.Stat(dir); err != nil {
			return 0, fmt.Errorf("landmarks: data dir %q: %w", dir, err)
		}
	}

	n := 0
	for _, path := range matches {
		tpl, err := readTemplateFile(path)
		if err != nil {
			return n, err
		}
		if err := s.Put(context.Background(), tpl); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// readTemplateFile parses a single landmark template file.
func readTemplateFile(path string) (*landmark.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("landmarks: read %q: %w", path, err)
		}
		return nil, fmt.Errorf("landmarks: read %q: %w", path, err)
	}
	var tpl landmark.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("landmarks: parse %q: %w", path, err)
	}
	if tpl.Key() == "" {
		return nil, fmt.Errorf("landmarks: %q has neither alias nor sign", path)
	}
	return &tpl, nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, sign string) (*landmark.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[strings.ToLower(sign)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, sign)
	}
	return tpl, nil
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, tpl *landmark.Template) error {
	key := tpl.Key()
	if key == "" {
		return errors.New("landmarks: template has neither alias nor sign")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[key] = tpl
	return nil
}

// Signs implements Store.
func (s *MemStore) Signs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signs := make([]string, 0, len(s.templates))
	for key := range s.templates {
		signs = append(signs, key)
	}
	sort.Strings(signs)
	return signs, nil
}

// Classify implements Store: nearest centroid by mean Euclidean distance
// between the input points and each template's average, skipping templates
// whose point count differs from the input.
func (s *MemStore) Classify(_ context.Context, points []landmark.Point) (string, error) {
	if len(points) == 0 {
		return "", ErrNoMatch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := ""
	bestScore := 0.0
	for key, tpl := range s.templates {
		if len(tpl.Average) != len(points) {
			continue
		}
		score := meanDistance(points, tpl.Average)
		if best == "" || score < bestScore || (score == bestScore && key < best) {
			best = key
			bestScore = score
		}
	}
	if best == "" {
		return "", ErrNoMatch
	}
	return best, nil
}

// Close implements Store. The in-memory store holds no resources.
func (s *MemStore) Close() error { return nil }
