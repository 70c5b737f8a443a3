// Package memory keeps document sets in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/storage"
)

// DocumentStore stores document sets in a map guarded by a RWMutex.
type DocumentStore struct {
	mu    sync.RWMutex
	sites map[string]crawler.DocumentSet
}

// NewDocumentStore creates an empty in-memory store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{sites: make(map[string]crawler.DocumentSet)}
}

// Put stores a copy of docs under origin.
func (s *DocumentStore) Put(_ context.Context, origin string, docs crawler.DocumentSet) error {
	if err := storage.ValidateOrigin(origin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[origin] = docs.Clone()
	return nil
}

// Get returns a copy of the set stored for origin.
func (s *DocumentStore) Get(_ context.Context, origin string) (crawler.DocumentSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, ok := s.sites[origin]
	if !ok {
		return nil, fmt.Errorf("%s: %w", origin, storage.ErrNotFound)
	}
	return docs.Clone(), nil
}

// List returns stored origins in lexical order.
func (s *DocumentStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	origins := make([]string, 0, len(s.sites))
	for origin := range s.sites {
		origins = append(origins, origin)
	}
	sort.Strings(origins)
	return origins, nil
}
