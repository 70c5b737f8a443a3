// Package local implements a DocumentStore on the local filesystem, one JSON
// file per origin.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory holding <origin>.json files.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// DocumentStore reads and writes document sets under BaseDir.
type DocumentStore struct {
	baseDir string
}

// New creates a filesystem-backed store, creating BaseDir when missing.
func New(cfg Config) (*DocumentStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &DocumentStore{baseDir: cfg.BaseDir}, nil
}

// Put replaces the stored set for origin. The file is written to a temp name
// and renamed so readers never observe a partial document.
func (s *DocumentStore) Put(_ context.Context, origin string, docs crawler.DocumentSet) error {
	fullPath, err := s.pathFor(origin)
	if err != nil {
		return err
	}
	data, err := storage.Encode(docs)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.baseDir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Get loads the stored set for origin.
func (s *DocumentStore) Get(_ context.Context, origin string) (crawler.DocumentSet, error) {
	fullPath, err := s.pathFor(origin)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to baseDir by pathFor.
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", origin, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", origin, err)
	}
	return storage.Decode(data)
}

// List returns every stored origin in lexical order.
func (s *DocumentStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read base directory: %w", err)
	}
	var origins []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if origin, ok := storage.OriginFromObjectName(entry.Name()); ok {
			origins = append(origins, origin)
		}
	}
	sort.Strings(origins)
	return origins, nil
}

func (s *DocumentStore) pathFor(origin string) (string, error) {
	if err := storage.ValidateOrigin(origin); err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.baseDir, storage.ObjectName(origin))

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
