// Package gcs provides a DocumentStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/sitescope/internal/crawler"
	sitestorage "github.com/JakeFAU/sitescope/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// DocumentStore keeps one JSON object per origin under Prefix.
type DocumentStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed document store.
func New(client *storage.Client, cfg Config) (*DocumentStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &DocumentStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads docs as <prefix>/<origin>.json, replacing any previous object.
func (s *DocumentStore) Put(ctx context.Context, origin string, docs crawler.DocumentSet) error {
	name, err := s.objectName(origin)
	if err != nil {
		return err
	}
	data, err := sitestorage.Encode(docs)
	if err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Get downloads and decodes the object for origin.
func (s *DocumentStore) Get(ctx context.Context, origin string) (crawler.DocumentSet, error) {
	name, err := s.objectName(origin)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", origin, sitestorage.ErrNotFound)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return sitestorage.Decode(data)
}

// List returns the origins stored under Prefix, sorted.
func (s *DocumentStore) List(ctx context.Context) ([]string, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)

	var origins []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		rel := strings.TrimPrefix(attrs.Name, query.Prefix)
		if strings.Contains(rel, "/") {
			continue
		}
		if origin, ok := sitestorage.OriginFromObjectName(rel); ok {
			origins = append(origins, origin)
		}
	}
	sort.Strings(origins)
	return origins, nil
}

func (s *DocumentStore) objectName(origin string) (string, error) {
	if err := sitestorage.ValidateOrigin(origin); err != nil {
		return "", err
	}
	if s.prefix == "" {
		return sitestorage.ObjectName(origin), nil
	}
	return path.Join(s.prefix, sitestorage.ObjectName(origin)), nil
}
