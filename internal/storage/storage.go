// Package storage holds helpers shared by the DocumentStore backends.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/sitescope/internal/crawler"
)

// ErrNotFound is returned by every backend when an origin has no stored set.
var ErrNotFound = crawler.ErrSiteNotFound

// objectSuffix is appended to an origin to name its persisted object.
const objectSuffix = ".json"

// ValidateOrigin rejects origins that cannot be used as a flat object name.
func ValidateOrigin(origin string) error {
	switch {
	case strings.TrimSpace(origin) == "":
		return fmt.Errorf("origin is required")
	case origin == "." || origin == "..":
		return fmt.Errorf("invalid origin %q", origin)
	case strings.ContainsAny(origin, `/\`):
		return fmt.Errorf("origin %q must not contain path separators", origin)
	}
	return nil
}

// ObjectName returns the object or file name for origin.
func ObjectName(origin string) string {
	return origin + objectSuffix
}

// OriginFromObjectName reverses ObjectName. ok is false for foreign names.
func OriginFromObjectName(name string) (string, bool) {
	origin, ok := strings.CutSuffix(name, objectSuffix)
	if !ok || ValidateOrigin(origin) != nil {
		return "", false
	}
	return origin, true
}

// Encode serializes a DocumentSet as a JSON object of URL to text.
func Encode(docs crawler.DocumentSet) ([]byte, error) {
	if docs == nil {
		docs = crawler.DocumentSet{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	return data, nil
}

// Decode parses the output of Encode.
func Decode(data []byte) (crawler.DocumentSet, error) {
	docs := crawler.DocumentSet{}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}
