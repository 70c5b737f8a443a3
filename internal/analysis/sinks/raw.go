// Package sinks holds the file and message outputs of the analysis pipeline.
package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/sitescope/internal/analysis"
)

const rawSeparator = "--------------------"

// RawFile appends every analysis to a plain text log, one banner per site.
// The file is never truncated so it accumulates across runs.
type RawFile struct {
	f *os.File
}

// NewRawFile opens path for appending, creating parent directories.
func NewRawFile(path string) (*RawFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create raw output directory: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open raw output: %w", err)
	}
	return &RawFile{f: f}, nil
}

// Name implements analysis.Sink.
func (s *RawFile) Name() string { return "raw" }

// Write appends the banner and analysis text.
func (s *RawFile) Write(_ context.Context, res analysis.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", rawSeparator, res.Site, rawSeparator)
	b.WriteString(res.Analysis)
	b.WriteString("\n\n\n")
	if _, err := s.f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append raw analysis: %w", err)
	}
	return nil
}

// Close closes the file.
func (s *RawFile) Close(context.Context) error {
	return s.f.Close()
}
