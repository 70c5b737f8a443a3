package sinks

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/sitescope/internal/analysis"
)

// CSV writes a Website,Description table. The file is recreated with a fresh
// header each run.
type CSV struct {
	f *os.File
	w *csv.Writer
}

// NewCSV truncates path and writes the header row.
func NewCSV(path string) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create csv output directory: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open csv output: %w", err)
	}
	s := &CSV{f: f, w: csv.NewWriter(f)}
	if err := s.writeRow("Website", "Description"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Name implements analysis.Sink.
func (s *CSV) Name() string { return "csv" }

// Write adds one row and flushes it so partial runs leave usable output.
func (s *CSV) Write(_ context.Context, res analysis.Result) error {
	return s.writeRow(res.Site, res.Analysis)
}

// Close flushes and closes the file.
func (s *CSV) Close(context.Context) error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return s.f.Close()
}

func (s *CSV) writeRow(fields ...string) error {
	if err := s.w.Write(fields); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
