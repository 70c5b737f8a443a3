package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG sub-directories.
const AppName = "sitescope"

// LocalConfigFile is looked up in the working directory.
const LocalConfigFile = "sitescope.yaml"

// ErrConfigNotFound is returned when an explicit config path does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// XDGConfigFile returns the per-user config path,
// e.g. ~/.config/sitescope/config.yaml on Linux.
func XDGConfigFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// FindConfigFile resolves the file to load:
// 1. explicit, when given (it must exist)
// 2. ./sitescope.yaml
// 3. the XDG config file
//
// An empty path with a nil error means defaults and environment only.
func FindConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}
	for _, candidate := range []string{LocalConfigFile, XDGConfigFile()} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// DefaultYAML renders the default configuration as a starter file.
func DefaultYAML() ([]byte, error) {
	cfg := Default()
	cfg.Crawler.Seeds = []string{"https://example.com"}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	header := []byte("# sitescope configuration. Every key can be overridden with\n" +
		"# SITESCOPE_<SECTION>_<KEY>, e.g. SITESCOPE_CRAWLER_MAX_DEPTH=3.\n")
	return append(header, out...), nil
}
