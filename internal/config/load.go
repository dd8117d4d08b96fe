package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the outcome of resolving and reading the runtime configuration:
// the path that was consulted, the effective values, and any non-fatal
// warnings collected along the way.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves the config path, overlays the file onto the built-in
// defaults, and validates the result. A missing file is not an error; the
// defaults apply and a warning records the path that was tried.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	defaults := Default()

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		warn := Warning{Message: fmt.Sprintf("config file %q not found; using defaults", path)}
		return Loaded{Path: path, Config: defaults, Warnings: []Warning{warn}}, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), defaults)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}
