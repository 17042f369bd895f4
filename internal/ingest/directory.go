package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScanDirectory lists the allowed images directly inside dir, in directory
// enumeration order (os.ReadDir sorts by filename).
func ScanDirectory(dir string, exts map[string]struct{}) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("directory is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !AllowedPath(path, exts) {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ensureDir creates dir when missing and checks it is a writable directory.
func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
