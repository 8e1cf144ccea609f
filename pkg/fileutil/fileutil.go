// Package fileutil provides file system utility functions shared across
// midicollab's asset-loading paths (SoundFont files today).
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive searches for a file with the given name in the
// specified directory. The search is case-insensitive, which is useful for
// cross-platform compatibility (SoundFont and sample libraries are
// routinely distributed with inconsistent casing).
//
// Parameters:
//   - dir: The directory to search in
//   - filename: The filename to search for (case-insensitive)
//
// Returns:
//   - string: The actual path to the file if found
//   - error: Error if the file is not found or if there's an I/O error
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/path/to/dir", "MyFile.SF2")
//	// Will find "myfile.sf2", "MYFILE.SF2", "MyFile.Sf2", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s)", filename, dir)
}

// ResolveExistingPath returns path unchanged if it already exists, and
// otherwise falls back to a case-insensitive search in its directory. This
// is the common case for a SoundFont path a user typed with slightly
// different casing than it has on disk.
func ResolveExistingPath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(path), filepath.Base(path))
}
