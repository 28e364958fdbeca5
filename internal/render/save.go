package render

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save writes rendered content to path, creating parent directories.
func Save(content, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to save output to %s: %w", path, err)
	}
	return nil
}

// DefaultFilename builds the conventional output name for a repository.
func DefaultFilename(owner, name string, format Format) string {
	return fmt.Sprintf("%s-%s-user-stories%s", owner, name, format.Extension())
}
