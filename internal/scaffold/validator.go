package scaffold

import (
	"fmt"
	"os"
)

// CheckExisting returns an error if a configuration file already exists at path.
func CheckExisting(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("already initialized\n\nFound existing: %s\n\nUse 'locbridge init --force' to overwrite it", path)
	}
	return nil
}
