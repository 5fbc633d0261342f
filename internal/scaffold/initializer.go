// Package scaffold writes a starter locbridge.yml.
package scaffold

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/dyluth/locbridge/internal/config"
)

//go:embed templates/locbridge.yml.tmpl
var configTemplate []byte

// Template returns the default configuration file content.
func Template() []byte {
	return configTemplate
}

// Initialize writes the default configuration to path.
// If force is true an existing file is replaced.
func Initialize(path string, force bool) error {
	if force {
		if err := handleForce(path); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, configTemplate, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s does not load: %w", path, err)
	}

	return nil
}

// handleForce removes an existing file at path.
func handleForce(path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// PrintSuccess prints what was created and what to do next.
func PrintSuccess(path string) {
	fmt.Printf("\n✅ Created %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set plc.host and locator.host for your cell")
	fmt.Println("  2. Check seeds.* against the PLC register map")
	fmt.Printf("  3. Run 'locbridge run -c %s'\n", path)
}
