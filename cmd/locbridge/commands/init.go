package commands

import (
	"fmt"

	"github.com/dyluth/locbridge/internal/printer"
	"github.com/dyluth/locbridge/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default locbridge.yml",
	Long: `Write a commented default configuration to the --config path.

Use --force to overwrite an existing file.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(configPath); err != nil {
			return reported(printer.Error("configuration already exists", err.Error(), nil))
		}
	}

	if err := scaffold.Initialize(configPath, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(configPath)
	return nil
}
