package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dyluth/locbridge/internal/config"
	"github.com/dyluth/locbridge/internal/logging"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version string
	commit  string
	date    string

	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "locbridge",
	Short: "locbridge - Locator to PLC seed bridge",
	Long: `locbridge connects a laser localization appliance (the Locator) to a PLC.

It mirrors the live pose into PLC registers, lets the PLC teach the current
pose into numbered seed slots, and hands a taught seed back to the Locator
when the PLC asks for it.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Errors are printed by the printer package, not by cobra.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil && !printed(err) {
		printer.Error("Error", err.Error(), nil)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to locbridge.yml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

// reportedError marks an error already printed by the printer package.
type reportedError struct{ error }

func printed(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

func reported(err error) error {
	return reportedError{err}
}

// loadConfig loads the configuration file. When optional is set and the file
// does not exist, defaults with environment overrides are used instead.
func loadConfig(optional bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
			cfg.ApplyEnv()
		} else {
			return nil, reported(printer.Error(
				"invalid configuration",
				err.Error(),
				[]string{fmt.Sprintf("Create a default configuration:\n  locbridge init -c %s", configPath)},
			))
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, reported(printer.Error("invalid log level", err.Error(), nil))
	}
	return log, nil
}
