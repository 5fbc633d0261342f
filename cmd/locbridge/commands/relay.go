package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/locbridge/internal/bridge"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/dyluth/locbridge/internal/relay"
	"github.com/spf13/cobra"
)

var (
	relayListen    string
	relayFrequency float64
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay the pose stream at a reduced rate",
	Long: `Forward whole pose datagrams from the Locator to one TCP consumer,
at most --frequency times per second. Older datagrams are dropped
when the consumer falls behind.

Runs on its own; 'locbridge run' starts the same relay when relay.enabled is set.`,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", "", "Listen address (default relay.listen)")
	relayCmd.Flags().Float64Var(&relayFrequency, "frequency", 0, "Datagrams per second (default relay.frequency)")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if relayListen != "" {
		cfg.Relay.Listen = relayListen
	}
	if relayFrequency != 0 {
		cfg.Relay.Frequency = relayFrequency
	}
	if cfg.Relay.Frequency <= 0 {
		return reported(printer.Error("invalid frequency", "--frequency must be > 0", nil))
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := relay.New(bridge.RelayConfig(cfg), log.Named("relay"))
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return reported(printer.Error("relay failed", err.Error(), nil))
	}
	return nil
}
