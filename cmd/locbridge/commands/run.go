package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/locbridge/internal/bridge"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long workers get to exit after a signal.
const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Run the bridge until interrupted.

Starts the pose stream reader, the seed zero updater, the teach/set
synchronizer and, if enabled, the pose relay. Each reconnects on its own
after a failure. /healthz reports the state of every connection.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, err := bridge.New(cfg, log)
	if err != nil {
		return reported(printer.Error("failed to start bridge", err.Error(), nil))
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorw("Error closing bridge", "err", err)
		}
	}()

	var health *bridge.HealthServer
	if cfg.Health.Port != 0 {
		health = bridge.NewHealthServer(engine, cfg.Health.Port, log.Named("health"))
		if err := health.Start(); err != nil {
			return reported(printer.Error("failed to start health server", err.Error(),
				[]string{fmt.Sprintf("Choose a free port with health.port (currently %d), or 0 to disable", cfg.Health.Port)}))
		}
		log.Infow("Health server started", "port", cfg.Health.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Infow("Received signal", "signal", sig.String())
	case err := <-engineDone:
		return err
	}

	log.Infow("Initiating graceful shutdown")
	cancel()

	if health != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Health server shutdown error", "err", err)
		}
	}

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case err := <-engineDone:
		if err != nil {
			return err
		}
		log.Infow("Bridge shutdown complete")
		return nil
	case <-timer.C:
		log.Errorw("Shutdown timeout, forcing exit")
		return reported(fmt.Errorf("shutdown timed out after %s", shutdownTimeout))
	}
}
