package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/locbridge/internal/bridge"
	"github.com/dyluth/locbridge/internal/locator"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/spf13/cobra"
)

var (
	seedX         float64
	seedY         float64
	seedYaw       float64
	seedEnforce   bool
	seedUncertain bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Manage the Locator's localization seed",
}

var seedSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Send a seed pose to the Locator",
	Long: `Log in to the Locator, set its localization seed and log out.

Examples:
  locbridge seed set --x 12.5 --y -3.0 --yaw 1.5708
  locbridge seed set --x 0 --y 0 --yaw 0 --enforce`,
	RunE: runSeedSet,
}

func init() {
	seedSetCmd.Flags().Float64Var(&seedX, "x", 0, "X in metres")
	seedSetCmd.Flags().Float64Var(&seedY, "y", 0, "Y in metres")
	seedSetCmd.Flags().Float64Var(&seedYaw, "yaw", 0, "Yaw in radians")
	seedSetCmd.Flags().BoolVar(&seedEnforce, "enforce", false, "Enforce the seed")
	seedSetCmd.Flags().BoolVar(&seedUncertain, "uncertain", false, "Mark the seed as uncertain")
	seedSetCmd.MarkFlagRequired("x")
	seedSetCmd.MarkFlagRequired("y")
	seedSetCmd.MarkFlagRequired("yaw")

	seedCmd.AddCommand(seedSetCmd)
	rootCmd.AddCommand(seedCmd)
}

func runSeedSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	client := locator.NewClient(bridge.LocatorConfig(cfg), log.Named("locator"))
	seed := locator.Seed{X: seedX, Y: seedY, Yaw: seedYaw, Enforce: seedEnforce, Uncertain: seedUncertain}

	if err := client.SetSeed(context.Background(), seed); err != nil {
		return reported(printer.ErrorWithContext("failed to set seed", err.Error(),
			map[string]string{"locator": fmt.Sprintf("%s:%d", cfg.Locator.Host, cfg.Locator.JSONRPCPort)},
			[]string{"Check locator.host, locator.json_rpc_port and the credentials"}))
	}

	printer.Success("Seed set: x=%.4f y=%.4f yaw=%.5f enforce=%t uncertain=%t\n",
		seed.X, seed.Y, seed.Yaw, seed.Enforce, seed.Uncertain)
	return nil
}
