package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dyluth/locbridge/internal/pose"
	"github.com/dyluth/locbridge/internal/printer"
	"github.com/spf13/cobra"
)

var (
	poseHost    string
	posePort    int
	poseJSON    bool
	poseRaw     bool
	poseTimeout time.Duration
)

var poseCmd = &cobra.Command{
	Use:   "pose",
	Short: "Read one pose from the Locator and exit",
	Long: `Connect to the Locator's pose stream, read a single datagram and print it.

Uses locator.host and locator.pose_port from the configuration file when it
exists; --host and --port override them.

Examples:
  locbridge pose
  locbridge pose --host 10.0.0.20 --json
  locbridge pose --raw`,
	RunE: runPose,
}

func init() {
	poseCmd.Flags().StringVar(&poseHost, "host", "", "Locator host (default from config)")
	poseCmd.Flags().IntVar(&posePort, "port", 0, "Pose stream port (default from config)")
	poseCmd.Flags().BoolVar(&poseJSON, "json", false, "Print as JSON")
	poseCmd.Flags().BoolVar(&poseRaw, "raw", false, "Print every datagram field")
	poseCmd.Flags().DurationVar(&poseTimeout, "timeout", 5*time.Second, "Connect and read timeout")
	rootCmd.AddCommand(poseCmd)
}

// poseJSONOutput is the --json form of a pose.
type poseJSONOutput struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Yaw       float64 `json:"yaw"`
	State     int32   `json:"localization_state"`
	Localized bool    `json:"localized"`
	Timestamp string  `json:"timestamp"`
}

func runPose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	host, port := cfg.Locator.Host, cfg.Locator.PosePort
	if poseHost != "" {
		host = poseHost
	}
	if posePort != 0 {
		port = posePort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(context.Background(), poseTimeout)
	defer cancel()

	conn, err := pose.Dial(ctx, addr, poseTimeout)
	if err != nil {
		return reported(printer.Error("pose stream unreachable", err.Error(),
			[]string{"Check locator.host and locator.pose_port, or pass --host/--port"}))
	}
	defer conn.Close()

	d, err := pose.ReadDatagram(conn, make([]byte, pose.DatagramSize), poseTimeout)
	if err != nil {
		return reported(printer.ErrorWithContext("failed to read pose", err.Error(), map[string]string{"addr": addr}, nil))
	}

	return printPose(d)
}

func printPose(d pose.Datagram) error {
	p := d.Pose()

	if poseJSON {
		var v any = poseJSONOutput{
			X:         p.X,
			Y:         p.Y,
			Yaw:       p.Yaw,
			State:     p.State,
			Localized: p.Localized(),
			Timestamp: p.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if poseRaw {
			v = d
		}
		enc := json.NewEncoder(printer.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	fields := []printer.Field{
		{Label: "x", Value: fmt.Sprintf("%.4f", p.X)},
		{Label: "y", Value: fmt.Sprintf("%.4f", p.Y)},
		{Label: "yaw", Value: fmt.Sprintf("%.5f", p.Yaw)},
		{Label: "state", Value: fmt.Sprintf("%d (localized: %t)", p.State, p.Localized())},
		{Label: "timestamp", Value: p.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
	if poseRaw {
		fields = append(fields,
			printer.Field{Label: "age", Value: fmt.Sprintf("%.3fs", d.Age)},
			printer.Field{Label: "unique id", Value: strconv.FormatUint(d.UniqueID, 10)},
			printer.Field{Label: "error flags", Value: fmt.Sprintf("%#x", d.ErrorFlags)},
			printer.Field{Label: "info flags", Value: fmt.Sprintf("%#x", d.InfoFlags)},
			printer.Field{Label: "covariance", Value: fmt.Sprintf("%v", d.Covariance)},
			printer.Field{Label: "z", Value: fmt.Sprintf("%.4f", d.Z)},
			printer.Field{Label: "quaternion", Value: fmt.Sprintf("%v", d.Quaternion)},
			printer.Field{Label: "epoch", Value: strconv.FormatUint(d.Epoch, 10)},
			printer.Field{Label: "odometry", Value: fmt.Sprintf("x=%.4f y=%.4f yaw=%.5f", d.OdoX, d.OdoY, d.OdoYaw)},
		)
	}
	printer.Fields(fields...)
	return nil
}
