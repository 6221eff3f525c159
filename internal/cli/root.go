// Package cli wires the ovs-p4ctl commands: each command resolves the
// bridge's device id over OVSDB, opens a P4Runtime session as primary,
// runs one operation, and tears the session down.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/spf13/cobra"

	"github.com/p4ovs/ovs-p4ctl/internal/config"
	"github.com/p4ovs/ovs-p4ctl/internal/output"
	"github.com/p4ovs/ovs-p4ctl/internal/ovsdb"
	"github.com/p4ovs/ovs-p4ctl/internal/p4client"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	p4rtAddr     string
	ovsdbAddr    string

	// Shared state set during PersistentPreRun
	cfg       config.Config
	formatter output.Formatter

	// Injection points for tests.
	resolveDeviceID = ovsdb.ResolveDeviceID
	dialSession     = func(ctx context.Context, addr string, c p4client.Config) (session, error) {
		return p4client.Dial(ctx, addr, c)
	}
)

// session is the slice of the P4Runtime client the commands use.
type session interface {
	GetP4Info(ctx context.Context) (*p4config.P4Info, error)
	SetPipeline(ctx context.Context, p4infoText, deviceConfig []byte) error
	Write(ctx context.Context, updates []*p4v1.Update) error
	IsMaster() bool
	DeviceID() uint64
	Close() error
}

var rootCmd = &cobra.Command{
	Use:   "ovs-p4ctl",
	Short: "Manage the P4Runtime pipeline and table entries of P4-enabled bridges",
	Long: `ovs-p4ctl talks to a P4-enabled switch over P4Runtime. It looks up the
bridge's device id in the switch's OVSDB, becomes the primary controller
for that device, and then inspects or programs its pipeline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if p4rtAddr != "" {
			cfg.P4RuntimeAddr = p4rtAddr
		}
		if ovsdbAddr != "" {
			cfg.OvsdbAddr = ovsdbAddr
		}
		if outputFormat != "" {
			cfg.Output = outputFormat
		}

		formatter = output.NewFormatter(cfg.Output)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

// connect resolves the bridge's device id and opens a session. A slave
// session is still usable for reads; the session itself logs a warning
// about the reduced role.
func connect(ctx context.Context, bridge string) (session, error) {
	deviceID, err := resolveDeviceID(cfg.OvsdbAddr, bridge)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bridge %q: %w", bridge, err)
	}
	sess, err := dialSession(ctx, cfg.P4RuntimeAddr, p4client.Config{
		DeviceID: deviceID,
		ElectionID: p4client.ElectionID{
			High: cfg.ElectionHigh,
			Low:  cfg.ElectionLow,
		},
		ArbitrationTimeout: time.Duration(cfg.ArbitrationTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.P4RuntimeAddr, err)
	}
	return sess, nil
}

// connectMaster is connect for the mutating commands: the device
// rejects writes from non-primary controllers, so a slave session is
// refused up front.
func connectMaster(ctx context.Context, bridge string) (session, error) {
	sess, err := connect(ctx, bridge)
	if err != nil {
		return nil, err
	}
	if !sess.IsMaster() {
		sess.Close()
		return nil, fmt.Errorf("another controller holds mastership of device %d", sess.DeviceID())
	}
	return sess, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.p4ctl/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVar(&p4rtAddr, "p4rt-addr", "", "P4Runtime server address")
	rootCmd.PersistentFlags().StringVar(&ovsdbAddr, "ovsdb-addr", "", "OVSDB management address")
}
