package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p4ovs/ovs-p4ctl/internal/p4client"
)

var getPipeCmd = &cobra.Command{
	Use:   "get-pipe <bridge>",
	Short: "Print the bridge's installed P4Info in text format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		info, err := sess.GetP4Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch pipeline: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), p4client.FormatP4Info(info))
		return nil
	},
}

var setPipeCmd = &cobra.Command{
	Use:   "set-pipe <bridge> <device-config-file> <p4info-file>",
	Short: "Install a pipeline from a binary device config and a text P4Info",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceConfig, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read device config: %w", err)
		}
		p4infoText, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("failed to read p4info: %w", err)
		}

		sess, err := connectMaster(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.SetPipeline(cmd.Context(), p4infoText, deviceConfig); err != nil {
			return fmt.Errorf("failed to set pipeline: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pipeline installed on %q.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getPipeCmd)
	rootCmd.AddCommand(setPipeCmd)
}
