package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type bridgeSummary struct {
	Bridge   string
	DeviceID uint64
	Pipeline string
	Arch     string
	Tables   int
	Actions  int
}

var showCmd = &cobra.Command{
	Use:   "show <bridge>",
	Short: "Show the bridge's device id and installed pipeline summary",
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

		summary := bridgeSummary{
			Bridge:   args[0],
			DeviceID: sess.DeviceID(),
			Pipeline: info.GetPkgInfo().GetName(),
			Arch:     info.GetPkgInfo().GetArch(),
			Tables:   len(info.GetTables()),
			Actions:  len(info.GetActions()),
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(summary))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
