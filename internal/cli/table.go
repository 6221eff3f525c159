package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p4ovs/ovs-p4ctl/internal/p4info"
)

type tableRow struct {
	Name    string
	ID      uint32
	Matches int
	Size    int64
}

var dumpTablesCmd = &cobra.Command{
	Use:   "dump-tables <bridge>",
	Short: "List the tables of the installed pipeline",
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

		ix := p4info.New(info)
		rows := make([]tableRow, 0, len(ix.Tables()))
		for _, tbl := range ix.Tables() {
			rows = append(rows, tableRow{
				Name:    tbl.GetPreamble().GetName(),
				ID:      tbl.GetPreamble().GetId(),
				Matches: len(tbl.GetMatchFields()),
				Size:    tbl.GetSize(),
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rows))
		return nil
	},
}

type tableDetail struct {
	Name    string
	Alias   string
	ID      uint32
	Size    int64
	Matches []string
	Actions []string
}

var dumpTableCmd = &cobra.Command{
	Use:   "dump-table <bridge> <table>",
	Short: "Show one table's match fields and actions",
	Args:  cobra.ExactArgs(2),
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

		ix := p4info.New(info)
		tbl, err := ix.Table(args[1])
		if err != nil {
			return err
		}

		detail := tableDetail{
			Name:  tbl.GetPreamble().GetName(),
			Alias: tbl.GetPreamble().GetAlias(),
			ID:    tbl.GetPreamble().GetId(),
			Size:  tbl.GetSize(),
		}
		for _, mf := range tbl.GetMatchFields() {
			detail.Matches = append(detail.Matches, fmt.Sprintf(
				"%s:%s/%d", mf.GetName(), strings.ToLower(mf.GetMatchType().String()), mf.GetBitwidth()))
		}
		for _, ref := range tbl.GetActionRefs() {
			name, err := ix.Name(p4info.KindAction, ref.GetId())
			if err != nil {
				return err
			}
			detail.Actions = append(detail.Actions, name)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(detail))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpTablesCmd)
	rootCmd.AddCommand(dumpTableCmd)
}
