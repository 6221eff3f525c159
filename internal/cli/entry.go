package cli

import (
	"context"
	"fmt"
	"strings"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/spf13/cobra"

	"github.com/p4ovs/ovs-p4ctl/internal/flow"
	"github.com/p4ovs/ovs-p4ctl/internal/p4client"
	"github.com/p4ovs/ovs-p4ctl/internal/p4info"
)

// buildEntry parses the flow text against the live schema. Flow action
// parameters are positional; they are matched up with the action's
// declared parameter order.
func buildEntry(ctx context.Context, sess session, table, flowText string) (*p4v1.TableEntry, error) {
	parsed, err := flow.Parse(flowText)
	if err != nil {
		return nil, err
	}

	info, err := sess.GetP4Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pipeline: %w", err)
	}
	ix := p4info.New(info)

	params, err := ix.ActionParams(parsed.Action)
	if err != nil {
		return nil, err
	}
	if len(params) != len(parsed.Params) {
		return nil, fmt.Errorf("action %q takes %d parameters, got %d",
			parsed.Action, len(params), len(parsed.Params))
	}
	named := make(map[string]any, len(params))
	for i, p := range params {
		named[p.GetName()] = parsed.Params[i]
	}

	return ix.BuildTableEntry(p4info.EntrySpec{
		Table:    table,
		Match:    parsed.Match,
		Action:   parsed.Action,
		Params:   named,
		Priority: parsed.Priority,
	})
}

func writeEntry(cmd *cobra.Command, args []string, op func(*p4v1.TableEntry) *p4v1.Update, verb, past string) error {
	bridge, table, flowText := args[0], args[1], strings.Join(args[2:], ",")

	sess, err := connectMaster(cmd.Context(), bridge)
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, err := buildEntry(cmd.Context(), sess, table, flowText)
	if err != nil {
		return err
	}
	if err := sess.Write(cmd.Context(), []*p4v1.Update{op(entry)}); err != nil {
		return fmt.Errorf("failed to %s entry: %w", verb, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Entry %s in %q.\n", past, table)
	return nil
}

var addEntryCmd = &cobra.Command{
	Use:   "add-entry <bridge> <table> <flow>",
	Short: "Insert a table entry described by a flow string",
	Long: `Insert an entry. The flow string pairs match fields with values and
names the action, for example:

  ovs-p4ctl add-entry br0 filter_tbl headers.ipv4.dstAddr=10.0.0.0/24,action=push_mpls(20)`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeEntry(cmd, args, p4client.NewInsert, "insert", "inserted")
	},
}

var modEntryCmd = &cobra.Command{
	Use:   "mod-entry <bridge> <table> <flow>",
	Short: "Modify the action of an existing table entry",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeEntry(cmd, args, p4client.NewModify, "modify", "modified")
	},
}

var delEntryCmd = &cobra.Command{
	Use:   "del-entry <bridge> <table> <flow>",
	Short: "Delete the table entry matching a flow string",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeEntry(cmd, args, p4client.NewDelete, "delete", "deleted")
	},
}

func init() {
	rootCmd.AddCommand(addEntryCmd)
	rootCmd.AddCommand(modEntryCmd)
	rootCmd.AddCommand(delEntryCmd)
}
