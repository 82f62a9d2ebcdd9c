package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-certwatch/internal/api"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage monitored hostnames",
}

var targetAddCmd = &cobra.Command{
	Use:   "add <hostname>",
	Short: "Register a hostname for monitoring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")

		t, err := appCtx.Services.TargetService.AddTarget(cmd.Context(), args[0], name, description)
		if err != nil {
			return fmt.Errorf("failed to add target: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s target %s (id=%s)\n", colorSuccess("Added"), t.Hostname(), t.ID())
		return nil
	},
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		items, err := appCtx.Services.TargetService.ListTargets(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list targets: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			views := make([]api.Target, 0, len(items))
			for _, t := range items {
				views = append(views, api.NewTarget(t))
			}
			return writeIndentedJSON(cmd.OutOrStdout(), views)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No targets registered. Add one with: certwatch target add <hostname>")
			return nil
		}
		printTargetTable(cmd.OutOrStdout(), items)
		return nil
	},
}

var targetShowCmd = &cobra.Command{
	Use:   "show <id|hostname>",
	Short: "Show the latest check state of a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		t, err := appCtx.Services.TargetService.GetTarget(cmd.Context(), args[0])
		if err != nil {
			return cliError(args[0], err)
		}
		return writeIndentedJSON(cmd.OutOrStdout(), api.NewTarget(t))
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:     "remove <id|hostname>",
	Aliases: []string{"rm"},
	Short:   "Stop monitoring a target",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		t, err := appCtx.Services.TargetService.RemoveTarget(cmd.Context(), args[0])
		if err != nil {
			return cliError(args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s target %s\n", colorSuccess("Removed"), t.Hostname())
		return nil
	},
}

var targetEnableCmd = &cobra.Command{
	Use:   "enable <id|hostname>",
	Short: "Resume checks and notifications for a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTargetNotifications(cmd, args[0], true)
	},
}

var targetDisableCmd = &cobra.Command{
	Use:   "disable <id|hostname>",
	Short: "Pause checks and notifications for a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTargetNotifications(cmd, args[0], false)
	},
}

func setTargetNotifications(cmd *cobra.Command, ref string, enabled bool) error {
	appCtx := getAppContext(cmd)
	t, err := appCtx.Services.TargetService.SetNotifications(cmd.Context(), ref, enabled)
	if err != nil {
		return cliError(ref, err)
	}
	verb := colorWarn("Disabled")
	if enabled {
		verb = colorSuccess("Enabled")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s monitoring for %s\n", verb, t.Hostname())
	return nil
}

func printTargetTable(out io.Writer, items []*target.MonitoredTarget) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOSTNAME\tSTATUS\tDAYS\tGRADE\tENABLED\tLAST CHECK")
	for _, t := range items {
		days := "-"
		if cert := t.Certificate(); cert != nil && cert.Retrieved() {
			days = strconv.Itoa(cert.DaysRemaining)
		}
		grade := ""
		if a := t.Assessment(); a != nil {
			grade = string(a.Grade)
		}
		last := "never"
		if lc := t.LastCheck(); !lc.IsZero() {
			last = lc.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			t.ID(), t.Hostname(), formatStatusWithColor(string(t.Status())),
			days, formatGrade(grade), t.NotificationsEnabled(), last)
	}
	_ = tw.Flush()
}

func writeIndentedJSON(out io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, jsonPrefix, jsonIndent)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

func init() {
	targetAddCmd.Flags().String("name", "", "Display name (defaults to the hostname)")
	targetAddCmd.Flags().String("description", "", "Free-form description")
	targetListCmd.Flags().Bool("json", false, "Print targets as JSON")

	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetShowCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetEnableCmd)
	targetCmd.AddCommand(targetDisableCmd)
}
