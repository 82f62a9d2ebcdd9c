package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-certwatch/internal/application/monitor"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run certificate checks",
}

var checkRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Check every enabled target now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		sched := getAppContext(cmd).Services.Scheduler
		if err := sched.Start(ctx); err != nil {
			return err
		}
		summary, err := sched.RunNow(ctx)
		if err != nil {
			return cliError("", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeIndentedJSON(cmd.OutOrStdout(), summary)
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

var checkTargetCmd = &cobra.Command{
	Use:   "target <id|hostname>",
	Short: "Check a single target now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		services := getAppContext(cmd).Services
		t, err := services.TargetService.GetTarget(ctx, args[0])
		if err != nil {
			return cliError(args[0], err)
		}
		outcome, err := services.Orchestrator.RunCheck(ctx, t.ID())
		if err != nil {
			return cliError(args[0], err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeIndentedJSON(cmd.OutOrStdout(), outcome)
		}
		printOutcomes(cmd.OutOrStdout(), []monitor.CheckOutcome{outcome})
		return nil
	},
}

// signalContext cancels on SIGINT/SIGTERM so in-flight handshakes stop promptly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\n%s Received %v, cancelling checks...\n", colorWarn("!"), sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func printSummary(out io.Writer, s monitor.BatchSummary) {
	printOutcomes(out, s.Outcomes)
	fmt.Fprintf(out, "\n%s %d checked, %d succeeded, %d failed, %d warning, %d expired, %d insecure protocol, %d skipped (%s)\n",
		colorInfo("Summary:"), s.Total, s.Succeeded, s.Failed, s.Warned, s.Expired, s.InsecureProtocol, s.Skipped,
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	if !s.NextCheck.IsZero() {
		fmt.Fprintf(out, "%s %s\n", colorInfo("Next scheduled check:"), s.NextCheck.Format("2006-01-02 15:04 MST"))
	}
}

func printOutcomes(out io.Writer, outcomes []monitor.CheckOutcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No targets to check.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOSTNAME\tSTATUS\tDAYS\tGRADE\tINSECURE\tNOTIFIED\tERROR")
	for _, o := range outcomes {
		status := string(o.Status)
		if o.Skipped {
			status = "skipped"
		}
		insecure := make([]string, 0, len(o.Insecure))
		for _, p := range o.Insecure {
			insecure = append(insecure, string(p))
		}
		notified := make([]string, 0, len(o.Notifications))
		for _, c := range o.Notifications {
			notified = append(notified, string(c))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			o.Hostname, formatStatusWithColor(status), o.DaysRemaining, formatGrade(string(o.Grade)),
			dashIfEmpty(strings.Join(insecure, ",")), dashIfEmpty(strings.Join(notified, ",")), o.Error)
	}
	_ = tw.Flush()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	addCheckFlags(checkCmd)
	checkRunCmd.Flags().Bool("json", false, "Print the batch summary as JSON")
	checkTargetCmd.Flags().Bool("json", false, "Print the outcome as JSON")

	checkCmd.AddCommand(checkRunCmd)
	checkCmd.AddCommand(checkTargetCmd)
}
