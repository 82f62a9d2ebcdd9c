package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/khanhnv2901/seca-certwatch/internal/api"
	"github.com/khanhnv2901/seca-certwatch/internal/application/monitor"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// resetFlags restores every flag so consecutive runs in one process start clean.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() != "stringSlice" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command against dataDir and returns stdout.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	original := globalAppContext
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))

	err := rootCmd.Execute()
	if closeErr := shutdown(globalAppContext); closeErr != nil {
		t.Errorf("shutdown: %v", closeErr)
	}
	globalAppContext = original
	return out.String(), err
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dataDir, args...)
	if err != nil {
		t.Fatalf("certwatch %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestTargetCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "target", "add", "Example.COM", "--name", "Example")
	if !strings.Contains(out, "example.com") {
		t.Fatalf("expected canonical hostname in output: %s", out)
	}
	if _, err := runCLI(t, dir, "target", "add", "https://example.com/"); !errors.Is(err, sharedErrors.ErrTargetAlreadyExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if _, err := runCLI(t, dir, "target", "add", "bad host!"); !errors.Is(err, sharedErrors.ErrInvalidHostname) {
		t.Fatalf("expected invalid hostname, got %v", err)
	}

	var list []api.Target
	if err := json.Unmarshal([]byte(mustRun(t, dir, "target", "list", "--json")), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Example" || !list[0].NotificationsEnabled {
		t.Fatalf("unexpected list %+v", list)
	}

	out = mustRun(t, dir, "target", "list")
	if !strings.Contains(out, "HOSTNAME") || !strings.Contains(out, "never") {
		t.Fatalf("unexpected table output: %s", out)
	}

	mustRun(t, dir, "target", "disable", "example.com")
	var shown api.Target
	if err := json.Unmarshal([]byte(mustRun(t, dir, "target", "show", list[0].ID)), &shown); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if shown.NotificationsEnabled {
		t.Fatal("expected target to be disabled")
	}

	mustRun(t, dir, "target", "remove", "example.com")
	_, err := runCLI(t, dir, "target", "show", "example.com")
	var notFound *TargetNotFoundError
	if !errors.As(err, &notFound) || notFound.Ref != "example.com" {
		t.Fatalf("expected TargetNotFoundError, got %v", err)
	}
}

func TestSettingsCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "settings", "set", "--warning-days", "14", "--cron", "0 6 * * *", "--telegram-token", "secret-token")
	if !strings.Contains(out, "Updated") || !strings.Contains(out, "3 setting(s)") {
		t.Fatalf("unexpected set output: %s", out)
	}
	if strings.Contains(out, "secret-token") {
		t.Fatal("bot token must be masked")
	}

	var view settingsView
	if err := json.Unmarshal([]byte(mustRun(t, dir, "settings", "show")), &view); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if view.WarningDays != 14 || view.CronExpression != "0 6 * * *" || view.Telegram.BotToken != maskedSecret {
		t.Fatalf("unexpected settings %+v", view)
	}
	if !view.Schedule.Active || view.Schedule.Expression != "0 6 * * *" || view.NextCheck == nil {
		t.Fatalf("expected schedule info and next check, got %+v", view)
	}

	if _, err := runCLI(t, dir, "settings", "set", "--cron", "every day"); !errors.Is(err, sharedErrors.ErrInvalidCron) {
		t.Fatalf("expected ErrInvalidCron, got %v", err)
	}
	if _, err := runCLI(t, dir, "settings", "set", "--channel", "pager"); !errors.Is(err, sharedErrors.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
	if _, err := runCLI(t, dir, "settings", "set"); err == nil {
		t.Fatal("expected error without flags")
	}
	if err := json.Unmarshal([]byte(mustRun(t, dir, "settings", "show")), &view); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if view.CronExpression != "0 6 * * *" {
		t.Fatalf("rejected update must keep previous settings, got %q", view.CronExpression)
	}

	mustRun(t, dir, "settings", "reset")
	if err := json.Unmarshal([]byte(mustRun(t, dir, "settings", "show")), &view); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if view.WarningDays != 30 || view.Telegram.BotToken != "" {
		t.Fatalf("expected defaults after reset, got %+v", view)
	}
}

func TestSettingsTestNotifyUsesLogChannel(t *testing.T) {
	out := mustRun(t, t.TempDir(), "settings", "test-notify")
	if !strings.Contains(out, "Sent") || !strings.Contains(out, "log") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestCheckCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "check", "run")
	if !strings.Contains(out, "No targets to check.") {
		t.Fatalf("unexpected empty run output: %s", out)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closedAddr := l.Addr().String()
	_ = l.Close()

	mustRun(t, dir, "target", "add", closedAddr)

	var outcome monitor.CheckOutcome
	raw := mustRun(t, dir, "check", "target", closedAddr, "--json", "--timeout", "1")
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		t.Fatalf("decode outcome: %v\n%s", err, raw)
	}
	if !outcome.Failed || outcome.Status != target.StatusUnknown || outcome.Error == "" {
		t.Fatalf("unreachable target should fail as UNKNOWN, got %+v", outcome)
	}

	var summary monitor.BatchSummary
	raw = mustRun(t, dir, "check", "run", "--json", "--timeout", "1")
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, raw)
	}
	if summary.Total != 1 || summary.Failed != 1 || summary.NextCheck.IsZero() {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if _, err := runCLI(t, dir, "check", "target", "missing.example"); !errors.Is(err, sharedErrors.ErrTargetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVersionSkipsServices(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "certwatch version") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestStoresReadable(t *testing.T) {
	if err := storesReadable(nil, nil); err == nil {
		t.Fatal("expected error without services")
	}
}
