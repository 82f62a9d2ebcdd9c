package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/khanhnv2901/seca-certwatch/internal/application/notify"
	"github.com/khanhnv2901/seca-certwatch/internal/application/scheduler"
	settingsapp "github.com/khanhnv2901/seca-certwatch/internal/application/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
)

const maskedSecret = "********"

// settingsView is the printable form of the settings. Secrets are masked.
type settingsView struct {
	WarningDays         int                     `json:"warning_days"`
	EnableSecurityCheck bool                    `json:"enable_security_check"`
	CronExpression      string                  `json:"cron_expression"`
	Timezone            string                  `json:"timezone"`
	NotificationChannel settings.Channel        `json:"notification_channel"`
	Telegram            settings.TelegramConfig `json:"telegram"`
	Email               settings.EmailConfig    `json:"email"`
	LastCheck           *time.Time              `json:"last_check,omitempty"`
	NextCheck           *time.Time              `json:"next_check,omitempty"`
	Schedule            scheduler.Info          `json:"schedule"`
}

func newSettingsView(s settings.Settings, info scheduler.Info) settingsView {
	view := settingsView{
		WarningDays:         s.WarningDays,
		EnableSecurityCheck: s.EnableSecurityCheck,
		CronExpression:      s.CronExpression,
		Timezone:            s.Timezone,
		NotificationChannel: s.NotificationChannel,
		Telegram:            s.Telegram,
		Email:               s.Email,
		Schedule:            info,
	}
	if view.Telegram.BotToken != "" {
		view.Telegram.BotToken = maskedSecret
	}
	if view.Email.Password != "" {
		view.Email.Password = maskedSecret
	}
	if !s.LastCheck.IsZero() {
		view.LastCheck = &s.LastCheck
	}
	if !s.NextCheck.IsZero() {
		view.NextCheck = &s.NextCheck
	}
	return view
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change monitoring settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings and schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		services := getAppContext(cmd).Services
		s, err := services.SettingsService.Get(cmd.Context())
		if err != nil {
			return err
		}
		return writeIndentedJSON(cmd.OutOrStdout(), newSettingsView(s, services.Scheduler.Info()))
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update settings; only the flags given are changed",
	Example: `  certwatch settings set --warning-days 14 --cron "0 6 * * *" --timezone Asia/Ho_Chi_Minh
  certwatch settings set --channel telegram --telegram-token <token> --telegram-chat-id <id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, n := patchFromFlags(cmd.Flags())
		if n == 0 {
			return fmt.Errorf("no settings given; see --help for the available flags")
		}

		services := getAppContext(cmd).Services
		updated, err := services.SettingsService.Apply(cmd.Context(), patch)
		if err != nil {
			return fmt.Errorf("settings not changed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d setting(s)\n", colorSuccess("Updated"), n)
		return writeIndentedJSON(cmd.OutOrStdout(), newSettingsView(updated, services.Scheduler.Info()))
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings (clears channel credentials)",
	RunE: func(cmd *cobra.Command, args []string) error {
		services := getAppContext(cmd).Services
		s, err := services.SettingsService.Reset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s settings to defaults\n", colorSuccess("Reset"))
		return writeIndentedJSON(cmd.OutOrStdout(), newSettingsView(s, services.Scheduler.Info()))
	},
}

var settingsTestNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Send a test message through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		dispatcher, err := getAppContext(cmd).Services.Dispatcher(cmd.Context())
		if err != nil {
			return err
		}
		msg := notify.Message{
			Subject: "certwatch test notification",
			Body:    fmt.Sprintf("This is a test notification sent at %s.", time.Now().UTC().Format(time.RFC3339)),
		}
		channels := strings.Join(dispatcher.Channels(), ", ")
		if err := dispatcher.Send(cmd.Context(), msg); err != nil {
			return fmt.Errorf("test notification via %s failed: %w", channels, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s test notification via %s\n", colorSuccess("Sent"), channels)
		return nil
	},
}

// patchFromFlags builds a patch from the changed flags and reports how many were set.
func patchFromFlags(flags *pflag.FlagSet) (settingsapp.Patch, int) {
	var p settingsapp.Patch
	n := 0
	str := func(name string, dst **string) {
		if changed(flags, name) {
			v, _ := flags.GetString(name)
			*dst = &v
			n++
		}
	}
	num := func(name string, dst **int) {
		if changed(flags, name) {
			v, _ := flags.GetInt(name)
			*dst = &v
			n++
		}
	}
	if changed(flags, "security-check") {
		v, _ := flags.GetBool("security-check")
		p.EnableSecurityCheck = &v
		n++
	}
	num("warning-days", &p.WarningDays)
	str("cron", &p.CronExpression)
	str("timezone", &p.Timezone)
	str("channel", &p.NotificationChannel)
	str("telegram-token", &p.TelegramBotToken)
	str("telegram-chat-id", &p.TelegramChatID)
	str("email-host", &p.EmailHost)
	num("email-port", &p.EmailPort)
	str("email-username", &p.EmailUsername)
	str("email-password", &p.EmailPassword)
	str("email-from", &p.EmailFrom)
	str("email-to", &p.EmailTo)
	return p, n
}

func init() {
	f := settingsSetCmd.Flags()
	f.Int("warning-days", 0, "Days before expiry that trigger a warning")
	f.Bool("security-check", false, "Enable security grading")
	f.String("cron", "", "Five-field cron expression for scheduled checks")
	f.String("timezone", "", "IANA timezone for the schedule and dedup days")
	f.String("channel", "", "Notification channel: log, telegram, email or both")
	f.String("telegram-token", "", "Telegram bot token")
	f.String("telegram-chat-id", "", "Telegram chat ID")
	f.String("email-host", "", "SMTP host")
	f.Int("email-port", 0, "SMTP port")
	f.String("email-username", "", "SMTP username")
	f.String("email-password", "", "SMTP password")
	f.String("email-from", "", "Sender address")
	f.String("email-to", "", "Comma-separated recipient addresses")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsTestNotifyCmd)
}
