package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
	"github.com/robfig/cron/v3"
)

// Channel selects where notifications are delivered.
type Channel string

const (
	ChannelLog      Channel = "log"
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelBoth     Channel = "both"
)

// ParseChannel validates a channel name.
func ParseChannel(raw string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(raw))); c {
	case ChannelLog, ChannelTelegram, ChannelEmail, ChannelBoth:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", sharedErrors.ErrInvalidChannel, raw)
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
}

// Configured reports whether both credentials are present.
func (c TelegramConfig) Configured() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// EmailConfig holds SMTP delivery parameters.
type EmailConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// Configured reports whether enough is set to attempt delivery.
func (c EmailConfig) Configured() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

// Settings are the operator-tunable parameters of the check engine.
type Settings struct {
	WarningDays         int            `json:"warning_days"`
	EnableSecurityCheck bool           `json:"enable_security_check"`
	CronExpression      string         `json:"cron_expression"`
	Timezone            string         `json:"timezone"`
	NotificationChannel Channel        `json:"notification_channel"`
	Telegram            TelegramConfig `json:"telegram"`
	Email               EmailConfig    `json:"email"`
	LastCheck           time.Time      `json:"last_check,omitempty"`
	NextCheck           time.Time      `json:"next_check,omitempty"`
}

// Defaults returns the settings used before any update.
func Defaults() Settings {
	return Settings{
		WarningDays:         constants.DefaultWarningDays,
		EnableSecurityCheck: false,
		CronExpression:      constants.DefaultCronExpression,
		Timezone:            constants.DefaultTimezone,
		NotificationChannel: ChannelLog,
		Email:               EmailConfig{Port: 587},
	}
}

// Validate checks every field and returns the first problem found.
func (s Settings) Validate() error {
	if s.WarningDays <= 0 {
		return fmt.Errorf("%w: warning days must be positive, got %d", sharedErrors.ErrInvalidSettings, s.WarningDays)
	}
	if _, err := ParseSchedule(s.CronExpression); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	if _, err := ParseChannel(string(s.NotificationChannel)); err != nil {
		return err
	}
	if s.Email.Port < 0 || s.Email.Port > 65535 {
		return fmt.Errorf("%w: email port %d out of range", sharedErrors.ErrInvalidSettings, s.Email.Port)
	}
	return nil
}

// Location loads the configured timezone, defaulting to UTC when empty.
func (s Settings) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", sharedErrors.ErrInvalidTimezone, tz, err)
	}
	return loc, nil
}

// NextRun computes the next cron activation after from in the configured timezone.
func (s Settings) NextRun(from time.Time) (time.Time, error) {
	sched, err := ParseSchedule(s.CronExpression)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := s.Location()
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.In(loc)), nil
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: expression is empty", sharedErrors.ErrInvalidCron)
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", sharedErrors.ErrInvalidCron, expr, err)
	}
	return sched, nil
}
