package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
)

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	if cfg.Check.Concurrency != constants.DefaultConcurrency {
		t.Fatalf("unexpected concurrency default: %d", cfg.Check.Concurrency)
	}
	if cfg.Check.TimeoutSecs != 10 {
		t.Fatalf("unexpected timeout default: %d", cfg.Check.TimeoutSecs)
	}
	if cfg.Security.LegacyPenalty != 10 {
		t.Fatalf("unexpected legacy penalty: %d", cfg.Security.LegacyPenalty)
	}
	if cfg.Defaults.WarningDays != 30 || cfg.Defaults.NotificationChannel != settings.ChannelLog {
		t.Fatalf("unexpected settings defaults %+v", cfg.Defaults)
	}
	if cfg.OTel.Endpoint != "" || cfg.Dedup.RedisAddr != "" {
		t.Fatal("tracing and redis should be off by default")
	}
}

func TestLoadCLIConfig(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", "/srv/certwatch")
	v.Set("defaults.warning_days", 14)
	v.Set("defaults.security_check", true)
	v.Set("defaults.cron", "0 6 * * *")
	v.Set("defaults.timezone", "Europe/Berlin")
	v.Set("notify.channel", "telegram")
	v.Set("notify.telegram.bot_token", "tok")
	v.Set("notify.telegram.chat_id", "42")
	v.Set("notify.email.port", 465)
	v.Set("check.concurrency", 8)
	v.Set("check.rate_limit", 2.5)
	v.Set("check.openssl_path", "/usr/bin/openssl")
	v.Set("security.legacy_penalty", 0)
	v.Set("dedup.redis_addr", "localhost:6379")
	v.Set("otel.endpoint", "localhost:4318")
	v.Set("otel.insecure", true)

	cfg := loadCLIConfig(v)

	d := cfg.Defaults
	if cfg.DataDir != "/srv/certwatch" || d.WarningDays != 14 || !d.EnableSecurityCheck {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if d.CronExpression != "0 6 * * *" || d.Timezone != "Europe/Berlin" || d.NotificationChannel != settings.ChannelTelegram {
		t.Fatalf("unexpected schedule defaults %+v", d)
	}
	if d.Telegram.BotToken != "tok" || d.Telegram.ChatID != "42" || d.Email.Port != 465 {
		t.Fatalf("unexpected channel defaults %+v", d)
	}
	if cfg.Check.Concurrency != 8 || cfg.Check.RateLimit != 2.5 || cfg.Check.OpenSSLPath != "/usr/bin/openssl" {
		t.Fatalf("unexpected check config %+v", cfg.Check)
	}
	if cfg.Security.LegacyPenalty != 0 {
		t.Fatalf("explicit zero penalty should be kept, got %d", cfg.Security.LegacyPenalty)
	}
	if cfg.Dedup.RedisAddr != "localhost:6379" || cfg.OTel.Endpoint != "localhost:4318" || !cfg.OTel.Insecure {
		t.Fatalf("unexpected infra config %+v / %+v", cfg.Dedup, cfg.OTel)
	}
}

func TestLoadCLIConfigIgnoresBadChannel(t *testing.T) {
	v := viper.New()
	v.Set("notify.channel", "pager")
	if got := loadCLIConfig(v).Defaults.NotificationChannel; got != settings.ChannelLog {
		t.Fatalf("invalid channel should keep default, got %s", got)
	}
}

func TestEnvOverridesConfig(t *testing.T) {
	t.Setenv("CERTWATCH_CHECK_CONCURRENCY", "3")
	t.Setenv("CERTWATCH_DATA_DIR", "/env/data")

	v := viper.New()
	initViper(v, "")
	cfg := loadCLIConfig(v)
	if cfg.Check.Concurrency != 3 || cfg.DataDir != "/env/data" {
		t.Fatalf("expected env overrides, got concurrency=%d data_dir=%s", cfg.Check.Concurrency, cfg.DataDir)
	}
}

func TestApplyCheckFlags(t *testing.T) {
	cfg := newCLIConfig()
	cfg.Check.Concurrency = 8
	cfg.Check.TimeoutSecs = 20

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", 4, "")
	flags.Float64("rate-limit", 5, "")
	flags.Int("timeout", 10, "")
	flags.String("openssl", "", "")
	if err := flags.Parse([]string{"--timeout", "3", "--openssl", "/opt/openssl"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	applyCheckFlags(flags, cfg)

	if cfg.Check.Concurrency != 8 {
		t.Fatalf("unset flag must not override config, got %d", cfg.Check.Concurrency)
	}
	if cfg.Check.TimeoutSecs != 3 || cfg.Check.OpenSSLPath != "/opt/openssl" {
		t.Fatalf("set flags should override config, got %+v", cfg.Check)
	}

	opts := cfg.containerOptions("/data")
	if opts.Timeout != 3*time.Second || opts.DataDir != "/data" || opts.Concurrency != 8 {
		t.Fatalf("unexpected container options %+v", opts)
	}
}
