package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/seca-certwatch/internal/application"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
)

const (
	configName = ".certwatch"
	envPrefix  = "CERTWATCH"
	jsonPrefix = ""
	jsonIndent = "  "
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	DataDir  string
	Defaults settings.Settings
	Check    CheckRuntimeConfig
	Security SecurityConfig
	Dedup    DedupConfig
	OTel     OTelConfig
}

// CheckRuntimeConfig tunes the retriever, prober and batch pacing.
type CheckRuntimeConfig struct {
	Concurrency int
	RateLimit   float64
	TimeoutSecs int
	OpenSSLPath string
}

// SecurityConfig tunes the grader.
type SecurityConfig struct {
	LegacyPenalty int
}

// DedupConfig selects the notification dedup ledger.
type DedupConfig struct {
	RedisAddr string
}

// OTelConfig configures trace export. An empty endpoint disables it.
type OTelConfig struct {
	Endpoint string
	Insecure bool
}

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: settings.Defaults(),
		Check: CheckRuntimeConfig{
			Concurrency: constants.DefaultConcurrency,
			RateLimit:   constants.DefaultRateLimit,
			TimeoutSecs: int(constants.RetrieveTimeout / time.Second),
		},
		Security: SecurityConfig{LegacyPenalty: constants.DefaultLegacyPenalty},
	}
}

// initViper wires the config file and CERTWATCH_* environment variables.
func initViper(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("$HOME")
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadCLIConfig reads every known key from v over the built-in defaults.
func loadCLIConfig(v *viper.Viper) *CLIConfig {
	cfg := newCLIConfig()
	cfg.DataDir = v.GetString("data_dir")

	d := &cfg.Defaults
	setIntFromViper(v, "defaults.warning_days", &d.WarningDays)
	setBoolFromViper(v, "defaults.security_check", &d.EnableSecurityCheck)
	setStringFromViper(v, "defaults.cron", &d.CronExpression)
	setStringFromViper(v, "defaults.timezone", &d.Timezone)
	if v.IsSet("notify.channel") {
		if ch, err := settings.ParseChannel(v.GetString("notify.channel")); err == nil {
			d.NotificationChannel = ch
		}
	}
	setStringFromViper(v, "notify.telegram.bot_token", &d.Telegram.BotToken)
	setStringFromViper(v, "notify.telegram.chat_id", &d.Telegram.ChatID)
	setStringFromViper(v, "notify.email.host", &d.Email.Host)
	setIntFromViper(v, "notify.email.port", &d.Email.Port)
	setStringFromViper(v, "notify.email.username", &d.Email.Username)
	setStringFromViper(v, "notify.email.password", &d.Email.Password)
	setStringFromViper(v, "notify.email.from", &d.Email.From)
	setStringFromViper(v, "notify.email.to", &d.Email.To)

	setIntFromViper(v, "check.concurrency", &cfg.Check.Concurrency)
	if v.IsSet("check.rate_limit") {
		cfg.Check.RateLimit = v.GetFloat64("check.rate_limit")
	}
	setIntFromViper(v, "check.timeout_secs", &cfg.Check.TimeoutSecs)
	setStringFromViper(v, "check.openssl_path", &cfg.Check.OpenSSLPath)
	setIntFromViper(v, "security.legacy_penalty", &cfg.Security.LegacyPenalty)
	setStringFromViper(v, "dedup.redis_addr", &cfg.Dedup.RedisAddr)
	setStringFromViper(v, "otel.endpoint", &cfg.OTel.Endpoint)
	setBoolFromViper(v, "otel.insecure", &cfg.OTel.Insecure)
	return cfg
}

// applyCheckFlags lets explicitly set check flags override the config file.
func applyCheckFlags(flags *pflag.FlagSet, cfg *CLIConfig) {
	overrideInt(flags, "concurrency", &cfg.Check.Concurrency)
	overrideFloat(flags, "rate-limit", &cfg.Check.RateLimit)
	overrideInt(flags, "timeout", &cfg.Check.TimeoutSecs)
	overrideString(flags, "openssl", &cfg.Check.OpenSSLPath)
}

// containerOptions translates the CLI config into container options.
func (c *CLIConfig) containerOptions(dataDir string) application.Options {
	return application.Options{
		DataDir:       dataDir,
		Defaults:      c.Defaults,
		Concurrency:   c.Check.Concurrency,
		RateLimit:     c.Check.RateLimit,
		Timeout:       time.Duration(c.Check.TimeoutSecs) * time.Second,
		OpenSSLPath:   c.Check.OpenSSLPath,
		LegacyPenalty: c.Security.LegacyPenalty,
		RedisAddr:     c.Dedup.RedisAddr,
	}
}

func setStringFromViper(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setIntFromViper(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setBoolFromViper(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func changed(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

func overrideInt(flags *pflag.FlagSet, name string, dst *int) {
	if changed(flags, name) {
		*dst, _ = flags.GetInt(name)
	}
}

func overrideFloat(flags *pflag.FlagSet, name string, dst *float64) {
	if changed(flags, name) {
		*dst, _ = flags.GetFloat64(name)
	}
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if changed(flags, name) {
		*dst, _ = flags.GetString(name)
	}
}

// addCheckFlags registers the runtime flags shared by check and serve.
func addCheckFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Int("concurrency", constants.DefaultConcurrency, "Targets checked in parallel")
	cmd.PersistentFlags().Float64("rate-limit", constants.DefaultRateLimit, "Handshakes started per second (0 = unlimited)")
	cmd.PersistentFlags().Int("timeout", int(constants.RetrieveTimeout/time.Second), "Per-connection timeout in seconds")
	cmd.PersistentFlags().String("openssl", "", "Path to the openssl binary used as a fallback (empty = disabled)")
}
