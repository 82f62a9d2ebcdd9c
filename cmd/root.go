package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/khanhnv2901/seca-certwatch/internal/application"
	consts "github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
)

var cfgFile string
var dataDirFlag string
var logLevel string

var rootCmd = &cobra.Command{
	Use:           "certwatch",
	Short:         "Monitor TLS certificates, protocol support and security posture of your hosts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		initViper(v, cfgFile)
		if err := v.ReadInConfig(); err != nil && cfgFile != "" {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}

		cfg := loadCLIConfig(v)
		applyCheckFlags(cmd.Flags(), cfg)

		dataDir, err := resolveDataDir(cfg)
		if err != nil {
			return err
		}

		logger, err := newLogger(logLevel)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		appCtx := &AppContext{
			Logger:  logger.Sugar(),
			DataDir: dataDir,
			Config:  cfg,
		}
		if !skipsServices(cmd) {
			opts := cfg.containerOptions(dataDir)
			opts.Logger = logger
			services, err := application.NewContainer(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			appCtx.Services = services
		}

		appCtx.Logger.Debugw("initialized", "data_dir", dataDir)
		storeAppContext(cmd, appCtx)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if closeErr := shutdown(globalAppContext); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(1)
	}
}

// shutdown stops the scheduler, releases connections and flushes the logger.
// It runs after every command, including ones that failed.
func shutdown(appCtx *AppContext) error {
	if appCtx == nil {
		return nil
	}
	var err error
	if appCtx.Services != nil {
		err = appCtx.Services.Close()
	}
	if appCtx.Logger != nil {
		_ = appCtx.Logger.Sync()
	}
	return err
}

// skipsServices reports whether cmd runs without opening the data directory.
func skipsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}

// resolveDataDir picks --data-dir, then data_dir from config or env, then the
// per-OS default location.
func resolveDataDir(cfg *CLIConfig) (string, error) {
	dir := dataDirFlag
	if dir == "" {
		dir = cfg.DataDir
	}
	if dir == "" {
		return getDataDir()
	}
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.certwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "directory holding targets.json and settings.json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
