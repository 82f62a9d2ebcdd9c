package application

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-certwatch/internal/application/monitor"
	"github.com/khanhnv2901/seca-certwatch/internal/application/notify"
	"github.com/khanhnv2901/seca-certwatch/internal/application/scheduler"
	settingsapp "github.com/khanhnv2901/seca-certwatch/internal/application/settings"
	targetapp "github.com/khanhnv2901/seca-certwatch/internal/application/target"
	"github.com/khanhnv2901/seca-certwatch/internal/checker"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"github.com/khanhnv2901/seca-certwatch/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/security"
)

// Options configure the container. Zero values select defaults except
// LegacyPenalty, where zero disables the penalty and a negative value selects
// the default.
type Options struct {
	DataDir string
	// Defaults seed the settings document before the first update.
	Defaults settings.Settings

	Concurrency   int
	RateLimit     float64
	Timeout       time.Duration
	OpenSSLPath   string
	LegacyPenalty int

	// RedisAddr enables the shared dedup ledger.
	RedisAddr string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Repositories
	TargetRepo   target.Repository
	SettingsRepo settings.Repository

	// Services
	TargetService   *targetapp.Service
	SettingsService *settingsapp.Service
	Orchestrator    *monitor.Orchestrator
	Scheduler       *scheduler.Scheduler
	Gate            *notify.Gate

	logger       *zap.Logger
	httpClient   *http.Client
	redisClient  *redis.Client
	dataDir      string
	settingsPath string

	appliedMu sync.Mutex
	applied   settings.Settings
}

// NewContainer creates a new application service container
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Defaults.CronExpression == "" {
		opts.Defaults = settings.Defaults()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: constants.SignalTimeout}
	}
	if opts.LegacyPenalty < 0 {
		opts.LegacyPenalty = constants.DefaultLegacyPenalty
	}

	// Initialize repositories
	targetRepo, err := json.NewTargetRepository(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create target repository: %w", err)
	}
	settingsRepo, err := json.NewSettingsRepository(opts.DataDir, opts.Defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings repository: %w", err)
	}

	current, err := settingsRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	loc, err := current.Location()
	if err != nil {
		opts.Logger.Warn("stored timezone is invalid, using UTC", zap.Error(err))
		loc = time.UTC
	}

	c := &Container{
		TargetRepo:   targetRepo,
		SettingsRepo: settingsRepo,
		logger:       opts.Logger,
		httpClient:   opts.HTTPClient,
		dataDir:      opts.DataDir,
		settingsPath: settingsRepo.Path(),
		applied:      scheduleFields(current),
	}

	var ledger notify.Ledger = notify.NewMemoryLedger(0, 0)
	if opts.RedisAddr != "" {
		redisLedger, client, err := notify.DialRedisLedger(ctx, opts.RedisAddr, 0)
		if err != nil {
			opts.Logger.Warn("redis dedup ledger unavailable, using in-memory ledger", zap.Error(err))
		} else {
			ledger = redisLedger
			c.redisClient = client
		}
	}
	c.Gate = notify.NewGate(notify.GateConfig{Ledger: ledger, Location: loc, Logger: opts.Logger})

	// Initialize services
	orchestrator, err := monitor.NewOrchestrator(monitor.Config{
		Targets:  targetRepo,
		Settings: settingsRepo,
		Retriever: checker.NewRetriever(checker.RetrieverConfig{
			Timeout:     opts.Timeout,
			OpenSSLPath: opts.OpenSSLPath,
			Logger:      opts.Logger,
		}),
		Prober: checker.NewProber(checker.ProberConfig{
			Timeout:     opts.Timeout,
			OpenSSLPath: opts.OpenSSLPath,
			Logger:      opts.Logger,
		}),
		Grader:      checker.NewGrader(opts.LegacyPenalty, nil),
		Signals:     checker.NewSignalCollector(opts.Timeout, opts.Logger),
		Gate:        c.Gate,
		Notifier:    notify.NewDispatcher(current, opts.Logger, opts.HTTPClient),
		Concurrency: opts.Concurrency,
		RateLimit:   opts.RateLimit,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	c.Orchestrator = orchestrator

	lockPath, err := security.DocumentPath(opts.DataDir, constants.BatchLockFile)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare batch lock: %w", err)
	}
	c.Scheduler = scheduler.New(orchestrator, opts.Logger, scheduler.WithBatchLock(flock.New(lockPath)))
	if err := c.Scheduler.Schedule(current.CronExpression, current.Timezone); err != nil {
		opts.Logger.Warn("stored schedule is invalid, recurring checks disabled", zap.Error(err))
	}

	c.TargetService = targetapp.NewService(targetRepo)
	c.SettingsService = settingsapp.NewService(settingsRepo)
	c.SettingsService.OnChange(c.applySettings)

	return c, nil
}

// applySettings rebuilds the components derived from settings.
func (c *Container) applySettings(s settings.Settings) {
	c.appliedMu.Lock()
	c.applied = scheduleFields(s)
	c.appliedMu.Unlock()

	c.Orchestrator.SetNotifier(notify.NewDispatcher(s, c.logger, c.httpClient))
	if loc, err := s.Location(); err == nil {
		c.Gate.SetLocation(loc)
	}
	if err := c.Scheduler.Schedule(s.CronExpression, s.Timezone); err != nil {
		c.logger.Warn("failed to reschedule checks", zap.Error(err))
	}
}

// RefreshSettings reloads the settings document and applies it when it differs
// from what this container last applied. It reports whether anything changed.
// Run bookkeeping (lastCheck, nextCheck) alone never counts as a change.
func (c *Container) RefreshSettings(ctx context.Context) (bool, error) {
	s, err := c.SettingsRepo.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reload settings: %w", err)
	}

	c.appliedMu.Lock()
	unchanged := c.applied == scheduleFields(s)
	c.appliedMu.Unlock()
	if unchanged {
		return false, nil
	}
	if err := s.Validate(); err != nil {
		return false, fmt.Errorf("ignoring invalid settings document: %w", err)
	}

	c.logger.Info("settings changed on disk, reapplying")
	c.applySettings(s)
	return true, nil
}

// WatchSettings applies settings written by other processes, such as the CLI,
// until ctx ends. The data directory is watched because documents are replaced
// by rename.
func (c *Container) WatchSettings(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.settingsPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", c.dataDir, err)
	}

	go func() {
		defer watcher.Close()
		name := filepath.Base(c.settingsPath)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if _, err := c.RefreshSettings(ctx); err != nil {
					c.logger.Warn("failed to apply settings change", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("settings watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// scheduleFields drops run bookkeeping so that only user-editable fields are compared.
func scheduleFields(s settings.Settings) settings.Settings {
	s.LastCheck = time.Time{}
	s.NextCheck = time.Time{}
	return s
}

// Dispatcher builds a notifier for the current settings, used for test notifications.
func (c *Container) Dispatcher(ctx context.Context) (*notify.Dispatcher, error) {
	s, err := c.SettingsService.Get(ctx)
	if err != nil {
		return nil, err
	}
	return notify.NewDispatcher(s, c.logger, c.httpClient), nil
}

// Close stops the scheduler and releases external connections.
func (c *Container) Close() error {
	c.Scheduler.Stop()
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	return nil
}
