// Package monitor runs certificate checks against registered targets and
// turns their results into state updates and notifications.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/seca-certwatch/internal/application/notify"
	"github.com/khanhnv2901/seca-certwatch/internal/checker"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"github.com/khanhnv2901/seca-certwatch/internal/metrics"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

const tracerName = "certwatch/monitor"

// CertificateRetriever fetches the leaf certificate of a target.
type CertificateRetriever interface {
	Retrieve(ctx context.Context, info checker.TargetInfo) target.CertificateSnapshot
}

// ProtocolProber enumerates the protocol versions a target accepts.
type ProtocolProber interface {
	Probe(ctx context.Context, info checker.TargetInfo) target.ProtocolReport
}

// SecurityGrader scores a completed check.
type SecurityGrader interface {
	Assess(snap target.CertificateSnapshot, report target.ProtocolReport, signals *checker.Signals) target.SecurityAssessment
}

// SignalSource collects HTTP response signals used by the grader.
type SignalSource interface {
	Collect(ctx context.Context, info checker.TargetInfo) *checker.Signals
}

// Sender delivers rendered notifications.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Config wires an Orchestrator. Targets, Settings, Retriever, Prober and Grader are required.
type Config struct {
	Targets   target.Repository
	Settings  settings.Repository
	Retriever CertificateRetriever
	Prober    ProtocolProber
	Grader    SecurityGrader
	Signals   SignalSource
	Gate      *notify.Gate
	Notifier  Sender

	// Concurrency bounds how many targets are checked at once.
	Concurrency int
	// RateLimit caps target checks started per second. Zero disables pacing.
	RateLimit float64

	Logger *zap.Logger
	Now    func() time.Time
}

// Orchestrator runs checks for single targets and whole batches.
type Orchestrator struct {
	targets   target.Repository
	settings  settings.Repository
	retriever CertificateRetriever
	prober    ProtocolProber
	grader    SecurityGrader
	signals   SignalSource
	gate      *notify.Gate

	concurrency int
	limiter     *rate.Limiter
	inflight    singleflight.Group

	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	notifier Sender
}

// NewOrchestrator validates cfg and returns an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Targets == nil:
		return nil, fmt.Errorf("target repository is required")
	case cfg.Settings == nil:
		return nil, fmt.Errorf("settings repository is required")
	case cfg.Retriever == nil || cfg.Prober == nil || cfg.Grader == nil:
		return nil, fmt.Errorf("retriever, prober and grader are required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = constants.DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Gate == nil {
		cfg.Gate = notify.NewGate(notify.GateConfig{Now: cfg.Now, Logger: cfg.Logger})
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Orchestrator{
		targets:     cfg.Targets,
		settings:    cfg.Settings,
		retriever:   cfg.Retriever,
		prober:      cfg.Prober,
		grader:      cfg.Grader,
		signals:     cfg.Signals,
		gate:        cfg.Gate,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      cfg.Logger,
		now:         cfg.Now,
		notifier:    cfg.Notifier,
	}, nil
}

// SetNotifier swaps the notification sender. A nil sender disables delivery.
func (o *Orchestrator) SetNotifier(n Sender) {
	o.mu.Lock()
	o.notifier = n
	o.mu.Unlock()
}

func (o *Orchestrator) currentNotifier() Sender {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.notifier
}

// RunCheck checks a single target. The error is reserved for lookup and
// persistence failures; check failures are reported in the outcome.
func (o *Orchestrator) RunCheck(ctx context.Context, id string) (CheckOutcome, error) {
	s, err := o.loadSettings(ctx)
	if err != nil {
		return CheckOutcome{}, err
	}
	return o.checkByID(ctx, id, s)
}

// RunAllChecks checks every registered target and records the run in settings.
// It never fails; per-target problems are reflected in the summary.
func (o *Orchestrator) RunAllChecks(ctx context.Context) BatchSummary {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "RunAllChecks")
	defer span.End()

	summary := BatchSummary{StartedAt: o.now()}

	s, err := o.loadSettings(ctx)
	if err != nil {
		o.logger.Warn("failed to load settings, using defaults", zap.Error(err))
		s = settings.Defaults()
	}

	targets, err := o.targets.FindAll(ctx)
	if err != nil {
		o.logger.Error("failed to list targets", zap.Error(err))
		span.RecordError(err)
		summary.FinishedAt = o.now()
		return summary
	}

	outcomes := make([]CheckOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			if err := o.limiter.Wait(ctx); err != nil {
				outcomes[i] = failedOutcome(t, err.Error())
				return nil
			}
			outcome, err := o.checkByID(ctx, t.ID(), s)
			switch {
			case errors.Is(err, sharedErrors.ErrTargetNotFound):
				outcome = skippedOutcome(t)
				outcome.Error = "target removed during check"
			case err != nil:
				outcome = failedOutcome(t, err.Error())
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		summary.add(outcome)
	}
	summary.FinishedAt = o.now()
	summary.NextCheck = o.recordRun(ctx, summary.StartedAt, summary.FinishedAt)

	metrics.BatchDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	span.SetAttributes(
		attribute.Int("batch.total", summary.Total),
		attribute.Int("batch.failed", summary.Failed),
	)
	o.logger.Info("batch completed",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("warned", summary.Warned),
		zap.Int("expired", summary.Expired),
		zap.Int("insecure_protocol", summary.InsecureProtocol),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))

	return summary
}

// checkByID collapses concurrent checks of one target into a single run.
// The check runs on a loaded copy; only its result and notification records
// are merged into the stored target, so edits made while the check was in
// flight survive and a target deleted meanwhile stays deleted.
func (o *Orchestrator) checkByID(ctx context.Context, id string, s settings.Settings) (CheckOutcome, error) {
	v, err, _ := o.inflight.Do(id, func() (interface{}, error) {
		t, err := o.targets.FindByID(ctx, id)
		if err != nil {
			return CheckOutcome{}, fmt.Errorf("failed to load target %s: %w", id, err)
		}
		if !t.NotificationsEnabled() {
			metrics.ChecksTotal.WithLabelValues("SKIPPED").Inc()
			return skippedOutcome(t), nil
		}

		outcome, result, records := o.checkTarget(ctx, t, s)
		_, err = o.targets.Update(ctx, id, func(stored *target.MonitoredTarget) error {
			stored.ApplyCheck(result)
			for _, rec := range records {
				stored.RecordNotification(rec)
			}
			return nil
		})
		if err != nil {
			return outcome, fmt.Errorf("failed to save target %s: %w", id, err)
		}
		return outcome, nil
	})
	outcome, _ := v.(CheckOutcome)
	return outcome, err
}

// checkTarget performs the network work for t, applies the result and sends
// notifications. It returns the result and the notification records so that
// the caller can merge them into the stored target. A panic is converted into
// a failed UNKNOWN result.
func (o *Orchestrator) checkTarget(ctx context.Context, t *target.MonitoredTarget, s settings.Settings) (outcome CheckOutcome, result target.CheckResult, records []target.NotificationRecord) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CheckTarget",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("target.hostname", t.Hostname())))
	defer span.End()

	started := o.now()
	log := o.logger.With(zap.String("target", t.Hostname()), zap.String("target_id", t.ID()))

	defer func() {
		if r := recover(); r != nil {
			log.Error("check panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			reason := fmt.Sprintf("internal error: %v", r)
			checkedAt := o.now()
			failed := target.FailedSnapshot(reason, checkedAt)
			result = target.CheckResult{CheckedAt: checkedAt, Status: target.StatusUnknown, Certificate: &failed, Error: reason}
			t.ApplyCheck(result)
			outcome = failedOutcome(t, reason)
			outcome.Duration = o.now().Sub(started)
			metrics.ChecksTotal.WithLabelValues(string(target.StatusUnknown)).Inc()
			span.SetStatus(codes.Error, "panic")
		}
	}()

	previous := t.Certificate()
	result = o.inspect(ctx, t, s)
	t.ApplyCheck(result)

	outcome = outcomeFor(t, result)
	records = o.dispatch(ctx, t, previous, result, s)
	for _, rec := range records {
		outcome.Notifications = append(outcome.Notifications, rec.Condition)
	}
	outcome.Duration = o.now().Sub(started)

	metrics.ChecksTotal.WithLabelValues(string(result.Status)).Inc()
	if result.Certificate != nil && result.Certificate.Retrieved() {
		metrics.DaysRemaining.WithLabelValues(t.Hostname()).Set(float64(result.Certificate.DaysRemaining))
	}
	span.SetAttributes(attribute.String("check.status", string(result.Status)))
	if outcome.Failed {
		span.SetStatus(codes.Error, outcome.Error)
		log.Warn("check failed", zap.String("error", outcome.Error))
	} else {
		log.Debug("check completed",
			zap.String("status", string(result.Status)),
			zap.Int("days_remaining", outcome.DaysRemaining))
	}
	return outcome, result, records
}

// inspect runs retrieval, probing and grading without touching the target.
func (o *Orchestrator) inspect(ctx context.Context, t *target.MonitoredTarget, s settings.Settings) target.CheckResult {
	checkedAt := o.now()

	info, err := checker.ParseTarget(t.Hostname())
	if err != nil {
		failed := target.FailedSnapshot(err.Error(), checkedAt)
		return target.CheckResult{CheckedAt: checkedAt, Status: target.StatusUnknown, Certificate: &failed, Error: err.Error()}
	}

	snap := o.retriever.Retrieve(ctx, info)
	if !snap.Retrieved() {
		reason := snap.Error
		if reason == "" {
			reason = "no certificate data returned"
			snap.Error = reason
		}
		return target.CheckResult{CheckedAt: checkedAt, Status: target.StatusUnknown, Certificate: &snap, Error: reason}
	}

	report := o.prober.Probe(ctx, info)
	result := target.CheckResult{
		CheckedAt:   checkedAt,
		Status:      target.DeriveStatus(&snap, s.WarningDays),
		Certificate: &snap,
		Protocols:   &report,
	}

	if s.EnableSecurityCheck {
		var signals *checker.Signals
		if o.signals != nil {
			signals = o.signals.Collect(ctx, info)
		}
		assessment := o.grader.Assess(snap, report, signals)
		result.Assessment = &assessment
	}
	return result
}

// dispatch evaluates conditions and sends whatever the gate lets through.
// It returns the records of every attempted delivery in send order.
func (o *Orchestrator) dispatch(ctx context.Context, t *target.MonitoredTarget, previous *target.CertificateSnapshot, result target.CheckResult, s settings.Settings) []target.NotificationRecord {
	sender := o.currentNotifier()
	if sender == nil {
		return nil
	}
	if loc, err := s.Location(); err == nil {
		o.gate.SetLocation(loc)
	}

	var sent []target.NotificationRecord
	for _, ev := range DetectConditions(previous, result, s) {
		if !o.gate.ShouldNotify(ctx, t, ev.Condition, ev.Context) {
			metrics.NotificationsSuppressed.WithLabelValues(string(ev.Condition)).Inc()
			continue
		}

		msg := notify.Render(t, ev.Condition, ev.Context)
		err := sender.Send(ctx, msg)
		delivered := err == nil
		if err != nil {
			o.logger.Warn("failed to deliver notification",
				zap.String("target", t.Hostname()),
				zap.String("condition", string(ev.Condition)),
				zap.Error(err))
		}
		rec := o.gate.RecordSent(ctx, t, ev.Condition, ev.Context, msg, delivered)
		metrics.NotificationsTotal.WithLabelValues(string(ev.Condition), fmt.Sprintf("%t", delivered)).Inc()
		sent = append(sent, rec)
	}
	return sent
}

func (o *Orchestrator) loadSettings(ctx context.Context) (settings.Settings, error) {
	s, err := o.settings.Load(ctx)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

// recordRun stores lastCheck and nextCheck in one settings update so that a
// change made during the batch is kept.
func (o *Orchestrator) recordRun(ctx context.Context, started, finished time.Time) time.Time {
	saved, err := o.settings.Update(ctx, func(s *settings.Settings) error {
		s.LastCheck = started
		next, err := s.NextRun(finished)
		if err != nil {
			o.logger.Warn("failed to compute next check", zap.Error(err))
			return nil
		}
		s.NextCheck = next
		return nil
	})
	if err != nil {
		o.logger.Warn("failed to record batch run", zap.Error(err))
		return time.Time{}
	}
	return saved.NextCheck
}
