package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// NotifyContext carries the per-check values a condition is evaluated against
// and rendered with.
type NotifyContext struct {
	DaysRemaining int
	WarningDays   int
	NotAfter      time.Time
	Insecure      []target.Protocol
	Error         string
	Assessment    *target.SecurityAssessment
}

// Key identifies one notification slot. At most one notification is sent per key.
type Key struct {
	TargetID  string
	Condition target.Condition
	Bucket    string
	Day       string
}

func (k Key) String() string {
	return fmt.Sprintf("certwatch:notify:%s:%s:%s:%s", k.TargetID, k.Condition, k.Bucket, k.Day)
}

// GateConfig wires a Gate.
type GateConfig struct {
	Ledger   Ledger
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// Gate suppresses repeated notifications for the same condition within a
// calendar day. Expiry warnings are further bucketed by days remaining.
type Gate struct {
	ledger Ledger
	now    func() time.Time
	logger *zap.Logger

	mu  sync.RWMutex
	loc *time.Location
}

// NewGate builds a gate. A nil ledger falls back to an in-memory one.
func NewGate(cfg GateConfig) *Gate {
	if cfg.Ledger == nil {
		cfg.Ledger = NewMemoryLedger(0, 0)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Gate{ledger: cfg.Ledger, now: cfg.Now, logger: cfg.Logger, loc: cfg.Location}
}

// SetLocation changes the timezone calendar days are computed in.
func (g *Gate) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	g.mu.Lock()
	g.loc = loc
	g.mu.Unlock()
}

// Key returns the dedup slot for condition on t at the current time.
func (g *Gate) Key(t *target.MonitoredTarget, condition target.Condition, nc NotifyContext) Key {
	g.mu.RLock()
	loc := g.loc
	g.mu.RUnlock()

	return Key{
		TargetID:  t.ID(),
		Condition: condition,
		Bucket:    bucketFor(condition, nc),
		Day:       g.now().In(loc).Format(dayLayout),
	}
}

// ShouldNotify reports whether condition may be announced for t now.
func (g *Gate) ShouldNotify(ctx context.Context, t *target.MonitoredTarget, condition target.Condition, nc NotifyContext) bool {
	if t == nil || !condition.Valid() {
		return false
	}
	if condition == target.ConditionExpiryWarning && nc.DaysRemaining > nc.WarningDays {
		return false
	}

	key := g.Key(t, condition, nc)
	if t.HasNotified(condition, key.Bucket, key.Day) {
		return false
	}

	seen, err := g.ledger.Seen(ctx, key.String())
	if err != nil {
		// The target history above still guards against repeats.
		g.logger.Warn("dedup ledger lookup failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return true
	}
	return !seen
}

// RecordSent marks the slot as used in both the ledger and the target history
// and returns the record appended to t.
// It is called whether or not delivery succeeded so that a failing channel is
// not retried until the next slot.
func (g *Gate) RecordSent(ctx context.Context, t *target.MonitoredTarget, condition target.Condition, nc NotifyContext, msg Message, delivered bool) target.NotificationRecord {
	key := g.Key(t, condition, nc)

	if err := g.ledger.Mark(ctx, key.String()); err != nil {
		g.logger.Warn("failed to mark dedup ledger",
			zap.String("key", key.String()),
			zap.Error(err))
	}

	rec := target.NotificationRecord{
		Condition:     condition,
		Timestamp:     g.now().UTC(),
		DaysRemaining: nc.DaysRemaining,
		Bucket:        key.Bucket,
		Day:           key.Day,
		Message:       msg.Body,
		Delivered:     delivered,
	}
	t.RecordNotification(rec)
	return rec
}

func bucketFor(condition target.Condition, nc NotifyContext) string {
	if condition == target.ConditionExpiryWarning {
		return strconv.Itoa(nc.DaysRemaining)
	}
	return ""
}
