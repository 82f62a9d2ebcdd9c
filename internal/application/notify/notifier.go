package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
	"go.uber.org/zap"
)

// Notifier delivers a message over one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to every configured channel.
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewDispatcher builds the channel set selected in s. Channels missing
// credentials are skipped with a warning; the log channel is always available
// as a fallback so that events are never silently dropped.
func NewDispatcher(s settings.Settings, logger *zap.Logger, client *http.Client) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	var notifiers []Notifier
	wantTelegram := s.NotificationChannel == settings.ChannelTelegram || s.NotificationChannel == settings.ChannelBoth
	wantEmail := s.NotificationChannel == settings.ChannelEmail || s.NotificationChannel == settings.ChannelBoth

	if wantTelegram {
		if s.Telegram.Configured() {
			notifiers = append(notifiers, NewTelegramNotifier(s.Telegram, TelegramOptions{Client: client, Logger: logger}))
		} else {
			logger.Warn("telegram channel selected but bot token or chat id is missing")
		}
	}
	if wantEmail {
		if s.Email.Configured() {
			notifiers = append(notifiers, NewEmailNotifier(s.Email))
		} else {
			logger.Warn("email channel selected but smtp host, sender or recipient is missing")
		}
	}
	if len(notifiers) == 0 {
		notifiers = append(notifiers, NewLogNotifier(logger))
	}

	return &Dispatcher{notifiers: notifiers, logger: logger}
}

// NewDispatcherWith uses an explicit channel list.
func NewDispatcherWith(logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifiers: notifiers, logger: logger}
}

func (d *Dispatcher) Name() string {
	return "dispatcher"
}

// Channels lists the active channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Send delivers msg on every channel. It succeeds when at least one channel does.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if len(d.notifiers) == 0 {
		return sharedErrors.ErrNotifierNotConfigured
	}

	var errs []error
	for _, n := range d.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("channel", n.Name()),
				zap.String("condition", string(msg.Condition)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if len(errs) == len(d.notifiers) {
		return fmt.Errorf("%w: %w", sharedErrors.ErrDeliveryFailed, errors.Join(errs...))
	}
	return nil
}

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string {
	return string(settings.ChannelLog)
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info(msg.Subject,
		zap.String("condition", string(msg.Condition)),
		zap.String("message", msg.Body))
	return nil
}
