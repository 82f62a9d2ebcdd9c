package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
)

// Listener is told about every accepted settings change.
type Listener func(s settings.Settings)

// Patch holds optional field updates. Nil fields are left unchanged.
type Patch struct {
	WarningDays         *int
	EnableSecurityCheck *bool
	CronExpression      *string
	Timezone            *string
	NotificationChannel *string
	TelegramBotToken    *string
	TelegramChatID      *string
	EmailHost           *string
	EmailPort           *int
	EmailUsername       *string
	EmailPassword       *string
	EmailFrom           *string
	EmailTo             *string
}

// Service validates and persists settings and fans changes out to listeners
type Service struct {
	repo settings.Repository
	now  func() time.Time

	mu        sync.Mutex
	listeners []Listener
}

// NewService creates a new settings service
func NewService(repo settings.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// OnChange registers fn to run after each successful update.
func (s *Service) OnChange(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Get returns the current settings
func (s *Service) Get(ctx context.Context) (settings.Settings, error) {
	current, err := s.repo.Load(ctx)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return current, nil
}

// Update replaces the settings after validation. Run bookkeeping is carried
// over from the stored document and nextCheck is recomputed.
// An invalid update leaves the stored settings untouched.
func (s *Service) Update(ctx context.Context, next settings.Settings) (settings.Settings, error) {
	return s.update(ctx, func(settings.Settings) (settings.Settings, error) {
		return next, nil
	})
}

// Apply merges patch into the current settings and saves the result.
func (s *Service) Apply(ctx context.Context, patch Patch) (settings.Settings, error) {
	return s.update(ctx, func(current settings.Settings) (settings.Settings, error) {
		next := current
		if patch.NotificationChannel != nil {
			ch, err := settings.ParseChannel(*patch.NotificationChannel)
			if err != nil {
				return current, err
			}
			next.NotificationChannel = ch
		}
		setInt(&next.WarningDays, patch.WarningDays)
		setBool(&next.EnableSecurityCheck, patch.EnableSecurityCheck)
		setString(&next.CronExpression, patch.CronExpression)
		setString(&next.Timezone, patch.Timezone)
		setString(&next.Telegram.BotToken, patch.TelegramBotToken)
		setString(&next.Telegram.ChatID, patch.TelegramChatID)
		setString(&next.Email.Host, patch.EmailHost)
		setInt(&next.Email.Port, patch.EmailPort)
		setString(&next.Email.Username, patch.EmailUsername)
		setString(&next.Email.Password, patch.EmailPassword)
		setString(&next.Email.From, patch.EmailFrom)
		setString(&next.Email.To, patch.EmailTo)
		return next, nil
	})
}

// Reset restores the default settings. Channel credentials are cleared.
func (s *Service) Reset(ctx context.Context) (settings.Settings, error) {
	return s.update(ctx, func(settings.Settings) (settings.Settings, error) {
		return settings.Defaults(), nil
	})
}

// update derives the next document from the stored one inside a single
// repository update, so run bookkeeping written by a finishing batch is
// never lost and a batch never overwrites a newer schedule.
func (s *Service) update(ctx context.Context, derive func(current settings.Settings) (settings.Settings, error)) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.repo.Update(ctx, func(doc *settings.Settings) error {
		next, err := derive(*doc)
		if err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.LastCheck = doc.LastCheck
		next.NextCheck = time.Time{}
		if nextRun, err := next.NextRun(s.now()); err == nil {
			next.NextCheck = nextRun
		}
		*doc = next
		return nil
	})
	if err != nil {
		return settings.Settings{}, err
	}

	for _, fn := range s.listeners {
		fn(saved)
	}
	return saved, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
