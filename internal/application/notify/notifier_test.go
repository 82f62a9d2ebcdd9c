package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
}

func TestTelegramNotifierRetriesServerErrors(t *testing.T) {
	var calls int32
	var got telegramRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(settings.TelegramConfig{BotToken: "TOKEN", ChatID: "42"}, TelegramOptions{
		BaseURL:    srv.URL,
		Logger:     zaptest.NewLogger(t),
		NewBackOff: fastBackOff,
	})
	msg := Message{Subject: "s", Body: "certificate expired", Condition: target.ConditionExpired}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if got.ChatID != "42" || got.ParseMode != "Markdown" {
		t.Fatalf("unexpected request %+v", got)
	}
	if !strings.HasPrefix(got.Text, "🚨 *SSL Certificate Expired*") || !strings.HasSuffix(got.Text, "certificate expired") {
		t.Fatalf("unexpected text %q", got.Text)
	}
}

func TestTelegramNotifierDoesNotRetryRejections(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(settings.TelegramConfig{BotToken: "T", ChatID: "1"}, TelegramOptions{
		BaseURL:    srv.URL,
		NewBackOff: fastBackOff,
	})
	err := n.Send(context.Background(), Message{Body: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestTelegramNotifierRedactsTokenFromTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	const token = "123456:SECRET-bot-token"
	n := NewTelegramNotifier(settings.TelegramConfig{BotToken: token, ChatID: "1"}, TelegramOptions{
		BaseURL:    baseURL,
		NewBackOff: fastBackOff,
	})
	err := n.Send(context.Background(), Message{Body: "x"})
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), token) || strings.Contains(err.Error(), "SECRET") {
		t.Fatalf("bot token leaked in error: %v", err)
	}
	if !strings.Contains(err.Error(), "<redacted>") {
		t.Fatalf("expected redacted URL in error, got %v", err)
	}
}

func TestTelegramTextEscapesMarkdown(t *testing.T) {
	msg := Message{Body: "Failed to check my_site (a*b.example.com): `x` [y]", Condition: target.ConditionCheckFailed}
	got := TelegramText(msg)
	want := "❌ *SSL Check Failed*\n\nFailed to check my\\_site (a\\*b.example.com): \\`x\\` \\[y]"
	if got != want {
		t.Fatalf("TelegramText = %q, want %q", got, want)
	}
}

type recordingNotifier struct {
	name string
	err  error
	sent []Message
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestDispatcherPartialFailureSucceeds(t *testing.T) {
	ok := &recordingNotifier{name: "ok"}
	bad := &recordingNotifier{name: "bad", err: errors.New("boom")}
	d := NewDispatcherWith(zaptest.NewLogger(t), bad, ok)

	if err := d.Send(context.Background(), Message{Body: "hi"}); err != nil {
		t.Fatalf("expected success when one channel delivers, got %v", err)
	}
	if len(ok.sent) != 1 || len(bad.sent) != 1 {
		t.Fatal("every channel should be attempted")
	}
}

func TestDispatcherAllFail(t *testing.T) {
	d := NewDispatcherWith(nil, &recordingNotifier{name: "a", err: errors.New("x")})
	err := d.Send(context.Background(), Message{})
	if !errors.Is(err, sharedErrors.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if err := NewDispatcherWith(nil).Send(context.Background(), Message{}); !errors.Is(err, sharedErrors.ErrNotifierNotConfigured) {
		t.Fatalf("expected ErrNotifierNotConfigured, got %v", err)
	}
}

func TestNewDispatcherChannelSelection(t *testing.T) {
	tg := settings.TelegramConfig{BotToken: "t", ChatID: "c"}
	em := settings.EmailConfig{Host: "smtp.example.com", Port: 587, From: "a@example.com", To: "b@example.com"}

	tests := []struct {
		name string
		s    settings.Settings
		want []string
	}{
		{name: "log", s: settings.Settings{NotificationChannel: settings.ChannelLog}, want: []string{"log"}},
		{name: "telegram", s: settings.Settings{NotificationChannel: settings.ChannelTelegram, Telegram: tg}, want: []string{"telegram"}},
		{name: "telegram unconfigured", s: settings.Settings{NotificationChannel: settings.ChannelTelegram}, want: []string{"log"}},
		{name: "email", s: settings.Settings{NotificationChannel: settings.ChannelEmail, Email: em}, want: []string{"email"}},
		{name: "both", s: settings.Settings{NotificationChannel: settings.ChannelBoth, Telegram: tg, Email: em}, want: []string{"telegram", "email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDispatcher(tt.s, zaptest.NewLogger(t), nil).Channels()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("channels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmailNotifierComposesMessage(t *testing.T) {
	n := NewEmailNotifier(settings.EmailConfig{
		Host: "smtp.example.com", Port: 2525, Username: "user", Password: "pw",
		From: "certwatch@example.com", To: "ops@example.com, sec@example.com",
	})
	n.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	var gotAuth smtp.Auth
	n.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, auth, to, string(msg)
		return nil
	}

	err := n.Send(context.Background(), Message{Subject: "SSL Certificate Expired\r\nBcc: x", Body: "body text"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" || gotAuth == nil {
		t.Fatalf("addr=%s auth=%v", gotAddr, gotAuth)
	}
	if len(gotTo) != 2 || gotTo[1] != "sec@example.com" {
		t.Fatalf("recipients = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: SSL Certificate Expired  Bcc: x\r\n") {
		t.Fatalf("subject header not sanitized:\n%s", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\nbody text\r\n") {
		t.Fatalf("unexpected body:\n%s", gotMsg)
	}
}

func TestEmailNotifierWrapsErrors(t *testing.T) {
	n := NewEmailNotifier(settings.EmailConfig{Host: "h", From: "f", To: "t"})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	if err := n.Send(context.Background(), Message{}); err == nil || !strings.Contains(err.Error(), "h:587") {
		t.Fatalf("expected wrapped error with default port, got %v", err)
	}
}

func TestRenderMessages(t *testing.T) {
	tgt, _ := target.NewMonitoredTarget("example.com", "Example")
	notAfter := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		condition target.Condition
		nc        NotifyContext
		subject   string
		contains  string
	}{
		{target.ConditionExpiryWarning, NotifyContext{DaysRemaining: 5, NotAfter: notAfter}, "SSL Certificate Expiring Soon", "will expire in 5 days (on 2026-04-01)"},
		{target.ConditionExpired, NotifyContext{NotAfter: notAfter}, "SSL Certificate Expired", "has expired on 2026-04-01"},
		{target.ConditionRenewed, NotifyContext{NotAfter: notAfter}, "SSL Certificate Renewed", "valid until 2026-04-01"},
		{target.ConditionCheckFailed, NotifyContext{Error: "connection refused"}, "SSL Check Failed", "Example (example.com): connection refused"},
		{target.ConditionInsecureProtocol, NotifyContext{Insecure: []target.Protocol{target.TLSv10, target.TLSv11}}, "Insecure TLS Version Detected", "TLSv1.0, TLSv1.1"},
		{target.ConditionSecurityWarning, NotifyContext{Assessment: &target.SecurityAssessment{Score: 40, Grade: target.GradeF, Findings: []target.Finding{
			{Name: target.FindingSelfSigned, Severity: target.SeverityHigh},
			{Name: target.FindingShortHSTS, Severity: target.SeverityLow},
		}}}, "Security Warning", "is F (40/100). Issues: Self-Signed Certificate"},
	}
	for _, tt := range tests {
		msg := Render(tgt, tt.condition, tt.nc)
		if msg.Subject != tt.subject {
			t.Errorf("%s: subject = %q", tt.condition, msg.Subject)
		}
		if !strings.Contains(msg.Body, tt.contains) {
			t.Errorf("%s: body %q missing %q", tt.condition, msg.Body, tt.contains)
		}
		if msg.Condition != tt.condition {
			t.Errorf("%s: condition not carried", tt.condition)
		}
	}
}
