package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"go.uber.org/zap"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramOptions tunes transport details. Zero values are replaced with defaults.
type TelegramOptions struct {
	BaseURL    string
	Client     *http.Client
	Logger     *zap.Logger
	NewBackOff func() backoff.BackOff
}

// TelegramNotifier posts Markdown messages through the Bot API.
type TelegramNotifier struct {
	cfg        settings.TelegramConfig
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

type telegramRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegramNotifier(cfg settings.TelegramConfig, opts TelegramOptions) *TelegramNotifier {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTelegramBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 30 * time.Second
			return bo
		}
	}
	return &TelegramNotifier{
		cfg:        cfg,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     opts.Client,
		logger:     opts.Logger,
		newBackOff: opts.NewBackOff,
	}
}

func (n *TelegramNotifier) Name() string {
	return string(settings.ChannelTelegram)
}

// Send retries transport errors and 5xx/429 responses; other API rejections are final.
func (n *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(telegramRequest{
		ChatID:    n.cfg.ChatID,
		Text:      TelegramText(msg),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.cfg.BotToken)

	attempt := 0
	op := func() error {
		attempt++
		return n.post(ctx, endpoint, payload)
	}
	notifyRetry := func(err error, wait time.Duration) {
		n.logger.Debug("retrying telegram delivery",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(op, backoff.WithContext(n.newBackOff(), ctx), notifyRetry)
}

// redact strips the bot token from the request URL carried by transport errors.
func (n *TelegramNotifier) redact(err error) error {
	var ue *url.Error
	if n.cfg.BotToken != "" && errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, n.cfg.BotToken, "<redacted>")
	}
	return err
}

func (n *TelegramNotifier) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(n.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return n.redact(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}

	var out telegramResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode telegram response (status %d): %w", resp.StatusCode, err))
	}
	if !out.OK {
		return backoff.Permanent(fmt.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, out.Description))
	}
	return nil
}
