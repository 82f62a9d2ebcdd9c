package checker

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	"go.uber.org/zap"
)

// Signals are HTTP-level observations fed to the grader.
type Signals struct {
	HSTSPresent bool
	HSTSHeader  string
	HSTSMaxAge  int // -1 when the directive is missing or malformed
}

// SignalCollector fetches response headers over HTTPS.
type SignalCollector struct {
	client *http.Client
	logger *zap.Logger
}

// NewSignalCollector builds a collector with certificate verification disabled.
func NewSignalCollector(timeout time.Duration, logger *zap.Logger) *SignalCollector {
	if timeout <= 0 {
		timeout = constants.SignalTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- headers are graded even on broken chains.
		Proxy:           http.ProxyFromEnvironment,
	}
	return &SignalCollector{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Collect returns nil when the host could not be reached; header findings are
// then skipped rather than reported as missing.
func (c *SignalCollector) Collect(ctx context.Context, info TargetInfo) *Signals {
	resp, err := c.do(ctx, http.MethodHead, info.URL())
	if err != nil || resp.StatusCode == http.StatusMethodNotAllowed {
		if resp != nil {
			resp.Body.Close()
		}
		resp, err = c.do(ctx, http.MethodGet, info.URL())
	}
	if err != nil {
		c.logger.Debug("header signal collection failed",
			zap.String("target", info.Canonical()),
			zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return signalsFromHeader(resp.Header)
}

func (c *SignalCollector) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "certwatch/1.0")
	return c.client.Do(req)
}

func signalsFromHeader(h http.Header) *Signals {
	value := strings.TrimSpace(h.Get("Strict-Transport-Security"))
	if value == "" {
		return &Signals{HSTSMaxAge: -1}
	}
	return &Signals{
		HSTSPresent: true,
		HSTSHeader:  value,
		HSTSMaxAge:  parseHSTSMaxAge(value),
	}
}

// parseHSTSMaxAge returns the max-age directive in seconds, or -1.
func parseHSTSMaxAge(value string) int {
	for _, directive := range strings.Split(strings.ToLower(value), ";") {
		name, raw, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || strings.TrimSpace(name) != "max-age" {
			continue
		}
		n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(raw), `"`))
		if err != nil || n < 0 {
			return -1
		}
		return n
	}
	return -1
}
