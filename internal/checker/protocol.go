package checker

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	"go.uber.org/zap"
)

// ProberConfig configures a Prober.
type ProberConfig struct {
	Timeout     time.Duration
	OpenSSLPath string // empty skips SSLv2/SSLv3
	Runner      CommandRunner
	Logger      *zap.Logger
	Now         func() time.Time
}

// Prober determines which protocol versions a host accepts.
type Prober struct {
	timeout time.Duration
	openssl *openSSLClient
	logger  *zap.Logger
	now     func() time.Time
}

// legacyFlags are the s_client switches for versions crypto/tls cannot negotiate.
var legacyFlags = map[target.Protocol]string{
	target.SSLv2: "-ssl2",
	target.SSLv3: "-ssl3",
}

// wireVersions are the crypto/tls constants for the in-process probes.
var wireVersions = map[target.Protocol]uint16{
	target.TLSv10: tls.VersionTLS10,
	target.TLSv11: tls.VersionTLS11,
	target.TLSv12: tls.VersionTLS12,
	target.TLSv13: tls.VersionTLS13,
}

// NewProber applies defaults to cfg.
func NewProber(cfg ProberConfig) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.ProbeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Prober{
		timeout: timeout,
		openssl: newOpenSSLClient(cfg.OpenSSLPath, cfg.Runner),
		logger:  logger,
		now:     now,
	}
}

// Probe attempts one handshake per candidate version. Failed attempts are
// skipped; if none succeed the default report is returned.
func (p *Prober) Probe(ctx context.Context, info TargetInfo) target.ProtocolReport {
	var supported []target.Protocol
	for _, proto := range target.CandidateProtocols {
		if ctx.Err() != nil {
			break
		}
		if p.attempt(ctx, info, proto) {
			supported = append(supported, proto)
		}
	}

	if len(supported) == 0 {
		p.logger.Warn("no protocol probe succeeded, using default",
			zap.String("target", info.Canonical()))
		return target.DefaultProtocolReport(p.now())
	}

	report := target.NewProtocolReport(supported, p.now())
	p.logger.Debug("protocol probe complete",
		zap.String("target", info.Canonical()),
		zap.String("highest", string(report.Highest)),
		zap.Int("insecure", len(report.Insecure)),
	)
	return report
}

func (p *Prober) attempt(ctx context.Context, info TargetInfo, proto target.Protocol) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if version, ok := wireVersions[proto]; ok {
		return p.handshake(ctx, info, version)
	}
	if flag, ok := legacyFlags[proto]; ok && p.openssl != nil {
		return p.openssl.supports(ctx, info, flag)
	}
	return false
}

// handshake pins both MinVersion and MaxVersion so success means exactly that version.
func (p *Prober) handshake(ctx context.Context, info TargetInfo, version uint16) bool {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.timeout},
		Config: &tls.Config{
			ServerName:         serverName(info),
			InsecureSkipVerify: true, // #nosec G402 -- protocol support is probed regardless of chain validity.
			MinVersion:         version,
			MaxVersion:         version,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", info.Address())
	if err != nil {
		return false
	}
	defer conn.Close()
	return conn.(*tls.Conn).ConnectionState().Version == version
}
