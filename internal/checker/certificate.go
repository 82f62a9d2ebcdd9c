package checker

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
	"go.uber.org/zap"
)

// RetrieverConfig configures a Retriever.
type RetrieverConfig struct {
	Timeout     time.Duration
	OpenSSLPath string // empty disables the fallback
	Runner      CommandRunner
	Logger      *zap.Logger
	Now         func() time.Time
}

// Retriever reads the leaf certificate a host presents. It dials in-process
// first and falls back to the openssl binary when the handshake fails.
type Retriever struct {
	timeout time.Duration
	openssl *openSSLClient
	logger  *zap.Logger
	now     func() time.Time
}

// NewRetriever applies defaults to cfg.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.RetrieveTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Retriever{
		timeout: timeout,
		openssl: newOpenSSLClient(cfg.OpenSSLPath, cfg.Runner),
		logger:  logger,
		now:     now,
	}
}

// Retrieve never returns an error: when both strategies fail the snapshot
// carries Valid=false and the failure reason.
func (r *Retriever) Retrieve(ctx context.Context, info TargetInfo) target.CertificateSnapshot {
	snap, err := r.retrieveTLS(ctx, info)
	if err == nil {
		return snap
	}
	r.logger.Warn("tls retrieval failed, trying openssl",
		zap.String("target", info.Canonical()),
		zap.Error(err),
	)

	if r.openssl == nil {
		return target.FailedSnapshot(err.Error(), r.now())
	}

	fallback, fbErr := r.retrieveOpenSSL(ctx, info)
	if fbErr == nil {
		return fallback
	}
	r.logger.Warn("openssl retrieval failed",
		zap.String("target", info.Canonical()),
		zap.Error(fbErr),
	)
	return target.FailedSnapshot(fmt.Sprintf("%v; openssl fallback: %v", err, fbErr), r.now())
}

func (r *Retriever) retrieveTLS(ctx context.Context, info TargetInfo) (target.CertificateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: r.timeout},
		Config: &tls.Config{
			ServerName:         serverName(info),
			InsecureSkipVerify: true, // #nosec G402 -- invalid certificates must be inspected, not rejected.
			MinVersion:         tls.VersionTLS10,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", info.Address())
	if err != nil {
		return target.CertificateSnapshot{}, fmt.Errorf("%w: %v", sharedErrors.ErrNetwork, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return target.CertificateSnapshot{}, sharedErrors.ErrNoCertificate
	}
	return snapshotFromState(state, r.now()), nil
}

func (r *Retriever) retrieveOpenSSL(ctx context.Context, info TargetInfo) (target.CertificateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.openssl.certificate(ctx, info)
	if err != nil {
		return target.CertificateSnapshot{}, fmt.Errorf("%w: %v", sharedErrors.ErrRetrieval, err)
	}
	return parseOpenSSLOutput(out, r.now())
}

// snapshotFromState extracts leaf metadata from a completed handshake.
func snapshotFromState(state tls.ConnectionState, now time.Time) target.CertificateSnapshot {
	leaf := state.PeerCertificates[0]
	issuer := leaf.Issuer.String()
	subject := leaf.Subject.String()

	snap := target.CertificateSnapshot{
		Issuer:             issuer,
		Subject:            subject,
		SANs:               append([]string(nil), leaf.DNSNames...),
		NotBefore:          leaf.NotBefore,
		NotAfter:           leaf.NotAfter,
		Serial:             formatSerial(leaf.SerialNumber.Text(16)),
		Fingerprint:        fingerprintSHA256(leaf.Raw),
		SelfSigned:         issuer == subject,
		Source:             target.SourceTLS,
		SignatureAlgorithm: leaf.SignatureAlgorithm.String(),
		PublicKeyAlgorithm: leaf.PublicKeyAlgorithm.String(),
		KeySize:            publicKeySize(leaf),
		TLSVersion:         string(protocolForVersion(state.Version)),
		CipherSuite:        cipherSuiteString(state.CipherSuite),
		ChainDepth:         len(state.PeerCertificates),
	}
	return snap.Finalize(now)
}

func serverName(info TargetInfo) string {
	if net.ParseIP(info.Host) != nil {
		return ""
	}
	return info.Host
}

// fingerprintSHA256 formats a digest as colon separated upper-case hex.
func fingerprintSHA256(der []byte) string {
	sum := sha256.Sum256(der)
	return colonHex(hex.EncodeToString(sum[:]))
}

func formatSerial(hexSerial string) string {
	if len(hexSerial)%2 == 1 {
		hexSerial = "0" + hexSerial
	}
	return strings.ToUpper(hexSerial)
}

func colonHex(h string) string {
	h = strings.ToUpper(h)
	parts := make([]string, 0, len(h)/2)
	for i := 0; i+1 < len(h); i += 2 {
		parts = append(parts, h[i:i+2])
	}
	return strings.Join(parts, ":")
}
