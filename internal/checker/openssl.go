package checker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// DefaultOpenSSLPath is resolved through PATH.
const DefaultOpenSSLPath = "openssl"

// CommandRunner executes an external program, feeding stdin and returning stdout.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Env map[string]string
}

// Run executes name with args. Stderr is folded into the error on failure.
func (r ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- name is operator configured and args never pass through a shell.
	cmd.Env = os.Environ()
	for k, v := range r.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Stdin = bytes.NewReader(stdin)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

// openSSLClient drives the openssl binary for the certificate fallback and
// the legacy protocol probes crypto/tls cannot speak.
type openSSLClient struct {
	path   string
	runner CommandRunner
}

func newOpenSSLClient(path string, runner CommandRunner) *openSSLClient {
	if path == "" {
		return nil
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &openSSLClient{path: path, runner: runner}
}

// handshake runs s_client against the target with extra flags and returns its stdout.
func (c *openSSLClient) handshake(ctx context.Context, info TargetInfo, flags ...string) ([]byte, error) {
	args := []string{"s_client", "-connect", info.Address()}
	if net.ParseIP(info.Host) == nil {
		args = append(args, "-servername", info.Host)
	}
	args = append(args, flags...)
	return c.runner.Run(ctx, nil, c.path, args...)
}

// certificate fetches the leaf PEM via s_client and decodes it with x509.
func (c *openSSLClient) certificate(ctx context.Context, info TargetInfo) (string, error) {
	pem, err := c.handshake(ctx, info)
	if err != nil && len(pem) == 0 {
		return "", err
	}
	if !bytes.Contains(pem, []byte("BEGIN CERTIFICATE")) {
		return "", fmt.Errorf("%w: s_client returned no certificate", sharedErrors.ErrNoCertificate)
	}
	out, err := c.runner.Run(ctx, pem, c.path,
		"x509", "-noout", "-dates", "-issuer", "-subject", "-fingerprint", "-serial", "-ext", "subjectAltName")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// supports reports whether a handshake restricted by flag completed.
func (c *openSSLClient) supports(ctx context.Context, info TargetInfo, flag string) bool {
	out, err := c.handshake(ctx, info, flag)
	if err != nil {
		return false
	}
	return handshakeCompleted(out)
}

// handshakeCompleted inspects s_client output for a negotiated cipher.
func handshakeCompleted(out []byte) bool {
	text := string(out)
	if strings.Contains(text, "Cipher is (NONE)") || strings.Contains(text, "Cipher    : 0000") {
		return false
	}
	return strings.Contains(text, "Cipher is ") || strings.Contains(text, "Cipher    :")
}

// openSSLDateLayout matches `notAfter=Jan  2 15:04:05 2026 GMT`.
const openSSLDateLayout = "Jan _2 15:04:05 2006 MST"

// parseOpenSSLOutput turns `openssl x509 -noout ...` output into a snapshot.
// notAfter is mandatory; every other field is best effort.
func parseOpenSSLOutput(output string, now time.Time) (target.CertificateSnapshot, error) {
	snap := target.CertificateSnapshot{Source: target.SourceOpenSSL}

	scanner := bufio.NewScanner(strings.NewReader(output))
	inSAN := false
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if inSAN {
			if trimmed != "" && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
				snap.SANs = append(snap.SANs, parseSANs(trimmed)...)
				continue
			}
			inSAN = false
		}

		key, value, found := strings.Cut(trimmed, "=")
		switch {
		case strings.HasPrefix(trimmed, "X509v3 Subject Alternative Name"):
			inSAN = true
			if _, rest, ok := strings.Cut(trimmed, ":"); ok && strings.TrimSpace(rest) != "" {
				snap.SANs = append(snap.SANs, parseSANs(rest)...)
			}
		case !found:
			continue
		case key == "notBefore":
			if t, err := parseOpenSSLDate(value); err == nil {
				snap.NotBefore = t
			}
		case key == "notAfter":
			t, err := parseOpenSSLDate(value)
			if err != nil {
				return snap, fmt.Errorf("%w: notAfter %q: %v", sharedErrors.ErrParse, value, err)
			}
			snap.NotAfter = t
		case key == "issuer":
			snap.Issuer = strings.TrimSpace(value)
		case key == "subject":
			snap.Subject = strings.TrimSpace(value)
		case key == "serial":
			snap.Serial = strings.TrimSpace(value)
		case strings.HasSuffix(strings.ToLower(key), " fingerprint"):
			snap.Fingerprint = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return snap, fmt.Errorf("%w: %v", sharedErrors.ErrParse, err)
	}
	if snap.NotAfter.IsZero() {
		return snap, fmt.Errorf("%w: notAfter missing", sharedErrors.ErrParse)
	}

	if snap.Issuer == "" {
		snap.Issuer = "Unknown"
	}
	if snap.Subject == "" {
		snap.Subject = "Unknown"
	}
	snap.SelfSigned = snap.Issuer != "Unknown" && snap.Issuer == snap.Subject
	return snap.Finalize(now), nil
}

func parseOpenSSLDate(value string) (time.Time, error) {
	return time.Parse(openSSLDateLayout, strings.TrimSpace(value))
}

// parseSANs extracts DNS entries from a comma separated SAN list.
func parseSANs(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "DNS:"); ok && name != "" {
			names = append(names, strings.TrimSpace(name))
		}
	}
	return names
}
