package checker

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
	"golang.org/x/net/idna"
)

// TargetInfo is a validated TLS endpoint.
type TargetInfo struct {
	Original string // Input as supplied by the operator
	Host     string // ASCII (punycode) hostname or IP literal
	Port     string // Always set, defaults to 443
}

// Address returns host:port suitable for dialing.
func (t TargetInfo) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// Canonical is the stored form: the host alone on 443, host:port otherwise.
func (t TargetInfo) Canonical() string {
	if t.Port == constants.DefaultTLSPort {
		if strings.Contains(t.Host, ":") {
			return "[" + t.Host + "]"
		}
		return t.Host
	}
	return t.Address()
}

// URL is the HTTPS URL used for header signals.
func (t TargetInfo) URL() string {
	return "https://" + t.Canonical() + "/"
}

// ParseTarget validates hostname input. It accepts:
//   - example.com
//   - https://example.com/path
//   - example.com:8443
//   - bücher.example (converted to punycode)
//
// Any scheme other than http or https, embedded credentials, or an invalid
// port is rejected.
func ParseTarget(raw string) (TargetInfo, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TargetInfo{}, sharedErrors.ErrEmptyHostname
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return TargetInfo{}, fmt.Errorf("%w: %q contains whitespace", sharedErrors.ErrInvalidHostname, raw)
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return TargetInfo{}, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidHostname, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return TargetInfo{}, fmt.Errorf("%w: unsupported scheme %q", sharedErrors.ErrInvalidHostname, parsed.Scheme)
	}
	if parsed.User != nil {
		return TargetInfo{}, fmt.Errorf("%w: credentials are not allowed", sharedErrors.ErrInvalidHostname)
	}

	host := strings.TrimSuffix(parsed.Hostname(), ".")
	if host == "" {
		return TargetInfo{}, fmt.Errorf("%w: %q has no host", sharedErrors.ErrInvalidHostname, raw)
	}

	port := parsed.Port()
	if port == "" {
		port = constants.DefaultTLSPort
	} else if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return TargetInfo{}, fmt.Errorf("%w: invalid port %q", sharedErrors.ErrInvalidHostname, port)
	}

	if ip := net.ParseIP(host); ip != nil {
		return TargetInfo{Original: raw, Host: ip.String(), Port: port}, nil
	}

	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return TargetInfo{}, fmt.Errorf("%w: %q: %v", sharedErrors.ErrInvalidHostname, host, err)
	}

	return TargetInfo{Original: raw, Host: ascii, Port: port}, nil
}
