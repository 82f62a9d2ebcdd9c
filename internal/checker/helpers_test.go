package checker

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeRunner stands in for the openssl binary.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(stdin []byte, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.respond == nil {
		return nil, errors.New("not configured")
	}
	return f.respond(stdin, args)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// newTLSTarget starts an httptest TLS server and returns its TargetInfo.
func newTLSTarget(t *testing.T, handler http.Handler) (*httptest.Server, TargetInfo) {
	t.Helper()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	}
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return srv, targetFromURL(t, srv.URL)
}

func targetFromURL(t *testing.T, rawURL string) TargetInfo {
	t.Helper()
	info, err := ParseTarget(rawURL)
	if err != nil {
		t.Fatalf("ParseTarget(%q): %v", rawURL, err)
	}
	return info
}

// closedTarget returns an address nothing listens on.
func closedTarget(t *testing.T) TargetInfo {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	_, port, _ := net.SplitHostPort(addr)
	return TargetInfo{Original: addr, Host: "127.0.0.1", Port: port}
}

const sampleX509Output = `notBefore=Jan  1 00:00:00 2026 GMT
notAfter=Dec 31 23:59:59 2099 GMT
issuer=C = US, O = Let's Encrypt, CN = R11
subject=CN = example.com
SHA1 Fingerprint=AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD
serial=03A1B2C3D4E5F6
X509v3 Subject Alternative Name:
    DNS:example.com, DNS:www.example.com
`

const samplePEM = "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"

func fallbackResponder(x509Output string) func([]byte, []string) ([]byte, error) {
	return func(stdin []byte, args []string) ([]byte, error) {
		switch args[0] {
		case "s_client":
			return []byte("CONNECTED(00000003)\n" + samplePEM + "New, TLSv1.3, Cipher is TLS_AES_256_GCM_SHA384\n"), nil
		case "x509":
			if !strings.Contains(string(stdin), "BEGIN CERTIFICATE") {
				return nil, errors.New("unable to load certificate")
			}
			return []byte(x509Output), nil
		}
		return nil, errors.New("unexpected command")
	}
}
