package checker

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
)

// versionSSL30 is the legacy SSL 3.0 wire version (0x0300), defined locally
// to avoid the deprecated tls.VersionSSL30 symbol.
const versionSSL30 uint16 = 0x0300

// Weak cipher suites that should not be negotiated (PCI DSS 4.1)
var weakCipherSuites = map[uint16]string{
	tls.TLS_RSA_WITH_RC4_128_SHA:                "TLS_RSA_WITH_RC4_128_SHA",
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:           "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:            "TLS_RSA_WITH_AES_128_CBC_SHA",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:            "TLS_RSA_WITH_AES_256_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:        "TLS_ECDHE_ECDSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:          "TLS_ECDHE_RSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:     "TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256: "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256",
}

// tlsProtocols maps wire versions the in-process prober can negotiate.
var tlsProtocols = map[uint16]target.Protocol{
	tls.VersionTLS10: target.TLSv10,
	tls.VersionTLS11: target.TLSv11,
	tls.VersionTLS12: target.TLSv12,
	tls.VersionTLS13: target.TLSv13,
}

// protocolForVersion converts a TLS version constant to its protocol name.
func protocolForVersion(version uint16) target.Protocol {
	if version == versionSSL30 {
		return target.SSLv3
	}
	if p, ok := tlsProtocols[version]; ok {
		return p
	}
	return target.ProtocolUnknown
}

// cipherSuiteString converts a cipher suite constant to its IANA name.
func cipherSuiteString(suite uint16) string {
	if name, ok := weakCipherSuites[suite]; ok {
		return name
	}
	// CipherSuiteName never fails; it falls back to a hex string.
	for _, list := range [][]*tls.CipherSuite{tls.CipherSuites(), tls.InsecureCipherSuites()} {
		for _, cs := range list {
			if cs.ID == suite {
				return cs.Name
			}
		}
	}
	return fmt.Sprintf("Unknown (0x%04x)", suite)
}

// IsWeakCipherSuite reports whether the named suite is in the weak list.
func IsWeakCipherSuite(name string) bool {
	for _, weak := range weakCipherSuites {
		if weak == name {
			return true
		}
	}
	return false
}

// publicKeySize returns the key size in bits, or 0 when unknown.
func publicKeySize(cert *x509.Certificate) int {
	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return key.N.BitLen()
	case *ecdsa.PublicKey:
		return key.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 256
	}
	return 0
}

// IsWeakSignature reports MD5 and SHA-1 based signature algorithms.
func IsWeakSignature(alg string) bool {
	lower := strings.ToLower(alg)
	return strings.Contains(lower, "md5") || strings.Contains(lower, "sha1")
}

// IsWeakKey applies the minimum key sizes of PCI DSS 4.1: 2048-bit RSA, 224-bit ECC.
func IsWeakKey(publicKeyAlg string, bits int) bool {
	if bits <= 0 {
		return false
	}
	switch {
	case strings.Contains(publicKeyAlg, "RSA"):
		return bits < 2048
	case strings.Contains(publicKeyAlg, "ECDSA"):
		return bits < 224
	}
	return false
}
