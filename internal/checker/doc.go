// Package checker implements certificate inspection for certwatch.
//
// Architecture overview:
//
//   - ParseTarget validates operator input into a TargetInfo (host, port)
//     and rejects malformed hostnames before any network I/O.
//   - Retriever reads the leaf certificate over crypto/tls with verification
//     disabled and falls back to `openssl s_client | openssl x509` when the
//     in-process handshake fails. Both paths yield a target.CertificateSnapshot.
//   - Prober attempts one pinned-version handshake per protocol. TLS 1.0
//     through 1.3 are probed in-process; SSLv2 and SSLv3 go through openssl.
//   - SignalCollector fetches the Strict-Transport-Security header.
//   - Grader combines the three into a target.SecurityAssessment.
//
// Nothing here persists state or sends notifications; the monitor
// orchestrator in internal/application owns that.
package checker
