package notify

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
)

// Message is one rendered notification.
type Message struct {
	Subject   string
	Body      string
	Condition target.Condition
}

var subjects = map[target.Condition]string{
	target.ConditionExpiryWarning:    "SSL Certificate Expiring Soon",
	target.ConditionExpired:          "SSL Certificate Expired",
	target.ConditionRenewed:          "SSL Certificate Renewed",
	target.ConditionCheckFailed:      "SSL Check Failed",
	target.ConditionInsecureProtocol: "Insecure TLS Version Detected",
	target.ConditionSecurityWarning:  "Security Warning",
}

// telegramTitles prefix Markdown messages sent to Telegram.
var telegramTitles = map[target.Condition]string{
	target.ConditionExpiryWarning:    "⚠️ *SSL Expiry Warning*",
	target.ConditionExpired:          "🚨 *SSL Certificate Expired*",
	target.ConditionRenewed:          "✅ *SSL Certificate Renewed*",
	target.ConditionCheckFailed:      "❌ *SSL Check Failed*",
	target.ConditionInsecureProtocol: "🔒 *Security Issue Detected*",
	target.ConditionSecurityWarning:  "🔶 *Security Warning*",
}

// Render builds the message announcing condition for t.
func Render(t *target.MonitoredTarget, condition target.Condition, nc NotifyContext) Message {
	label := fmt.Sprintf("%s (%s)", t.Name(), t.Hostname())
	date := nc.NotAfter.UTC().Format(dayLayout)

	var body string
	switch condition {
	case target.ConditionExpiryWarning:
		body = fmt.Sprintf("SSL certificate for %s will expire in %d days (on %s)", label, nc.DaysRemaining, date)
	case target.ConditionExpired:
		body = fmt.Sprintf("SSL certificate for %s has expired on %s", label, date)
	case target.ConditionRenewed:
		body = fmt.Sprintf("SSL certificate for %s has been renewed and is now valid until %s", label, date)
	case target.ConditionCheckFailed:
		body = fmt.Sprintf("Failed to check SSL certificate for %s: %s", label, nc.Error)
	case target.ConditionInsecureProtocol:
		body = fmt.Sprintf("Website %s is using insecure TLS versions: %s. Only TLSv1.2 and TLSv1.3 are recommended.",
			label, joinProtocols(nc.Insecure))
	case target.ConditionSecurityWarning:
		body = securityBody(label, nc.Assessment)
	default:
		body = fmt.Sprintf("Notification for %s", label)
	}

	subject, ok := subjects[condition]
	if !ok {
		subject = "Certificate Notification"
	}
	return Message{Subject: subject, Body: body, Condition: condition}
}

// markdownEscaper escapes the entities of Telegram's legacy Markdown mode.
var markdownEscaper = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)

// TelegramText prefixes the body with the condition's title. The body carries
// hostnames, names and error text, so it is escaped for Markdown.
func TelegramText(msg Message) string {
	body := markdownEscaper.Replace(msg.Body)
	title, ok := telegramTitles[msg.Condition]
	if !ok {
		return body
	}
	return title + "\n\n" + body
}

func securityBody(label string, a *target.SecurityAssessment) string {
	if a == nil {
		return fmt.Sprintf("Security issues detected for %s", label)
	}
	names := make([]string, 0, len(a.Findings))
	for _, f := range a.Findings {
		if f.Severity == target.SeverityCritical || f.Severity == target.SeverityHigh {
			names = append(names, f.Name)
		}
	}
	return fmt.Sprintf("Security grade for %s is %s (%d/100). Issues: %s",
		label, a.Grade, a.Score, strings.Join(names, ", "))
}

func joinProtocols(ps []target.Protocol) string {
	if len(ps) == 0 {
		return "none"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
