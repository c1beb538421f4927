// Package redact provides helpers for keeping sensitive material out of log
// output before it leaves the process boundary.
//
// # Threat model
//
// Two kinds of sensitive data flow through Iskra:
//   - Credentials (the completion API key, the bot token, the payment
//     webhook secret) must never appear in log lines.
//   - User conversation text is personal by nature; logs carry at most a
//     short prefix of it, never full messages.
//
// Redaction is best-effort: it operates on string representations and relies
// on callers to pass the right set of sensitive terms.  It is NOT a substitute
// for keeping secrets out of log call-sites in the first place.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED].  Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
//
// Example:
//
//	safe := redact.String(logLine, apiKey, botToken)
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Preview returns at most n runes of a user message for log output, with an
// ellipsis when truncated. Full message bodies stay out of the logs.
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "…"
}
