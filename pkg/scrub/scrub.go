// Package scrub implements the Credential Scrubber (C3): a pure function
// that redacts secrets from any outbound string. It is applied to every
// subprocess-produced text chunk, every outbound error message, and every
// error stack before those strings leave the process, the way the teacher's
// pkg/notification/sanitization package scrubs outbound notification
// content.
package scrub

import "regexp"

// redaction is a single compiled pattern and its replacement marker. Patterns
// are applied in order but are written to be mutually non-overlapping so
// ordering does not affect the result (spec invariant: scrubbing is
// idempotent and order-independent across non-overlapping patterns).
type redaction struct {
	name    string
	pattern *regexp.Regexp
}

const redactedMarker = "[REDACTED]"

var redactions = []redaction{
	// URLs with embedded user:pass@ credentials.
	{"url-userinfo", regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s:@]+:[^/\s:@]+@`)},
	// GitHub tokens: classic (ghp_), fine-grained (github_pat_), OAuth (gho_),
	// app (ghu_/ghs_), refresh (ghr_).
	{"github-token", regexp.MustCompile(`\b(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,255}\b`)},
	{"github-fine-grained", regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,255}\b`)},
	// GitLab personal access tokens.
	{"gitlab-pat", regexp.MustCompile(`\bglpat-[A-Za-z0-9_-]{20,}\b`)},
	// Generic bearer tokens in Authorization-style headers.
	{"bearer", regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/=-]{8,}\b`)},
	// AWS access key IDs.
	{"aws-access-key", regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)},
	// AWS secret access key assignment lines (40 base64-ish characters).
	{"aws-secret-key", regexp.MustCompile(`(?i)(aws_secret_access_key\s*[:=]\s*)[A-Za-z0-9/+=]{40}`)},
	// OpenAI keys.
	{"openai-key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	// Anthropic keys (checked before the generic sk- pattern below would
	// otherwise also match the sk- prefix; anchoring on sk-ant- keeps the
	// two patterns non-overlapping since openai-key never matches "ant-").
	{"anthropic-key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
	// Slack bot/user tokens.
	{"slack-token", regexp.MustCompile(`\bxox[bp]-[A-Za-z0-9-]{10,}\b`)},
}

// Scrub replaces every match of the fixed pattern set with [REDACTED]. It is
// pure, idempotent, and safe to call on arbitrary (including empty) input.
func Scrub(s string) string {
	out := s
	for _, r := range redactions {
		out = r.pattern.ReplaceAllString(out, replacementFor(r.name))
	}
	return out
}

// replacementFor returns the literal replacement text for a given pattern.
// Bearer and the AWS secret-key pattern retain their non-secret prefix so the
// scrubbed text is still legible as "what kind of thing was redacted".
func replacementFor(name string) string {
	switch name {
	case "bearer":
		return "Bearer " + redactedMarker
	case "aws-secret-key":
		return "${1}" + redactedMarker
	case "url-userinfo":
		return "${1}" + redactedMarker + "@"
	default:
		return redactedMarker
	}
}

// Any reports whether s contains a token matching any known secret pattern.
// Useful for tests asserting the post-condition "no more secrets remain".
func Any(s string) bool {
	for _, r := range redactions {
		if r.pattern.MatchString(s) {
			return true
		}
	}
	return false
}
