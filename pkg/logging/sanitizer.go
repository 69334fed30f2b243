package logging

import (
	"regexp"
	"sort"
)

const (
	// MaxSequenceLogLength is the number of residues of a protein sequence
	// that may appear in a log line.
	MaxSequenceLogLength = 24
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: token=xxx, api_key=xxx, apikey=xxx, secret=xxx (until next delimiter)
	secretParamPattern = regexp.MustCompile(`(?i)(token|api[_-]?key|secret|password)=[^;&\s]+`)

	// Pattern to match JWT bearer tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Pattern to match URL userinfo (user:pass@host format)
	userinfoPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// SanitizeURL removes credentials from a service URL.
// Use this before logging any configured endpoint.
func SanitizeURL(u string) string {
	if u == "" {
		return ""
	}
	sanitized := userinfoPattern.ReplaceAllString(u, "://"+RedactedText+"@")
	return secretParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// SanitizeError sanitizes error messages that might carry credentials from
// remote calls.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := jwtPattern.ReplaceAllString(err.Error(), "Bearer "+RedactedText)
	sanitized = userinfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	return secretParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// Truncate shortens s to maxLen bytes and adds an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ProteinSummary is a log-safe digest of a protein set: genomes are large
// and sequences are never logged in full.
type ProteinSummary struct {
	Count         int
	TotalResidues int
	Sample        string
}

// SummarizeProteins digests a protein set. Sample shows the truncated
// sequence of the lexically first protein id.
func SummarizeProteins(proteins map[string]string) ProteinSummary {
	s := ProteinSummary{Count: len(proteins)}
	ids := make([]string, 0, len(proteins))
	for id, seq := range proteins {
		ids = append(ids, id)
		s.TotalResidues += len(seq)
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		s.Sample = ids[0] + ":" + Truncate(proteins[ids[0]], MaxSequenceLogLength)
	}
	return s
}
