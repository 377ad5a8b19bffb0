// Package noncompliance implements the Noncompliance Checker (C14): given a
// finding whose resolved failure mode is incomplete or missing_reference,
// decide whether the Context Pack or Spec document actually contained the
// guidance the agent ignored, and if so, record where.
package noncompliance

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

// Document is one candidate source of violated guidance.
type Document struct {
	Stage   domain.CarrierStage
	Content string
}

// Input is everything Check needs for one finding.
type Input struct {
	FindingTitle       string
	FindingDescription string
	FailureMode        domain.FailureMode
	CarrierLocation    string
	ContextPack        Document
	Spec               Document
}

const (
	windowSize     = 5
	minWindowScore = 2
	minRelevance   = 0.3
	excerptCap     = 500
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "into": {}, "when": {}, "then": {}, "than": {}, "have": {},
	"has": {}, "are": {}, "was": {}, "were": {}, "been": {}, "being": {},
	"not": {}, "but": {}, "you": {}, "your": {}, "should": {}, "must": {},
	"will": {}, "can": {}, "all": {}, "any": {}, "each": {}, "its": {},
	"it's": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"is": {}, "be": {}, "as": {}, "at": {}, "by": {}, "or": {}, "if": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Check applies spec.md §4.8.3's steps and returns the noncompliance record
// plus true if guidance was found to have been ignored, or (nil, false) if
// the failure mode doesn't warrant a check or no qualifying match exists.
func Check(in Input) (*domain.ExecutionNoncompliance, bool) {
	if in.FailureMode != domain.FailureIncomplete && in.FailureMode != domain.FailureMissingReference {
		return nil, false
	}

	keywords := extractKeywords(in.FindingTitle + " " + in.FindingDescription)
	if len(keywords) == 0 {
		return nil, false
	}

	if m, ok := bestMatch(in.ContextPack.Content, keywords); ok {
		return buildRecord(in.ContextPack.Stage, in.CarrierLocation, m), true
	}
	if m, ok := bestMatch(in.Spec.Content, keywords); ok {
		return buildRecord(in.Spec.Stage, in.CarrierLocation, m), true
	}
	return nil, false
}

type windowMatch struct {
	startLine int
	excerpt   string
	relevance float64
}

// bestMatch slides a 5-line window over content, scoring each window by how
// many distinct keywords it contains, and returns the best window meeting
// both the score and relevance thresholds.
func bestMatch(content string, keywords []string) (windowMatch, bool) {
	if strings.TrimSpace(content) == "" {
		return windowMatch{}, false
	}
	lines := strings.Split(content, "\n")

	var best windowMatch
	bestScore := 0
	for start := 0; start < len(lines); start++ {
		end := start + windowSize
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[start:end], "\n")
		score := countMatches(window, keywords)
		if score > bestScore {
			bestScore = score
			best = windowMatch{
				startLine: start,
				excerpt:   truncate(window, excerptCap),
				relevance: float64(score) / float64(len(keywords)),
			}
		}
		if end == len(lines) {
			break
		}
	}

	if bestScore < minWindowScore || best.relevance < minRelevance {
		return windowMatch{}, false
	}
	return best, true
}

func countMatches(window string, keywords []string) int {
	lower := strings.ToLower(window)
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}

func buildRecord(stage domain.CarrierStage, carrierLocation string, m windowMatch) *domain.ExecutionNoncompliance {
	location := "Lines " + strconv.Itoa(m.startLine+1) + ".." + strconv.Itoa(m.startLine+windowSize)

	var causes []domain.PossibleCause
	if !strings.Contains(carrierLocation, location) {
		causes = append(causes, domain.CauseSalience)
	}
	if len(causes) == 0 {
		causes = append(causes, domain.CauseFormatting)
	}

	return &domain.ExecutionNoncompliance{
		ViolatedGuidanceStage: stage,
		ViolatedLocation:      location,
		ViolatedExcerpt:       m.excerpt,
		PossibleCauses:        causes,
		Relevance:             m.relevance,
	}
}

// extractKeywords lowercases text, strips non-alphanumeric runs to
// whitespace, drops stop-words and tokens of 2 characters or fewer, and
// de-duplicates, per spec.md §4.8.3 step 1.
func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	normalized := nonAlnum.ReplaceAllString(lower, " ")
	tokens := strings.Fields(normalized)

	seen := make(map[string]struct{}, len(tokens))
	var keywords []string
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
