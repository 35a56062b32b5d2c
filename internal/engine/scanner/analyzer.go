package scanner

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"alawein/internal/platform/models"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

type ScanInput struct {
	Target  string `json:"target"`
	Content string `json:"content"`
}

type ResearchInput struct {
	Topic   string `json:"topic"`
	Context string `json:"context"`
}

type ResearchOutput struct {
	Summary    string   `json:"summary"`
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
}

// Analyzer produces scan findings and research insights. Implementations
// may call out to external services; RuleAnalyzer is the local default.
type Analyzer interface {
	Scan(ctx context.Context, in ScanInput) (models.Findings, error)
	Research(ctx context.Context, in ResearchInput) (ResearchOutput, error)
}

type rule struct {
	name     string
	severity string
	pattern  *regexp.Regexp
	message  string
}

var defaultRules = []rule{
	{"private-key", SeverityCritical, regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`), "Private key material committed"},
	{"aws-access-key", SeverityCritical, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "AWS access key id"},
	{"hardcoded-secret", SeverityCritical, regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|passwd|token)\b\s*[:=]\s*["'][^"'\s]{8,}["']`), "Hardcoded credential"},
	{"eval", SeverityWarning, regexp.MustCompile(`\beval\s*\(`), "Dynamic code evaluation"},
	{"insecure-url", SeverityWarning, regexp.MustCompile(`\bhttp://[^\s"'<>]+`), "Plain HTTP URL"},
	{"weak-hash", SeverityWarning, regexp.MustCompile(`(?i)\b(md5|sha1)\s*\(`), "Weak hash function"},
	{"sql-concat", SeverityWarning, regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b[^;\n]*["']\s*\+`), "SQL built by string concatenation"},
	{"todo", SeverityInfo, regexp.MustCompile(`\b(TODO|FIXME|XXX)\b`), "Unresolved marker"},
	{"debug-log", SeverityInfo, regexp.MustCompile(`\bconsole\.log\s*\(`), "Debug logging left in code"},
}

// RuleAnalyzer scans content line by line against a fixed rule set and derives
// research insights from keyword frequency in the supplied context.
type RuleAnalyzer struct {
	rules []rule
}

func NewRuleAnalyzer() *RuleAnalyzer {
	return &RuleAnalyzer{rules: defaultRules}
}

func (a *RuleAnalyzer) Scan(ctx context.Context, in ScanInput) (models.Findings, error) {
	findings := models.Findings{Details: []models.ScanFinding{}}
	for i, line := range strings.Split(in.Content, "\n") {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		for _, r := range a.rules {
			if !r.pattern.MatchString(line) {
				continue
			}
			findings.Details = append(findings.Details, models.ScanFinding{
				Severity: r.severity,
				Rule:     r.name,
				Message:  r.message,
				Line:     i + 1,
			})
			switch r.severity {
			case SeverityCritical:
				findings.Critical++
			case SeverityWarning:
				findings.Warnings++
			default:
				findings.Info++
			}
		}
	}
	findings.Total = len(findings.Details)
	return findings, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true, "from": true,
	"are": true, "was": true, "were": true, "has": true, "have": true, "not": true, "but": true,
	"its": true, "can": true, "into": true, "than": true, "then": true, "also": true, "such": true,
	"their": true, "there": true, "which": true, "when": true, "where": true, "will": true, "would": true,
	"about": true, "these": true, "those": true, "other": true, "more": true, "most": true, "been": true,
}

type keyword struct {
	word  string
	count int
}

func (a *RuleAnalyzer) Research(ctx context.Context, in ResearchInput) (ResearchOutput, error) {
	if err := ctx.Err(); err != nil {
		return ResearchOutput{}, err
	}

	words := strings.FieldsFunc(strings.ToLower(in.Context), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	counts := map[string]int{}
	for _, w := range words {
		if len(w) < 4 || stopwords[w] {
			continue
		}
		counts[w]++
	}

	ranked := make([]keyword, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, keyword{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	insights := []string{}
	for _, k := range ranked {
		if len(insights) == 3 || k.count < 2 {
			break
		}
		insights = append(insights, fmt.Sprintf("Recurring theme: %s (%d mentions)", k.word, k.count))
	}
	topic := strings.ToLower(in.Topic)
	if topic != "" && counts[topic] == 0 && len(words) > 0 {
		insights = append(insights, fmt.Sprintf("The material never mentions %q directly", in.Topic))
	}
	if len(words) == 0 {
		insights = append(insights, "No source material supplied; provide context for a grounded analysis")
	}

	summary := fmt.Sprintf("Research on %s: analyzed %d words, %d distinct terms.", in.Topic, len(words), len(counts))
	return ResearchOutput{Summary: summary, Insights: insights, Confidence: confidence(len(words), len(insights))}, nil
}

// confidence grows with the amount of material and the number of supported insights, capped below certainty.
func confidence(words, insights int) float64 {
	if words == 0 {
		return 0.1
	}
	c := 0.3 + float64(words)/1000.0 + 0.1*float64(insights)
	if c > 0.95 {
		c = 0.95
	}
	return float64(int(c*100)) / 100
}
