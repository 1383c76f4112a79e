package distill

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// HeuristicSummarizer is the no-network fallback: extractive summarization
// over the artifact text. Quality is deliberately modest; it exists so the
// pipeline works end to end without a chat endpoint configured.
type HeuristicSummarizer struct{}

// NewHeuristicSummarizer creates the fallback summarizer.
func NewHeuristicSummarizer() *HeuristicSummarizer {
	return &HeuristicSummarizer{}
}

// factPattern matches lines that tend to carry hard facts: bullets, numbers,
// paths, or key: value pairs.
var factPattern = regexp.MustCompile(`(?:^[-*]\s)|(?:\d)|(?:/[\w.-]+)|(?:\w+:\s)`)

// stopwords excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "will": true,
	"has": true, "have": true, "not": true, "its": true, "can": true,
	"should": true, "must": true, "when": true, "then": true, "into": true,
}

// Summarize implements Summarizer.
func (s *HeuristicSummarizer) Summarize(ctx context.Context, artifact SourceArtifact) (Digest, error) {
	if err := ctx.Err(); err != nil {
		return Digest{}, err
	}

	lines := strings.Split(artifact.BodyMD, "\n")

	return Digest{
		Summary:   extractSummary(lines, artifact.Title),
		HardFacts: extractFacts(lines),
		Keywords:  extractKeywords(artifact.Title + " " + artifact.BodyMD),
	}, nil
}

// extractSummary takes the first non-heading prose lines, capped at ~400 chars.
func extractSummary(lines []string, title string) string {
	var sb strings.Builder
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(line)
		if sb.Len() >= 400 {
			break
		}
	}
	summary := sb.String()
	if len(summary) > 400 {
		summary = summary[:400] + "..."
	}
	if summary == "" {
		summary = title
	}
	return summary
}

// extractFacts keeps up to 10 fact-looking lines.
func extractFacts(lines []string) []string {
	var facts []string
	seen := make(map[string]bool)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || len(line) < 8 {
			continue
		}
		if !factPattern.MatchString(line) {
			continue
		}
		fact := strings.TrimLeft(line, "-* ")
		if len(fact) > 200 {
			fact = fact[:200] + "..."
		}
		if seen[fact] {
			continue
		}
		seen[fact] = true
		facts = append(facts, fact)
		if len(facts) >= 10 {
			break
		}
	}
	return facts
}

// extractKeywords returns the most frequent non-stopword terms, up to 8.
func extractKeywords(text string) []string {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;()[]{}`\"'!?#*")
		if len(word) < 3 || stopwords[word] {
			continue
		}
		counts[word]++
	}

	type wc struct {
		word  string
		count int
	}
	ranked := make([]wc, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	n := min(len(ranked), 8)
	keywords := make([]string, 0, n)
	for _, r := range ranked[:n] {
		keywords = append(keywords, r.word)
	}
	return keywords
}
