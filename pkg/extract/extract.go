// Package extract locates and repairs JSON payloads embedded in free-form
// model output. Extraction never fails: when no candidate is found the
// original text is returned and the caller decides what to do with it.
package extract

import (
	"regexp"
	"strings"
)

// minCandidateLen is the shortest extracted candidate worth parsing.
const minCandidateLen = 10

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

	// Labeled fallbacks, tried in order after the structural heuristics.
	labeledRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)here\s+is\s+the\s+json\s*:?\s*(\{.*\})`),
		regexp.MustCompile(`(?is)result\s*:?\s*(\{.*\})`),
		regexp.MustCompile(`(?is)json\s*:?\s*(\{.*\})`),
	}
)

// JSONCandidate returns a best-effort JSON-looking substring of text.
// Heuristics are tried in priority order, first match wins:
// a fenced code block, the span from the first '{' to the last '}',
// then a small set of labeled fallbacks. When nothing matches, the
// input is returned unchanged.
func JSONCandidate(text string) string {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if len(body) > minCandidateLen {
			return body
		}
	}

	open := strings.Index(text, "{")
	close := strings.LastIndex(text, "}")
	if open >= 0 && close > open {
		return text[open : close+1]
	}

	for _, re := range labeledRes {
		if m := re.FindStringSubmatch(text); m != nil {
			body := strings.TrimSpace(m[1])
			if len(body) > minCandidateLen {
				return body
			}
		}
	}

	return text
}
