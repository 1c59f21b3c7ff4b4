package backends

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/zero-day-ai/warden/internal/guardrail"
)

// codeBlockPattern matches markdown code blocks with optional language tag.
var codeBlockPattern = regexp.MustCompile(`(?s)` + "```" + `(\w*)\s*\n(.+?)\n` + "```")

// violationMarkerPattern recognizes violation indicators inside raw or
// malformed classifier output: "violation": 1/true/yes style fields and bare
// unsafe/flagged markers.
var violationMarkerPattern = regexp.MustCompile(`(?i)(["']?violation["']?\s*[:=]\s*["']?(1|true|yes))|(["']?safe["']?\s*[:=]\s*["']?(0|false|no))|\bunsafe\b|\bflagged\b`)

// rawVerdict is the JSON shape classifier backends are prompted to emit.
type rawVerdict struct {
	Safe       *bool    `json:"safe"`
	Violation  any      `json:"violation"`
	Reason     string   `json:"reason"`
	Categories []string `json:"categories"`
}

// ParseVerdict turns raw classifier output into an Evaluation. Well-formed
// JSON (possibly inside a markdown fence) is decoded directly; broken JSON is
// repaired and retried. When no parseable verdict survives, the raw text is
// scanned for violation markers: the content defaults to safe only when no
// marker is present, and to unsafe the moment one is, since a false negative
// on malformed output is worse than a false positive.
func ParseVerdict(raw string) *guardrail.Evaluation {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	if jsonStr, ok := extractJSON(raw); ok {
		var v rawVerdict
		if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
			if repaired, repairErr := jsonrepair.JSONRepair(jsonStr); repairErr == nil {
				if json.Unmarshal([]byte(repaired), &v) == nil {
					return evaluationFrom(v)
				}
			}
		} else {
			return evaluationFrom(v)
		}
	}

	if violationMarkerPattern.MatchString(raw) {
		return &guardrail.Evaluation{
			Safe:   false,
			Reason: "violation marker in malformed classifier output",
		}
	}

	return &guardrail.Evaluation{Safe: true}
}

// evaluationFrom interprets a decoded verdict. An explicit safe field wins;
// otherwise a truthy violation field marks the content unsafe.
func evaluationFrom(v rawVerdict) *guardrail.Evaluation {
	safe := true
	if v.Safe != nil {
		safe = *v.Safe
	} else if truthy(v.Violation) {
		safe = false
	}

	eval := &guardrail.Evaluation{
		Safe:   safe,
		Reason: strings.TrimSpace(v.Reason),
	}
	if len(v.Categories) > 0 {
		eval.Details = map[string]any{"categories": v.Categories}
	}
	return eval
}

// truthy interprets the loose violation encodings classifiers produce.
func truthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}

// extractJSON pulls a JSON object out of classifier output that may be
// wrapped in markdown. Fenced blocks are preferred over raw brace matching.
func extractJSON(response string) (string, bool) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		if len(match) < 3 {
			continue
		}
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if strings.HasPrefix(content, "{") {
			return content, true
		}
	}

	start := strings.Index(response, "{")
	if start < 0 {
		return "", false
	}
	if jsonStr := matchBraces(response[start:]); jsonStr != "" {
		return jsonStr, true
	}
	return "", false
}

// matchBraces finds the complete object by matching brackets, respecting
// strings and escapes.
func matchBraces(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
