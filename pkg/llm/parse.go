package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

// StripCodeFences removes a leading "```" or "```json" fence line and a
// trailing "```" fence line from text, preserving the inner content
// exactly. Text without fences is returned trimmed and unchanged.
func StripCodeFences(text string) string {
	stripped := strings.TrimSpace(text)
	if !strings.HasPrefix(stripped, "```") {
		return stripped
	}

	lines := strings.Split(stripped, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// extractBalancedBlock extracts the first balanced {...} or [...] block
// found in s: the kind whose opening bracket appears earlier is tried
// first, and the other kind only if that one never balances. If neither
// balances, s is returned unchanged.
func extractBalancedBlock(s string) string {
	pairs := [][2]byte{{'{', '}'}, {'[', ']'}}
	if arr, obj := strings.IndexByte(s, '['), strings.IndexByte(s, '{'); arr >= 0 && (obj < 0 || arr < obj) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, pair := range pairs {
		start := strings.IndexByte(s, pair[0])
		if start == -1 {
			continue
		}
		depth := 0
		for i := start; i < len(s); i++ {
			switch s[i] {
			case pair[0]:
				depth++
			case pair[1]:
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return s
}

// repairJSONString extracts the first balanced JSON block from s and
// strips trailing commas before a closing brace/bracket.
func repairJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = extractBalancedBlock(s)
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// ParseJSONWithRepair parses text as JSON into v, stripping code fences
// first. On a direct-parse failure it retries once against a repaired
// string (first balanced block, trailing commas removed). If both parses
// fail, it returns ErrParse.
func ParseJSONWithRepair(text string, v interface{}) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty response", ErrParse)
	}

	cleaned := StripCodeFences(text)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(repairJSONString(cleaned))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}

	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}
