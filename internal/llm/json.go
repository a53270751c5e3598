package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeJSONObject extracts the first JSON object in text and decodes it into
// v. Markdown fences and surrounding prose are ignored; malformed objects are
// repaired before a second decode.
func DecodeJSONObject(text string, v any) error {
	obj, ok := extractObject(text)
	if !ok {
		return ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(obj), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return fmt.Errorf("repair JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired JSON: %w", err)
	}
	return nil
}

func extractObject(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	// Unterminated: hand the tail to the repairer.
	return s[start:], true
}
