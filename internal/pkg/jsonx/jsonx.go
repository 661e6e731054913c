package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Extraction records which recovery steps were needed to pull a JSON
// object out of model output. Callers use it to rate fallback impact.
type Extraction struct {
	StrippedFence bool
	BraceMatched  bool
}

func (e Extraction) Clean() bool { return !e.StrippedFence && !e.BraceMatched }

var ErrNoObject = errors.New("jsonx: no JSON object found")

// ExtractObject pulls the first JSON object out of text that may be wrapped
// in a Markdown code fence or surrounded by narrative prose, and unmarshals
// it into out. Rules, applied in order:
//  1. Trim whitespace. If the text parses as-is, done.
//  2. Strip a leading ``` or ```json fence line and a trailing ``` line.
//  3. Brace-match the first balanced {...} span (string- and escape-aware)
//     and parse that.
func ExtractObject(text string, out any) (Extraction, error) {
	var ex Extraction

	s := strings.TrimSpace(text)
	if s == "" {
		return ex, ErrNoObject
	}

	if json.Unmarshal([]byte(s), out) == nil {
		return ex, nil
	}

	if stripped, ok := stripFence(s); ok {
		ex.StrippedFence = true
		s = stripped
		if json.Unmarshal([]byte(s), out) == nil {
			return ex, nil
		}
	}

	span, ok := matchBraces(s)
	if !ok {
		return ex, ErrNoObject
	}
	ex.BraceMatched = true
	if err := json.Unmarshal([]byte(span), out); err != nil {
		return ex, fmt.Errorf("jsonx: extracted span is not valid JSON: %w", err)
	}
	return ex, nil
}

func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s, false
	}
	body := lines[1:]
	if strings.TrimSpace(body[len(body)-1]) == "```" {
		body = body[:len(body)-1]
	}
	return strings.TrimSpace(strings.Join(body, "\n")), true
}

// matchBraces returns the first balanced top-level {...} span in s.
func matchBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
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
	return "", false
}
