package profile

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

// minResponseLength is the shortest model response worth parsing. Anything
// shorter cannot hold an object with a single populated field.
const minResponseLength = 10

var errNoObject = errors.New("no balanced object found")

// ParseObject decodes a JSON object from model output. The text may be
// wrapped in a markdown fence and may carry prose around the object. The
// returned map is nil unless the outcome is OK.
func ParseObject(text string) (map[string]any, Outcome) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minResponseLength {
		return nil, EmptyInput
	}
	text = stripFence(text)

	v, err := decodeStrict(text)
	if err != nil {
		v, err = decodeRecovered(text)
		if err != nil {
			return nil, ParseFailure
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ShapeMismatch
	}
	return obj, OK
}

// stripFence removes a leading ``` fence (with an optional json tag) and
// everything from the closing fence on.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func decodeStrict(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeRecovered tries every balanced {...} span of s, largest first, and
// returns the first one that decodes.
func decodeRecovered(s string) (any, error) {
	spans := balancedObjects(s)
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})
	for _, sp := range spans {
		if v, err := decodeStrict(s[sp.start:sp.end]); err == nil {
			return v, nil
		}
	}
	return nil, errNoObject
}

type span struct{ start, end int }

// balancedObjects returns the byte ranges of every brace-balanced span in s.
// Braces inside JSON strings are ignored. Nested spans are reported too so a
// broken outer object can still yield a usable inner one.
func balancedObjects(s string) []span {
	var (
		spans    []span
		stack    []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
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
			// Quotes only matter once an object is open.
			if len(stack) > 0 {
				inString = true
			}
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			spans = append(spans, span{start: start, end: i + 1})
		}
	}
	return spans
}
