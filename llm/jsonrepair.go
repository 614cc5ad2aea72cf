package llm

import (
	"strings"

	json "github.com/goccy/go-json"
)

// StripCodeFences removes a surrounding markdown code fence (``` or
// ```json) from an LLM response, returning the inner content. Text without
// a fence is returned unchanged.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	rest := trimmed[start+3:]
	// Drop an optional language tag up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isLanguageTag(firstLine) {
			rest = rest[nl+1:]
		}
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ExtractJSONSpan trims s to the outermost JSON value: from the first
// opening brace or bracket to the last closing delimiter matching it.
// Returns s unchanged when no opening delimiter is found.
func ExtractJSONSpan(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, closer := objStart, byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start, closer = arrStart, byte(']')
	}
	if start < 0 {
		return s
	}

	end := strings.LastIndexByte(s, closer)
	if end <= start {
		// No closer at all: keep the tail so structural completion can
		// finish the job.
		return s[start:]
	}
	return s[start : end+1]
}

// CompleteJSON attempts structural completion of a truncated JSON text:
// it scans character by character (respecting string and escape state),
// closes an unterminated string, strips a trailing comma, and appends the
// missing closing delimiters in LIFO order.
func CompleteJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if inString {
		// A trailing backslash would escape the quote we are about to add.
		if escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}

	trimmed := strings.TrimRight(out, " \t\r\n")
	if strings.HasSuffix(trimmed, ",") {
		out = trimmed[:len(trimmed)-1]
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

// RepairJSON runs the full repair pipeline over a raw LLM response: fence
// stripping, span extraction, and, when the span still does not parse,
// structural completion. The second return reports whether the final text
// parses as JSON.
func RepairJSON(raw string) (string, bool) {
	s := ExtractJSONSpan(StripCodeFences(raw))
	if json.Valid([]byte(s)) {
		return s, true
	}
	completed := CompleteJSON(s)
	return completed, json.Valid([]byte(completed))
}
