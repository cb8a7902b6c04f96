package markup

import "strings"

// linkSpan locates a generated masked link `[label](<url>)` inside a string.
// All offsets are byte offsets; label excludes the brackets.
type linkSpan struct {
	start, end           int
	labelStart, labelEnd int
}

func (l linkSpan) label(s string) string {
	return s[l.labelStart:l.labelEnd]
}

// scanLinkAt reports whether a well-formed masked link starts at s[i].
//
// The label may contain escaped brackets (`\[`, `\]`) but no raw `[` or line
// break; the target is wrapped in angle brackets and may not contain `<`, `>`
// or whitespace. Scanning a failed label stops at the next raw `[`, so
// repeated calls over a string stay linear.
func scanLinkAt(s string, i int) (linkSpan, bool) {
	if i >= len(s) || s[i] != '[' || isEscaped(s, i) {
		return linkSpan{}, false
	}

	j := i + 1

	for j < len(s) {
		c := s[j]

		if c == '\\' && j+1 < len(s) {
			j += 2
			continue
		}

		if c == '[' || c == '\n' {
			return linkSpan{}, false
		}

		if c == ']' {
			break
		}

		j++
	}

	if j >= len(s) || j == i+1 || !strings.HasPrefix(s[j:], "](<") {
		return linkSpan{}, false
	}

	k := j + len("](<")
	urlStart := k

	for k < len(s) && s[k] != '>' {
		switch s[k] {
		case '<', ' ', '\t', '\n', '\r':
			return linkSpan{}, false
		}

		k++
	}

	if k == urlStart || k+1 >= len(s) || s[k+1] != ')' {
		return linkSpan{}, false
	}

	return linkSpan{start: i, end: k + 2, labelStart: i + 1, labelEnd: j}, true
}

// isEscaped reports whether s[i] is preceded by an odd number of backslashes.
func isEscaped(s string, i int) bool {
	n := 0

	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}

	return n%2 == 1
}
