// Package markup renders untrusted wiki HTML into chat markup or plain text.
//
// The package handles:
//   - Escaping literal text so it cannot open formatting, mentions or links
//   - UTF-16 length accounting (the chat platform's native unit)
//   - Link-safe truncation and boundary-preferring message splitting
//   - A streaming transcoder from HTML tag events to markup or plain text
package markup

import "strings"

// EscapeOptions tunes Escape.
type EscapeOptions struct {
	// Markup marks text that already contains generated link syntax;
	// well-formed `[label](<url>)` spans are copied untouched.
	Markup bool
	// KeepLinks leaves bare http(s) URLs clickable.
	KeepLinks bool
}

// reserved holds every character that has meaning in the target dialect.
var reserved = [256]bool{
	'\\': true,
	'`':  true,
	'*':  true,
	'_':  true,
	'~':  true,
	'|':  true,
	'<':  true,
	'>':  true,
	'{':  true,
	'}':  true,
	'@':  true,
	'[':  true,
	']':  true,
	'(':  true,
	')':  true,
	'#':  true,
	':':  true,
}

// IsReserved reports whether c must be escaped in literal text.
func IsReserved(c byte) bool {
	return reserved[c]
}

// Escape converts literal text into text that renders verbatim.
//
// Every reserved character is prefixed with a backslash (the backslash itself
// included, so existing escapes cannot be smuggled through) and `//` is split
// into `/\/` so it is never read as a protocol-relative URL.
func Escape(text string, opts EscapeOptions) string {
	if text == "" {
		return ""
	}

	var sb strings.Builder

	sb.Grow(len(text) + len(text)/8)

	for i := 0; i < len(text); {
		if opts.Markup && text[i] == '[' {
			if span, ok := scanLinkAt(text, i); ok {
				sb.WriteString(text[i:span.end])
				i = span.end

				continue
			}
		}

		if opts.KeepLinks {
			if end := bareURLEnd(text, i); end > i {
				sb.WriteString(text[i:end])
				i = end

				continue
			}
		}

		c := text[i]

		switch {
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			sb.WriteString(`/\/`)
			i += 2

			continue
		case reserved[c]:
			sb.WriteByte('\\')
		}

		sb.WriteByte(c)
		i++
	}

	return sb.String()
}

// EscapeText is Escape with default options.
func EscapeText(text string) string {
	return Escape(text, EscapeOptions{})
}

// bareURLEnd returns the end offset of an http(s) URL starting at text[i],
// or i when none starts there.
func bareURLEnd(text string, i int) int {
	if i > 0 && isURLByte(text[i-1]) {
		return i
	}

	rest := text[i:]

	var scheme int

	switch {
	case hasPrefixFold(rest, "https://"):
		scheme = len("https://")
	case hasPrefixFold(rest, "http://"):
		scheme = len("http://")
	default:
		return i
	}

	end := i + scheme
	for end < len(text) && isURLByte(text[end]) {
		end++
	}

	if end == i+scheme {
		return i
	}

	return end
}

func isURLByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '<', '>', '"', '`', '|', '[', ']', '(', ')', '{', '}', '\\':
		return false
	}

	return c > 0x20 && c != 0x7f
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// delimiters lists the toggle tokens StripDelimiters removes, longest first.
var delimiters = []string{"***", "**", "__", "~~", "*", "`"}

// StripDelimiters removes formatting toggles and escape markers, leaving the
// visible text. Used to decide whether rendered text is visually empty.
func StripDelimiters(s string) string {
	var sb strings.Builder

	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) {
			sb.WriteByte(s[i+1])
			i += 2

			continue
		}

		matched := false

		for _, d := range delimiters {
			if strings.HasPrefix(s[i:], d) {
				i += len(d)
				matched = true

				break
			}
		}

		if !matched {
			sb.WriteByte(s[i])
			i++
		}
	}

	return sb.String()
}
