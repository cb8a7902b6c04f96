package markup

import "strings"

// Ellipsis is appended at forced cut points when no localized marker is given.
const Ellipsis = "…"

// DefaultMaxExtra is how far a cut may stretch to keep a straddling link whole.
const DefaultMaxExtra = 20

// LimitLength truncates text to limit UTF-16 units plus Ellipsis.
// See Truncate for the link-preserving rules.
func LimitLength(text string, limit, maxExtra int) string {
	return Truncate(text, limit, maxExtra, Ellipsis)
}

// Truncate cuts text to limit UTF-16 units and appends ellipsis.
//
// A generated link straddling the cut is never severed: the whole link is kept
// when it ends within limit+maxExtra, otherwise its label alone is kept when
// that fits, otherwise the cut backs off to just before the link. The cut also
// never separates a backslash from the character it escapes.
func Truncate(text string, limit, maxExtra int, ellipsis string) string {
	if limit < 0 {
		limit = 0
	}

	if maxExtra < 0 {
		maxExtra = 0
	}

	if Length(text) <= limit {
		return text
	}

	cut := prefixBytes(text, limit)
	ceiling := limit + maxExtra

	for i := 0; i < cut; {
		idx := strings.IndexByte(text[i:cut], '[')
		if idx < 0 {
			break
		}

		i += idx

		span, ok := scanLinkAt(text, i)
		if !ok {
			i++
			continue
		}

		if span.end > cut {
			return cutAtLink(text, span, ceiling) + ellipsis
		}

		i = span.end
	}

	head := text[:cut]
	if strings.HasSuffix(head, `\`) && !isEscaped(head, len(head)-1) {
		head = head[:len(head)-1]
	}

	return head + ellipsis
}

func cutAtLink(text string, span linkSpan, ceiling int) string {
	before := text[:span.start]

	if Length(text[:span.end]) <= ceiling {
		return text[:span.end]
	}

	label := span.label(text)
	if Length(before)+Length(label) <= ceiling {
		return before + label
	}

	return before
}
