package markup

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/lueurxax/wikirender/internal/render/htmlstream"
)

// indentUnit is repeated once per list nesting level. An em space survives
// the chat client's leading-whitespace trimming.
const indentUnit = "\u2003"

func headingTokens(tag string) (open, closing string) {
	switch tag {
	case "h1":
		return "***__", "__***"
	case "h2":
		return "**__", "__**"
	case "h3":
		return "**", "**"
	case "h4":
		return "__", "__"
	case "h5":
		return "*", "*"
	default:
		return "", ""
	}
}

var languagePrefixes = []string{"mw-highlight-lang-", "language-", "lang-", "source-"}

// languageHint extracts a code-fence language from class names such as
// mw-highlight-lang-go or language-go.
func languageHint(tag htmlstream.Tag) string {
	for _, class := range tag.Classes() {
		for _, prefix := range languagePrefixes {
			if lang, ok := strings.CutPrefix(class, prefix); ok && validLanguage(lang) {
				return lang
			}
		}
	}

	return ""
}

func validLanguage(lang string) bool {
	if lang == "" || len(lang) > 32 {
		return false
	}

	for _, r := range lang {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '+') {
			return false
		}
	}

	return true
}

func isHorizontalHint(tag htmlstream.Tag) bool {
	if tag.HasClass("hlist") || tag.HasClass("inline-list") || tag.HasClass("flatlist") {
		return true
	}

	switch tag.Name {
	case "ul", "ol", "dl":
		return styleValue(tag.Attrs["style"], "display") == "inline"
	default:
		return false
	}
}

func listStart(tag htmlstream.Tag) int {
	if tag.Name != "ol" {
		return 1
	}

	if n, err := strconv.Atoi(strings.TrimSpace(tag.Attrs["start"])); err == nil {
		return n
	}

	return 1
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func isWebScheme(scheme string) bool {
	return strings.EqualFold(scheme, "http") || strings.EqualFold(scheme, "https")
}

// allowedHref accepts absolute web URLs, protocol-relative URLs, site paths
// and fragments. Everything else (javascript:, mailto:, bare relatives) is
// rendered as plain label text.
func allowedHref(href string) bool {
	href = strings.TrimSpace(href)

	switch {
	case hasPrefixFold(href, "http://"), hasPrefixFold(href, "https://"):
		return true
	case strings.HasPrefix(href, "/"), strings.HasPrefix(href, "#"):
		return true
	default:
		return false
	}
}

// isFileNameAlt reports whether alt merely repeats the image's file name,
// which MediaWiki uses as the default alt text.
func isFileNameAlt(tag htmlstream.Tag, alt string) bool {
	if name, ok := tag.Attr("data-image-name"); ok && strings.EqualFold(strings.TrimSpace(name), alt) {
		return true
	}

	src := tag.Attrs["src"]
	if src == "" || strings.HasPrefix(src, "data:") {
		src = tag.Attrs["data-src"]
	}

	if src == "" {
		return false
	}

	u, err := url.Parse(src)
	if err != nil {
		return false
	}

	want := strings.ReplaceAll(alt, " ", "_")
	segments := strings.Split(u.Path, "/")

	for i := 0; i+2 < len(segments); i++ {
		hash, sub := segments[i], segments[i+1]
		if len(hash) != 1 || len(sub) != 2 || !isHex(hash[0]) || sub[0] != hash[0] || !isHex(sub[1]) {
			continue
		}

		if strings.EqualFold(segments[i+2], want) {
			return true
		}
	}

	return false
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}

// isLinkHolder matches the parser's unreplaced link placeholders:
// LINK'" 12 or IWLINK'" 3:4.
func isLinkHolder(comment string) bool {
	comment = strings.TrimPrefix(comment, "IW")

	rest, ok := strings.CutPrefix(comment, `LINK'" `)
	if !ok {
		return false
	}

	first, second, hasSecond := strings.Cut(rest, ":")

	return isDigits(first) && (!hasSecond || isDigits(second))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// sanitizeText drops control characters and bidirectional overrides.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		case r >= '\u202a' && r <= '\u202e', r >= '\u2066' && r <= '\u2069':
			return -1
		}

		return r
	}, s)
}

// collapseWhitespace folds every run of ASCII whitespace into one space.
func collapseWhitespace(s string) string {
	var sb strings.Builder

	sb.Grow(len(s))

	inSpace := false

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\f':
			if !inSpace {
				sb.WriteByte(' ')
			}

			inSpace = true
		default:
			sb.WriteByte(s[i])
			inSpace = false
		}
	}

	return sb.String()
}

// normalizeOutput trims the rendered text and caps blank-line runs at one.
func normalizeOutput(s string) string {
	s = strings.TrimLeft(s, " \n")
	s = strings.TrimRightFunc(s, unicode.IsSpace)

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}

	return s
}
