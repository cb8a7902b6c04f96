package markup

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/lueurxax/wikirender/internal/render/htmlstream"
)

// UnknownLink is emitted for MediaWiki link-holder comments that were never
// replaced by the parser. Callers substitute something meaningful for it.
const UnknownLink = "*UNKNOWN LINK*"

// limitSlack is how far past Options.Limit the walk keeps consuming events
// before it stops and truncates.
const limitSlack = 256

// Mode selects the output representation.
type Mode int

const (
	// ModePlain strips styling and links, keeping line structure.
	ModePlain Mode = iota
	// ModeMarkup renders formatting toggles, code and links.
	ModeMarkup
)

// Options controls a render.
type Options struct {
	// PageLinkBase resolves relative hrefs; links are only rendered when set.
	PageLinkBase string
	// Escape is applied to text outside links and code.
	Escape EscapeOptions
	// Limit bounds the output in UTF-16 units (0 = unbounded).
	Limit int
}

// Transcoder renders HTML event streams. It holds only immutable rules and is
// safe for concurrent use; every render gets fresh state.
type Transcoder struct {
	rules *ruleSet
}

// NewTranscoder creates a transcoder with the given ignore rules.
func NewTranscoder(rules IgnoreRules) *Transcoder {
	return &Transcoder{rules: compileRules(rules)}
}

var defaultTranscoder = NewTranscoder(DefaultIgnoreRules())

// ToPlain renders html as escaped plain text with the default rules.
func ToPlain(html string) string {
	return defaultTranscoder.Plain(html)
}

// ToMarkup renders html as markup with the default rules.
func ToMarkup(html string, opts Options) string {
	return defaultTranscoder.Markup(html, opts)
}

// Plain renders html as escaped plain text.
func (t *Transcoder) Plain(html string) string {
	w := t.newWalker(ModePlain, Options{})
	htmlstream.WalkString(html, w)

	return w.finish()
}

// Markup renders html as markup.
func (t *Transcoder) Markup(html string, opts Options) string {
	w := t.newWalker(ModeMarkup, opts)
	htmlstream.WalkString(html, w)

	return w.finish()
}

// Render consumes r in the given mode. Only read errors are returned.
func (t *Transcoder) Render(r io.Reader, mode Mode, opts Options) (string, error) {
	w := t.newWalker(mode, opts)
	if err := htmlstream.Walk(r, w); err != nil {
		return "", err
	}

	return w.finish(), nil
}

func (t *Transcoder) newWalker(mode Mode, opts Options) *walker {
	w := &walker{
		mode:      mode,
		opts:      opts,
		rules:     t.rules,
		listDepth: -1,
	}

	if mode == ModePlain {
		w.opts.Escape = EscapeOptions{}
	}

	if mode == ModeMarkup && opts.PageLinkBase != "" {
		if base, err := url.Parse(opts.PageLinkBase); err == nil && isWebScheme(base.Scheme) {
			w.base = base
		}
	}

	return w
}

// frame is an open formatting toggle or link.
type frame struct {
	tag   string
	open  string
	close string
	pos   int
	link  bool
}

// closedStyle is a toggle whose closer ends at end. A toggle of the same
// kind opened right there is merged back into it.
type closedStyle struct {
	frame
	end int
}

type listFrame struct {
	tag        string
	ordered    bool
	count      int
	horizontal bool
}

type renderedLink struct {
	href  string
	label string
	end   int
}

// walker is the per-render transcoder state. It implements htmlstream.Handler.
type walker struct {
	mode  Mode
	opts  Options
	rules *ruleSet
	base  *url.URL

	buf   []byte
	units int

	ignoredTag   string
	ignoredDepth int

	inCode           bool
	codeBlock        bool
	codeTag          string
	codeDepth        int
	codeStart        int
	codeLanguageHint string

	href      string
	linkLabel strings.Builder
	linkAlt   string
	prevLink  renderedLink

	listDepth         int
	lists             []listFrame
	horizontalListTag string
	horizontalDepth   int
	horizontalItems   int

	frames []frame
	closed []closedStyle
}

func (w *walker) Stopped() bool {
	return w.opts.Limit > 0 && w.units > w.opts.Limit+limitSlack
}

func (w *walker) OpenTag(tag htmlstream.Tag) {
	if w.ignoredTag != "" {
		if tag.Name == w.ignoredTag {
			w.ignoredDepth++
		}

		return
	}

	if w.rules.ignores(tag) {
		w.ignoredTag = tag.Name
		w.ignoredDepth = 0

		return
	}

	if w.inCode {
		if tag.Name == w.codeTag {
			w.codeDepth++
		}

		if tag.Name == "br" {
			w.write("\n")
		}

		return
	}

	w.trackHorizontal(tag)

	if tag.Name == "div" && tag.HasClass("mw-highlight") {
		w.codeLanguageHint = languageHint(tag)
	}

	w.openElement(tag)
}

func (w *walker) openElement(tag htmlstream.Tag) {
	switch tag.Name {
	case "b", "strong":
		w.openStyle(tag.Name, "**", "**")
	case "i", "em":
		w.openStyle(tag.Name, "*", "*")
	case "s", "del", "strike":
		w.openStyle(tag.Name, "~~", "~~")
	case "u", "ins":
		w.openStyle(tag.Name, "__", "__")
	case "h1", "h2", "h3", "h4", "h5", "h6":
		w.block()
		open, closing := headingTokens(tag.Name)
		w.openStyle(tag.Name, open, closing)
	case "code":
		w.openCode(tag, false)
	case "pre":
		w.openCode(tag, true)
	case "br":
		w.trimTrailing(" ")
		w.write("\n")
	case "hr":
		w.trimTrailing(" \n")
		w.write("\n─────\n")
	case "p", "div", "blockquote", "table", "tr", "figure", "figcaption", "center", "caption":
		w.block()
	case "ul", "ol", "dl":
		w.openList(tag)
	case "li":
		w.listItem()
	case "dt":
		w.block()
		w.openStyle("dt", "**", "**")
	case "dd":
		w.block()
		w.indent(w.listDepth + 1)
	case "td", "th":
		w.cellBreak()
	case "a":
		w.openLink(tag)
	case "img":
		w.image(tag)
	}
}

func (w *walker) CloseTag(name string) {
	if w.ignoredTag != "" {
		if name == w.ignoredTag {
			if w.ignoredDepth > 0 {
				w.ignoredDepth--
			} else {
				w.ignoredTag = ""
			}
		}

		return
	}

	if w.inCode {
		if name != w.codeTag {
			return
		}

		if w.codeDepth > 0 {
			w.codeDepth--
			return
		}

		w.closeCode()

		return
	}

	w.closeElement(name)

	if name == w.horizontalListTag {
		if w.horizontalDepth > 0 {
			w.horizontalDepth--
		} else {
			w.horizontalListTag = ""
			w.horizontalItems = 0
			w.block()
		}
	}
}

func (w *walker) closeElement(name string) {
	switch name {
	case "b", "strong", "i", "em", "s", "del", "strike", "u", "ins", "a":
		w.closeFrame(name)
	case "h1", "h2", "h3", "h4", "h5", "h6", "dt":
		w.closeFrame(name)
		w.block()
	case "p", "div", "blockquote", "table", "tr", "figure", "figcaption", "center", "caption", "li", "dd":
		w.block()
	case "ul", "ol", "dl":
		w.closeList(name)
	}
}

func (w *walker) Text(text string) {
	if w.ignoredTag != "" {
		return
	}

	text = sanitizeText(text)

	if w.inCode {
		w.codeText(text)
		return
	}

	text = collapseWhitespace(text)
	if w.afterSpace() {
		text = strings.TrimLeft(text, " ")
	}

	if text == "" {
		return
	}

	if w.href != "" {
		w.linkText(text)
		return
	}

	text = w.hoistLeadingSpace(text)
	w.write(Escape(text, w.opts.Escape))
}

func (w *walker) Comment(text string) {
	if w.ignoredTag != "" || w.inCode {
		return
	}

	if isLinkHolder(strings.TrimSpace(text)) {
		w.write(UnknownLink)
	}
}

func (w *walker) codeText(text string) {
	if w.mode == ModePlain {
		w.write(EscapeText(collapseWhitespace(text)))
		return
	}

	text = strings.ReplaceAll(text, "`", "ˋ")

	if !w.codeBlock {
		text = strings.NewReplacer("\n", " ", "\r", "").Replace(text)
	}

	w.write(text)
}

func (w *walker) linkText(text string) {
	trimmed := strings.TrimSpace(text)
	if w.linkAlt != "" && trimmed == w.linkAlt {
		return
	}

	w.linkAlt = ""
	w.linkLabel.WriteString(text)
	text = w.hoistLeadingSpace(text)
	w.write(Escape(text, EscapeOptions{}))
}

// hoistLeadingSpace moves a leading space in front of a toggle that was
// opened immediately before, so `** bold**` becomes ` **bold**`.
func (w *walker) hoistLeadingSpace(text string) string {
	if len(w.frames) == 0 || !strings.HasPrefix(text, " ") {
		return text
	}

	top := w.frames[len(w.frames)-1]
	if top.link || top.pos != len(w.buf) || top.open == "" {
		return text
	}

	openAt := top.pos - len(top.open)
	if openAt > 0 && w.buf[openAt-1] != ' ' && w.buf[openAt-1] != '\n' {
		w.buf = append(w.buf[:openAt], append([]byte(" "), w.buf[openAt:]...)...)
		w.units++
		w.frames[len(w.frames)-1].pos++
	}

	return strings.TrimLeft(text, " ")
}

func (w *walker) openStyle(tag, open, closing string) {
	if w.mode == ModePlain || open == "" {
		return
	}

	if n := len(w.closed); n > 0 {
		last := w.closed[n-1]
		if last.end == len(w.buf) && last.open == open && last.close == closing {
			w.closed = w.closed[:n-1]
			w.truncate(last.end - len(last.close))
			w.frames = append(w.frames, frame{tag: tag, open: open, close: closing, pos: last.pos})

			return
		}
	}

	w.write(open)
	w.frames = append(w.frames, frame{tag: tag, open: open, close: closing, pos: len(w.buf)})
}

// closeFrame closes the innermost frame opened by tag together with every
// frame opened after it. A close without a matching open is ignored.
func (w *walker) closeFrame(tag string) {
	idx := -1

	for i := len(w.frames) - 1; i >= 0; i-- {
		if w.frames[i].tag == tag {
			idx = i
			break
		}
	}

	if idx < 0 {
		return
	}

	for len(w.frames) > idx {
		w.popFrame()
	}
}

func (w *walker) popFrame() {
	f := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]

	if f.link {
		w.closeLink(f)
		return
	}

	trailing := w.cutTrailingSpace(f.pos)

	if len(w.buf) == f.pos {
		w.truncate(f.pos - len(f.open))
	} else {
		if n := len(w.closed); n > 0 && w.closed[n-1].end != len(w.buf) {
			w.closed = w.closed[:0]
		}

		w.write(f.close)
		w.closed = append(w.closed, closedStyle{frame: f, end: len(w.buf)})
	}

	w.write(trailing)
}

// cutTrailingSpace removes whitespace at the end of the buffer, never before
// floor, and returns it.
func (w *walker) cutTrailingSpace(floor int) string {
	end := len(w.buf)
	for end > floor && (w.buf[end-1] == ' ' || w.buf[end-1] == '\n') {
		end--
	}

	trailing := string(w.buf[end:])
	w.truncate(end)

	return trailing
}

func (w *walker) openLink(tag htmlstream.Tag) {
	if w.base == nil || w.href != "" {
		return
	}

	href, ok := tag.Attr("href")
	if !ok || !allowedHref(href) {
		return
	}

	resolved := w.resolve(href)
	if resolved == "" {
		return
	}

	w.href = resolved
	w.linkAlt = ""
	w.linkLabel.Reset()
	w.write("[")
	w.frames = append(w.frames, frame{tag: "a", pos: len(w.buf), link: true})
}

func (w *walker) closeLink(f frame) {
	href := w.href
	label := strings.TrimSpace(w.linkLabel.String())
	w.href = ""
	w.linkAlt = ""
	w.linkLabel.Reset()

	trailing := w.cutTrailingSpace(f.pos)

	if len(w.buf) == f.pos {
		w.truncate(f.pos - 1)
		w.write(trailing)

		return
	}

	prev := w.prevLink
	start := f.pos - 1

	if prev.href == href && prev.label == label && prev.end <= start &&
		len(bytes.TrimSpace(w.buf[prev.end:start])) == 0 {
		w.truncate(prev.end)

		return
	}

	w.write("](<" + href + ">)")
	w.prevLink = renderedLink{href: href, label: label, end: len(w.buf)}
	w.write(trailing)
}

func (w *walker) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}

	u := w.base.ResolveReference(ref)
	if !isWebScheme(u.Scheme) || u.Host == "" {
		return ""
	}

	return linkTargetReplacer.Replace(u.String())
}

var linkTargetReplacer = strings.NewReplacer(
	"<", "%3C",
	">", "%3E",
	" ", "%20",
	"\n", "",
	"\r", "",
	"\t", "",
)

func (w *walker) image(tag htmlstream.Tag) {
	alt := strings.TrimSpace(collapseWhitespace(sanitizeText(tag.Attrs["alt"])))
	if alt == "" || isFileNameAlt(tag, alt) {
		return
	}

	if w.href != "" {
		w.linkLabel.WriteString(alt)
		w.write(Escape(alt, EscapeOptions{}))
		w.linkAlt = alt

		return
	}

	w.write(Escape(alt, w.opts.Escape))
}

func (w *walker) openCode(tag htmlstream.Tag, block bool) {
	lang := languageHint(tag)
	if lang == "" {
		lang = w.codeLanguageHint
	}

	w.codeLanguageHint = ""

	if block {
		w.block()
	}

	if w.mode == ModeMarkup {
		if block {
			w.write("```" + lang + "\n")
		} else {
			w.write("`")
		}
	}

	w.inCode = true
	w.codeBlock = block
	w.codeTag = tag.Name
	w.codeDepth = 0
	w.codeStart = len(w.buf)
}

func (w *walker) closeCode() {
	w.inCode = false

	if w.mode == ModePlain {
		if w.codeBlock {
			w.block()
		}

		return
	}

	if !w.codeBlock {
		if len(w.buf) == w.codeStart {
			w.truncate(w.codeStart - 1)
		} else {
			w.write("`")
		}

		return
	}

	if !w.endsWith("\n") {
		w.write("\n")
	}

	w.write("```")
	w.block()
}

func (w *walker) trackHorizontal(tag htmlstream.Tag) {
	if w.horizontalListTag != "" {
		if tag.Name == w.horizontalListTag {
			w.horizontalDepth++
		}

		return
	}

	if isHorizontalHint(tag) {
		w.block()
		w.horizontalListTag = tag.Name
		w.horizontalDepth = 0
		w.horizontalItems = 0
	}
}

func (w *walker) horizontal() bool {
	return w.horizontalListTag != ""
}

func (w *walker) openList(tag htmlstream.Tag) {
	if !w.horizontal() {
		w.block()
	}

	w.lists = append(w.lists, listFrame{
		tag:        tag.Name,
		ordered:    tag.Name == "ol",
		count:      listStart(tag) - 1,
		horizontal: w.horizontal(),
	})
	w.listDepth = len(w.lists) - 1
}

func (w *walker) closeList(name string) {
	idx := -1

	for i := len(w.lists) - 1; i >= 0; i-- {
		if w.lists[i].tag == name {
			idx = i
			break
		}
	}

	if idx < 0 {
		return
	}

	w.lists = w.lists[:idx]
	w.listDepth = len(w.lists) - 1

	if !w.horizontal() {
		w.block()
	}
}

func (w *walker) listItem() {
	if w.horizontal() {
		w.horizontalItems++
		if w.horizontalItems > 1 {
			w.trimTrailing(" ")
			w.write(" • ")
		}

		return
	}

	bullet := "• "

	if len(w.lists) > 0 {
		top := &w.lists[len(w.lists)-1]
		top.count++

		if top.ordered {
			bullet = itoa(top.count) + ". "
		}
	}

	w.block()
	w.indent(max(w.listDepth, 0))
	w.write(bullet)
}

func (w *walker) indent(depth int) {
	if depth > 0 {
		w.write(strings.Repeat(indentUnit, depth))
	}
}

func (w *walker) cellBreak() {
	if len(w.buf) > 0 && !w.afterSpace() {
		w.write(" ")
	}
}

// block ensures the next output starts on a fresh line.
func (w *walker) block() {
	if w.horizontal() {
		return
	}

	w.trimTrailing(" ")

	if len(w.buf) > 0 && !w.endsWith("\n") {
		w.write("\n")
	}
}

func (w *walker) write(s string) {
	w.buf = append(w.buf, s...)
	w.units += Length(s)
}

func (w *walker) truncate(n int) {
	if n < 0 || n > len(w.buf) {
		return
	}

	w.units -= Length(string(w.buf[n:]))
	w.buf = w.buf[:n]

	for len(w.closed) > 0 && w.closed[len(w.closed)-1].end > n {
		w.closed = w.closed[:len(w.closed)-1]
	}
}

func (w *walker) trimTrailing(cutset string) {
	floor := 0
	if len(w.frames) > 0 {
		floor = w.frames[len(w.frames)-1].pos
	}

	end := len(w.buf)
	for end > floor && strings.IndexByte(cutset, w.buf[end-1]) >= 0 {
		end--
	}

	w.truncate(end)
}

func (w *walker) endsWith(s string) bool {
	return bytes.HasSuffix(w.buf, []byte(s))
}

func (w *walker) afterSpace() bool {
	if len(w.buf) == 0 {
		return true
	}

	last := w.buf[len(w.buf)-1]

	return last == ' ' || last == '\n'
}

// finish closes everything still open and returns the bounded output.
func (w *walker) finish() string {
	if w.inCode {
		w.closeCode()
	}

	for len(w.frames) > 0 {
		w.popFrame()
	}

	out := normalizeOutput(string(w.buf))

	if w.opts.Limit > 0 {
		out = LimitLength(out, w.opts.Limit, DefaultMaxExtra)
	}

	return out
}
