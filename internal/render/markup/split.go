package markup

import "strings"

// DefaultMessageLength is the chat platform's message ceiling.
const DefaultMessageLength = 2000

// SplitOptions configures SplitMessage.
type SplitOptions struct {
	// MaxLength is the ceiling per chunk in UTF-16 units (default 2000).
	MaxLength int
	// Char is the boundary to split on (default "\n").
	Char string
	// Prepend starts every chunk after the first.
	Prepend string
	// Append ends every chunk before the last.
	Append string
}

func (o SplitOptions) withDefaults() SplitOptions {
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMessageLength
	}

	if o.Char == "" {
		o.Char = "\n"
	}

	return o
}

// SplitMessage splits text on a boundary into chunks that each fit MaxLength,
// prepend and append included. Segments that cannot fit on their own are cut
// with LimitLength, so the only loss is at those forced cut points.
func SplitMessage(text string, opts SplitOptions) []string {
	opts = opts.withDefaults()

	if Length(text) <= opts.MaxLength {
		return []string{text}
	}

	s := newSplitter(opts)

	for _, segment := range strings.Split(text, opts.Char) {
		s.add(segment)
	}

	return s.finish()
}

type splitter struct {
	opts       SplitOptions
	parts      []string
	current    strings.Builder
	currentLen int
	started    bool
	charLen    int
	segmentMax int
}

func newSplitter(opts SplitOptions) *splitter {
	segmentMax := opts.MaxLength - Length(opts.Prepend) - Length(opts.Append) - Length(Ellipsis)
	if segmentMax < 1 {
		segmentMax = 1
	}

	s := &splitter{
		opts:       opts,
		charLen:    Length(opts.Char),
		segmentMax: segmentMax,
	}

	return s
}

func (s *splitter) add(segment string) {
	segLen := Length(segment)
	if segLen > s.segmentMax {
		segment = LimitLength(segment, s.segmentMax, 0)
		segLen = Length(segment)
	}

	if s.started && s.currentLen+s.charLen+segLen+Length(s.opts.Append) > s.opts.MaxLength {
		s.flush()
	}

	if s.started {
		s.current.WriteString(s.opts.Char)
		s.currentLen += s.charLen
	}

	s.current.WriteString(segment)
	s.currentLen += segLen
	s.started = true
}

func (s *splitter) flush() {
	s.parts = append(s.parts, s.current.String()+s.opts.Append)
	s.current.Reset()
	s.current.WriteString(s.opts.Prepend)
	s.currentLen = Length(s.opts.Prepend)
	s.started = false
}

func (s *splitter) finish() []string {
	if s.started || len(s.parts) == 0 {
		s.parts = append(s.parts, s.current.String())
	}

	return s.parts
}
