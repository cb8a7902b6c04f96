package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitMessageShortText(t *testing.T) {
	require.Equal(t, []string{"short"}, SplitMessage("short", SplitOptions{}))
	require.Equal(t, []string{""}, SplitMessage("", SplitOptions{}))
}

func TestSplitMessageOnLines(t *testing.T) {
	got := SplitMessage("aaaa\nbbbb\ncccc\ndddd", SplitOptions{MaxLength: 12})

	require.Equal(t, []string{"aaaa\nbbbb", "cccc\ndddd"}, got)
}

func TestSplitMessageWrapsChunks(t *testing.T) {
	opts := SplitOptions{MaxLength: 20, Prepend: "```\n", Append: "\n```"}
	text := "aaaa\nbbbb\ncccc\ndddd\neeee"

	got := SplitMessage(text, opts)

	require.Equal(t, []string{"aaaa\nbbbb\ncccc\n```", "```\ndddd\neeee"}, got)

	for _, chunk := range got {
		require.LessOrEqual(t, Length(chunk), opts.MaxLength)
	}

	require.Equal(t, text, rejoin(got, opts))
}

func TestSplitMessageOversizeSegment(t *testing.T) {
	got := SplitMessage("short\n"+strings.Repeat("x", 30), SplitOptions{MaxLength: 10})

	require.Equal(t, []string{"short", strings.Repeat("x", 9) + Ellipsis}, got)
}

func TestSplitMessageRoundTrip(t *testing.T) {
	var lines []string
	for i := 0; i < 300; i++ {
		lines = append(lines, strings.Repeat("line ", i%13+1))
	}

	text := strings.Join(lines, "\n")
	opts := SplitOptions{MaxLength: 120, Prepend: "> ", Append: " …"}

	got := SplitMessage(text, opts)

	require.Greater(t, len(got), 1)

	for _, chunk := range got {
		require.LessOrEqual(t, Length(chunk), opts.MaxLength)
	}

	require.Equal(t, text, rejoin(got, opts))
}

func TestSplitMessageCustomBoundary(t *testing.T) {
	got := SplitMessage("one two three four", SplitOptions{MaxLength: 9, Char: " "})

	require.Equal(t, []string{"one two", "three", "four"}, got)
}

func rejoin(chunks []string, opts SplitOptions) string {
	stripped := make([]string, len(chunks))

	for i, chunk := range chunks {
		if i > 0 {
			chunk = strings.TrimPrefix(chunk, opts.Prepend)
		}

		if i < len(chunks)-1 {
			chunk = strings.TrimSuffix(chunk, opts.Append)
		}

		stripped[i] = chunk
	}

	sep := opts.Char
	if sep == "" {
		sep = "\n"
	}

	return strings.Join(stripped, sep)
}
