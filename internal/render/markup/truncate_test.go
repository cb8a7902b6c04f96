package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimitLength(t *testing.T) {
	const linked = "ab [Label](<https://e.x/p>) tail"

	tests := []struct {
		name     string
		input    string
		limit    int
		maxExtra int
		expected string
	}{
		{
			name:     "fits",
			input:    "hello",
			limit:    5,
			expected: "hello",
		},
		{
			name:     "plain cut",
			input:    "hello world",
			limit:    5,
			expected: "hello…",
		},
		{
			name:     "straddling link kept whole",
			input:    linked,
			limit:    5,
			maxExtra: 30,
			expected: "ab [Label](<https://e.x/p>)…",
		},
		{
			name:     "straddling link reduced to label",
			input:    linked,
			limit:    5,
			maxExtra: 10,
			expected: "ab Label…",
		},
		{
			name:     "straddling link dropped",
			input:    linked,
			limit:    5,
			expected: "ab …",
		},
		{
			name:     "escape never split",
			input:    `ab\*cd`,
			limit:    3,
			expected: "ab…",
		},
		{
			name:     "surrogate pairs never split",
			input:    "😀😀😀",
			limit:    3,
			expected: "😀…",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LimitLength(tt.input, tt.limit, tt.maxExtra)
			if got != tt.expected {
				t.Errorf("LimitLength() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestLimitLengthBound(t *testing.T) {
	text := strings.Repeat("word [Some page](<https://wiki.example/wiki/Some_page>) more \\*text* ", 20)

	for limit := 0; limit < 200; limit += 7 {
		for _, extra := range []int{0, 20, 60} {
			got := LimitLength(text, limit, extra)
			require.LessOrEqual(t, Length(got), limit+extra+Length(Ellipsis), "limit %d extra %d", limit, extra)
			require.True(t, linksBalanced(got), "unbalanced link in %q", got)
		}
	}
}

func TestTruncateCustomMarker(t *testing.T) {
	require.Equal(t, "hel (more)", Truncate("hello", 3, 0, " (more)"))
}

// linksBalanced reports whether every `](<` belongs to a complete link.
func linksBalanced(s string) bool {
	complete := 0

	for i := 0; i < len(s); i++ {
		if s[i] != '[' {
			continue
		}

		if span, ok := scanLinkAt(s, i); ok {
			complete++
			i = span.end - 1
		}
	}

	return strings.Count(s, "](<") == complete
}
