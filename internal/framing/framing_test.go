package framing_test

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufal/udpipe/internal/framing"
)

func readAll(t *testing.T, f framing.Framer) []framing.Block {
	t.Helper()

	blocks := []framing.Block{}
	for {
		block, err := f.Next()
		if err == io.EOF {
			return blocks
		}
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
}

func texts(blocks []framing.Block) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Text)
	}

	return out
}

func TestWhole(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input    string
		expected string
	}{
		"empty input":           {input: "", expected: ""},
		"single line":           {input: "word1 word2\n", expected: "word1 word2\n"},
		"missing final newline": {input: "a\nb", expected: "a\nb\n"},
		"blank lines kept":      {input: "a\n\n\nb\n\n", expected: "a\n\n\nb\n\n"},
		"crlf":                  {input: "a\r\nb\r\n", expected: "a\nb\n"},
		"lone newline":          {input: "\n", expected: "\n"},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			blocks := readAll(t, framing.NewWhole(strings.NewReader(tc.input)))
			require.Len(t, blocks, 1)
			assert.Equal(t, framing.Block{Index: 0, Text: tc.expected}, blocks[0])
		})
	}
}

func TestBlocks(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input     string
		keepEmpty bool
		expected  []string
	}{
		"empty input": {
			input:    "",
			expected: []string{},
		},
		"empty input keep empty": {
			input:     "",
			keepEmpty: true,
			expected:  []string{""},
		},
		"no blank line": {
			input:    "a\nb\n",
			expected: []string{"a\nb\n"},
		},
		"two paragraphs": {
			input:    "a\nb\n\nc\n",
			expected: []string{"a\nb\n\n", "c\n"},
		},
		"missing final newline": {
			input:    "a\n\nb",
			expected: []string{"a\n\n", "b\n"},
		},
		"trailing blank line": {
			input:    "a\n\n",
			expected: []string{"a\n\n"},
		},
		"trailing blank line keep empty": {
			input:     "a\n\n",
			keepEmpty: true,
			expected:  []string{"a\n\n", ""},
		},
		"consecutive blank lines": {
			input:    "a\n\n\n\nb\n",
			expected: []string{"a\n\n", "b\n"},
		},
		"consecutive blank lines keep empty": {
			input:     "a\n\n\n\nb\n",
			keepEmpty: true,
			expected:  []string{"a\n\n", "\n", "\n", "b\n"},
		},
		"leading blank line": {
			input:    "\na\n",
			expected: []string{"a\n"},
		},
		"leading blank line keep empty": {
			input:     "\na\n",
			keepEmpty: true,
			expected:  []string{"\n", "a\n"},
		},
		"crlf": {
			input:    "a\r\nb\r\n\r\nc\r\n",
			expected: []string{"a\nb\n\n", "c\n"},
		},
		"line of spaces is not blank": {
			input:    "a\n \nb\n",
			expected: []string{"a\n \nb\n"},
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			blocks := readAll(t, framing.NewBlocks(strings.NewReader(tc.input), framing.KeepEmpty(tc.keepEmpty)))
			assert.Equal(t, tc.expected, texts(blocks))
			for i, b := range blocks {
				assert.Equal(t, i, b.Index)
			}
		})
	}
}

func TestBlocksReadsLazily(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	defer r.Close()
	blocks := framing.NewBlocks(r)

	go func() {
		_, _ = io.WriteString(w, "first\n\n")
	}()
	block, err := blocks.Next()
	require.NoError(t, err)
	assert.Equal(t, "first\n\n", block.Text)

	go func() {
		_, _ = io.WriteString(w, "second\n")
		_ = w.Close()
	}()
	block, err = blocks.Next()
	require.NoError(t, err)
	assert.Equal(t, framing.Block{Index: 1, Text: "second\n"}, block)

	_, err = blocks.Next()
	assert.Equal(t, io.EOF, err)
}

func TestBlocksLongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1<<20)
	blocks := readAll(t, framing.NewBlocks(strings.NewReader(long+"\n")))
	require.Len(t, blocks, 1)
	assert.Equal(t, long+"\n", blocks[0].Text)
}

func TestReadError(t *testing.T) {
	t.Parallel()

	_, err := framing.NewBlocks(iotest.ErrReader(assert.AnError)).Next()
	assert.ErrorIs(t, err, assert.AnError)

	_, err = framing.NewWhole(iotest.ErrReader(assert.AnError)).Next()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBlockEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, framing.Block{}.Empty())
	assert.True(t, framing.Block{Text: "\n"}.Empty())
	assert.False(t, framing.Block{Text: "a\n"}.Empty())
	assert.False(t, framing.Block{Text: "a\n\n"}.Empty())
}
