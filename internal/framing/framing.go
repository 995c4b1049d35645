// Package framing cuts standard input into the texts handed to a pipeline.
package framing

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Block is one text submitted to a pipeline. Every line of Text ends with a single '\n'.
type Block struct {
	// Index is the position of the block among the submitted blocks, starting at 0.
	Index int
	Text  string
}

// Empty reports whether the block holds no non-empty line.
func (b Block) Empty() bool {
	return b.Text == "" || b.Text == "\n"
}

// Framer yields blocks in input order. Next returns io.EOF once the input is exhausted.
type Framer interface {
	Next() (Block, error)
}

// lineReader reads lines without their terminator, of any length.
type lineReader struct {
	r *bufio.Reader
}

// readLine returns false when no line could be read because the input is exhausted.
func (lr *lineReader) readLine() (string, bool, error) {
	line, err := lr.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, errors.Wrap(err, "unable to read input")
	}
	if line == "" && err != nil {
		return "", false, nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	return line, true, nil
}

// Whole is a Framer returning all of its input as a single block.
type Whole struct {
	lines *lineReader
	done  bool
}

// NewWhole creates a Framer reading r to its end.
func NewWhole(r io.Reader) *Whole {
	return &Whole{lines: &lineReader{r: bufio.NewReader(r)}}
}

// Next returns the whole input once, then io.EOF. A missing final newline is added. An empty input gives an
// empty block.
func (w *Whole) Next() (Block, error) {
	if w.done {
		return Block{}, io.EOF
	}

	var text strings.Builder
	for {
		line, ok, err := w.lines.readLine()
		if err != nil {
			return Block{}, err
		}
		if !ok {
			break
		}
		text.WriteString(line)
		text.WriteByte('\n')
	}
	w.done = true

	return Block{Index: 0, Text: text.String()}, nil
}

// Blocks is a Framer splitting its input on empty lines.
//
// A block is the run of non-empty lines up to an empty line or the end of the input. When the block was ended by
// an empty line, a single '\n' stands for it at the end of the text so that the pipeline sees the paragraph
// boundary.
type Blocks struct {
	lines     *lineReader
	keepEmpty bool
	eof       bool
	next      int
}

// BlocksOption configures a Blocks framer.
type BlocksOption func(b *Blocks)

// KeepEmpty makes Blocks return the blocks holding no line, as found between consecutive empty lines or at the
// end of the input. They are skipped otherwise.
func KeepEmpty(keep bool) BlocksOption {
	return func(b *Blocks) {
		b.keepEmpty = keep
	}
}

// NewBlocks creates a Framer splitting r on empty lines.
func NewBlocks(r io.Reader, opts ...BlocksOption) *Blocks {
	b := &Blocks{lines: &lineReader{r: bufio.NewReader(r)}}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Next reads lines up to the end of the next block. The underlying reader is buffered and may
// read ahead, but later blocks are not framed or returned until Next is called again.
func (b *Blocks) Next() (Block, error) {
	for !b.eof {
		text, err := b.read()
		if err != nil {
			return Block{}, err
		}
		block := Block{Index: b.next, Text: text}
		if block.Empty() && !b.keepEmpty {
			continue
		}
		b.next++

		return block, nil
	}

	return Block{}, io.EOF
}

func (b *Blocks) read() (string, error) {
	var text strings.Builder
	for {
		line, ok, err := b.lines.readLine()
		if err != nil {
			return "", err
		}
		if !ok {
			b.eof = true

			break
		}
		if line == "" {
			break
		}
		text.WriteString(line)
		text.WriteByte('\n')
	}
	if !b.eof {
		text.WriteByte('\n')
	}

	return text.String(), nil
}

var (
	_ Framer = (*Whole)(nil)
	_ Framer = (*Blocks)(nil)
)
