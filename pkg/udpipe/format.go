package udpipe

import "strings"

// Input format names understood by UDPipe.
const (
	InputTokenize   = "tokenize"
	InputTokenizer  = "tokenizer"
	InputCoNLLU     = "conllu"
	InputHorizontal = "horizontal"
	InputVertical   = "vertical"
)

// InputFormat is a parsed input format string.
type InputFormat struct {
	// Name is the format name without options, "tokenizer" for both tokenize and tokenizer=<opts>.
	Name string
	// Options are the options following '=', if any.
	Options string
}

// Tokenize reports whether the input is raw text that the pipeline must tokenize.
func (f InputFormat) Tokenize() bool {
	return f.Name == InputTokenizer
}

// ParseInput classifies an input format string.
//
// "tokenize" and "tokenizer=<opts>" both select the tokenizer. Every other value is kept as the format name, with
// options split on the first '='. Unknown names are passed through untouched for the backend to reject.
func ParseInput(input string) InputFormat {
	name, opts, _ := strings.Cut(input, "=")
	if name == InputTokenize || name == InputTokenizer {
		return InputFormat{Name: InputTokenizer, Options: opts}
	}

	return InputFormat{Name: name, Options: opts}
}

// String returns the format in the form accepted by the udpipe command line.
func (f InputFormat) String() string {
	if f.Options == "" {
		return f.Name
	}

	return f.Name + "=" + f.Options
}
