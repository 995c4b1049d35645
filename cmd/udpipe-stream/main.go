// Command udpipe-stream processes standard input with a UDPipe model one blank line delimited block at a time,
// writing the result of every block before reading the next one.
//
//	udpipe-stream [flags] input_format output_format model_file
package main

import (
	"github.com/ufal/udpipe/internal/cli"
	"github.com/ufal/udpipe/internal/runner"
)

func main() {
	cli.Main("udpipe-stream", runner.Blocks)
}
