// Command udpipe-run processes all of standard input with a UDPipe model at once.
//
//	udpipe-run [flags] input_format output_format model_file
package main

import (
	"github.com/ufal/udpipe/internal/cli"
	"github.com/ufal/udpipe/internal/runner"
)

func main() {
	cli.Main("udpipe-run", runner.Whole)
}
