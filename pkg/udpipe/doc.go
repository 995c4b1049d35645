// Package udpipe defines the contract the runners need from a UDPipe pipeline.
//
// The NLP work itself (tokenization, tagging, parsing) happens outside of this module. A Backend loads a Model
// from a path, a Model builds a Pipeline for a given input format, tagger and parser configuration and output
// format, and a Pipeline turns text into processed text. Backends for the udpipe command line binary and for the
// UDPipe REST service live under internal/backend, and udpipetest provides a deterministic fake.
package udpipe
