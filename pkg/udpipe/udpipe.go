package udpipe

import (
	"context"
	"io"
)

// Backend loads models.
type Backend interface {
	// Load opens the model found at path. Failures are reported as *LoadError.
	Load(ctx context.Context, path string) (Model, error)
}

// Model is a loaded model. It must outlive every Pipeline built from it.
type Model interface {
	// NewPipeline builds a pipeline using the model.
	NewPipeline(cfg PipelineConfig) (Pipeline, error)
	io.Closer
}

// Pipeline processes text with a fixed configuration.
type Pipeline interface {
	// Process runs the pipeline on text. Failures are reported as *ProcessingError.
	Process(ctx context.Context, text string) (string, error)
	io.Closer
}

// PipelineConfig holds the four settings a pipeline is built with.
type PipelineConfig struct {
	Input  string
	Tagger Option
	Parser Option
	Output string
}

// NewPipelineConfig returns a configuration using the default tagger and parser.
func NewPipelineConfig(input, output string) PipelineConfig {
	return PipelineConfig{
		Input:  input,
		Tagger: Default,
		Parser: Default,
		Output: output,
	}
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, path string) (Model, error)

// Load calls f.
func (f BackendFunc) Load(ctx context.Context, path string) (Model, error) {
	return f(ctx, path)
}
