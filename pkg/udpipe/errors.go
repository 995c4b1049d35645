package udpipe

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrModelNotFound      = errors.New("model not found")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrPipelineNotCreated = errors.New("pipeline could not be created")
)

// LoadError is returned when a model can not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot load model from file '%s'", e.Path)
	}

	return fmt.Sprintf("cannot load model from file '%s': %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ProcessingError is returned when a pipeline rejects its input.
type ProcessingError struct {
	// Message is the human readable message reported by the pipeline.
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError builds a ProcessingError. An empty message falls back to the cause.
func NewProcessingError(message string, cause error) *ProcessingError {
	if message == "" && cause != nil {
		message = cause.Error()
	}

	return &ProcessingError{Message: message, Err: cause}
}
