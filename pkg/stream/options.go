package stream

import "github.com/ufal/udpipe/pkg/stream/model"

// StepOption configures a step.
type StepOption[O any] func(s *model.Step[O])

// StageConcurrency runs the stage with the given number of goroutines.
// Above 1 the output order is not the input order anymore.
func StageConcurrency[O any](concurrent int) StepOption[O] {
	return func(s *model.Step[O]) {
		s.Details.Concurrent = concurrent
	}
}

// StepBufferSize sets the capacity of the step output channel.
func StepBufferSize[O any](bufferSize int) StepOption[O] {
	return func(s *model.Step[O]) {
		s.Details.BufferSize = bufferSize
	}
}

// TeeOption configures a tee.
type TeeOption[I any] func(t *Tee[I])

// TeeBufferSize sets the capacity of the buffer in front of every branch.
func TeeBufferSize[I any](bufferSize int) TeeOption[I] {
	return func(t *Tee[I]) {
		t.bufferSize = bufferSize
	}
}
