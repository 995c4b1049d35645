// Package stream runs typed flows of items through goroutines connected by channels.
//
// A flow starts with a source, goes through stages and ends in sinks. A tee hands every item to several branches.
// Each step runs in its own goroutine and the flow stops on the first error: Run returns it, wrapped with the
// name of the step that failed, and cancels the context given to every other step.
//
// A stage runs sequentially unless StageConcurrency asks for more goroutines, in which case the output order is
// no longer the input order. Options implementing model.FlowOption observe every step, see the measure and
// drawer packages.
package stream
