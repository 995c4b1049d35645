package stream

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ufal/udpipe/pkg/stream/model"
)

func runSink[I any](ctx context.Context, flow *Flow, input *model.Step[I], step *model.StepInfo, sinkFn func(ctx context.Context, input I) error) error {
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}
			startFn := time.Now()
			err := sinkFn(ctx, in)
			if err != nil {
				return err
			}
			endFn := time.Since(startFn)
			endIter := time.Since(startIter) - endFn
			for _, opt := range flow.opts {
				err := opt.OnSinkOutput(input.Details, step, endIter, endFn)
				if err != nil {
					return errors.Wrap(err, "unable to run sink output function")
				}
			}
		}
	}
}

// AddSink adds a final step consuming every item of input.
func AddSink[I any](flow *Flow, name string, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	if flow == nil {
		return ErrFlowMustBeSet
	}
	if input == nil {
		return ErrInputMustBeSet
	}
	step := &model.StepInfo{
		Type:       model.SinkStepType,
		Name:       name,
		Concurrent: 1,
	}
	err := flow.addVertex(step, input.Details)
	if err != nil {
		return err
	}
	err = flow.graph.AddEdge(step.Name, model.EndStep.Name)
	if err != nil {
		return errors.Wrapf(err, "unable to link %q to the end", name)
	}
	for _, opt := range flow.opts {
		err := opt.PrepareSink(input.Details, step)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare sink function")
		}
	}

	errC := make(chan error, 1)
	flow.register(name, errC, func(ctx context.Context) {
		defer close(errC)
		err := runSink(ctx, flow, input, step, sinkFn)
		if err != nil {
			errC <- err

			return
		}
		for _, opt := range flow.opts {
			err := opt.AfterSink(step, time.Since(flow.startTime))
			if err != nil {
				errC <- errors.Wrap(err, "unable to run after sink function")

				return
			}
		}
	})

	return nil
}
