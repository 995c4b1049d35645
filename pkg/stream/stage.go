package stream

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ufal/udpipe/pkg/stream/model"
)

func sequentialStageFn[I any, O any](ctx context.Context, flow *Flow, goIdx int, input *model.Step[I], output *model.Step[O], stageFn func(context.Context, I) (O, error)) error {
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "goroutine %d", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}
			startFn := time.Now()
			out, err := stageFn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "goroutine %d", goIdx)
			}
			endFn := time.Since(startFn)

			// we check the context again to make sure all goroutines currently running
			// stop to add new elements to the flow
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "goroutine %d", goIdx)
			case output.Output <- out:
				endIter := time.Since(startIter) - endFn
				for _, opt := range flow.opts {
					err := opt.OnStepOutput(input.Details, output.Details, endIter, endFn)
					if err != nil {
						return errors.Wrap(err, "unable to run step output function")
					}
				}
			}
		}
	}
}

func concurrentStageFn[I any, O any](ctx context.Context, flow *Flow, input *model.Step[I], output *model.Step[O], stageFn func(context.Context, I) (O, error)) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	// each consumer stops as soon as an error happens
	for goIdx := 0; goIdx < output.Details.Concurrent; goIdx++ {
		goIdx := goIdx
		errGrp.Go(func() error {
			return sequentialStageFn(dCtx, flow, goIdx, input, output, stageFn)
		})
	}

	return errGrp.Wait()
}

func runStage[I any, O any](ctx context.Context, flow *Flow, input *model.Step[I], output *model.Step[O], stageFn func(context.Context, I) (O, error)) error {
	if output.Details.Concurrent == 1 {
		return sequentialStageFn(ctx, flow, 0, input, output, stageFn)
	}

	return concurrentStageFn(ctx, flow, input, output, stageFn)
}

// AddStage adds a step turning every item of input into one item of the returned step.
func AddStage[I any, O any](flow *Flow, name string, input *model.Step[I], stageFn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if flow == nil {
		return nil, ErrFlowMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}

	step := newStep(model.StageStepType, name, opts...)
	err := prepareStep(flow, input.Details, step)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	flow.register(name, errC, func(ctx context.Context) {
		defer func() {
			close(step.Output)
			close(errC)
		}()
		err := runStage(ctx, flow, input, step, stageFn)
		if err != nil {
			errC <- err
		}
	})

	return step, nil
}
