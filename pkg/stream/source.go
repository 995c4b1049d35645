package stream

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ufal/udpipe/pkg/stream/model"
)

func newStep[O any](stepType model.StepType, name string, opts ...StepOption[O]) *model.Step[O] {
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       stepType,
			Name:       name,
			Concurrent: 1,
		},
	}
	for _, opt := range opts {
		opt(step)
	}
	if step.Details.Concurrent < 1 {
		step.Details.Concurrent = 1
	}
	step.Output = make(chan O, step.Details.BufferSize)

	return step
}

func prepareStep[O any](flow *Flow, parent *model.StepInfo, step *model.Step[O]) error {
	err := flow.addVertex(step.Details, parent)
	if err != nil {
		return err
	}
	for _, opt := range flow.opts {
		err := opt.PrepareStep(parent, step.Details)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare step function")
		}
	}

	return nil
}

// AddSource adds the first step of a flow. sourceFn pushes items to the output channel, which is closed once
// sourceFn returns. sourceFn must give up when ctx is done.
func AddSource[O any](flow *Flow, name string, sourceFn func(ctx context.Context, output chan<- O) error, opts ...StepOption[O]) (*model.Step[O], error) {
	if flow == nil {
		return nil, ErrFlowMustBeSet
	}

	step := newStep(model.SourceStepType, name, opts...)
	err := prepareStep(flow, model.StartStep, step)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	flow.register(name, errC, func(ctx context.Context) {
		defer func() {
			close(step.Output)
			close(errC)
		}()
		err := runSource(ctx, flow, step, sourceFn)
		if err != nil {
			errC <- err
		}
	})

	return step, nil
}

// runSource runs sourceFn. When the flow has options, every item is relayed to the step output
// so that it is reported like the items of the other steps.
func runSource[O any](ctx context.Context, flow *Flow, step *model.Step[O], sourceFn func(ctx context.Context, output chan<- O) error) error {
	if len(flow.opts) == 0 {
		return sourceFn(ctx, step.Output)
	}

	produced := make(chan O)
	errGrp, gCtx := errgroup.WithContext(ctx)
	errGrp.Go(func() error {
		defer close(produced)

		return sourceFn(gCtx, produced)
	})
	errGrp.Go(func() error {
		for {
			startFn := time.Now()
			var out O
			select {
			case <-gCtx.Done():
				return errors.Wrap(gCtx.Err(), "source relay")
			case item, ok := <-produced:
				if !ok {
					return nil
				}
				out = item
			}
			endFn := time.Since(startFn)

			startIter := time.Now()
			select {
			case <-gCtx.Done():
				return errors.Wrap(gCtx.Err(), "source relay")
			case step.Output <- out:
				endIter := time.Since(startIter)
				for _, opt := range flow.opts {
					err := opt.OnStepOutput(model.StartStep, step.Details, endIter, endFn)
					if err != nil {
						return errors.Wrap(err, "unable to run step output function")
					}
				}
			}
		}
	})

	return errGrp.Wait()
}
