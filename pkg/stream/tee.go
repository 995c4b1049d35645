package stream

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ufal/udpipe/pkg/stream/model"
)

// Tee hands every item of its input to each of its branches.
type Tee[I any] struct {
	mu         sync.Mutex
	currIdx    int
	mainStep   *model.Step[I]
	branches   []*model.Step[I]
	bufferSize int
	Total      int
}

// Get returns the next branch. It returns false once every branch was handed out.
func (t *Tee[I]) Get() (*model.Step[I], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currIdx >= len(t.branches) {
		return nil, false
	}
	branch := t.branches[t.currIdx]
	t.currIdx++

	return branch, true
}

func prepareTee[I any](flow *Flow, input *model.Step[I], tee *Tee[I]) error {
	err := flow.addVertex(tee.mainStep.Details, input.Details)
	if err != nil {
		return err
	}
	for _, opt := range flow.opts {
		err := opt.PrepareTee(input.Details, tee.mainStep.Details)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare tee function")
		}
	}

	return nil
}

// runBranch forwards the buffered items to one branch.
func runBranch[I any](ctx context.Context, buf <-chan I, branch *model.Step[I]) error {
	defer close(branch.Output)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case elem, ok := <-buf:
			if !ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case branch.Output <- elem:
			}
		}
	}
}

func runTee[I any](ctx context.Context, flow *Flow, input *model.Step[I], tee *Tee[I], buffers []chan I) error {
	defer func() {
		for _, buf := range buffers {
			close(buf)
		}
	}()

	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-input.Output:
			if !ok {
				return nil
			}
			startFn := time.Now()
			for _, buf := range buffers {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case buf <- entry:
				}
			}
			endFn := time.Since(startFn)
			endIter := time.Since(startIter) - endFn

			for _, opt := range flow.opts {
				err := opt.OnTeeOutput(input.Details, tee.mainStep.Details, endIter, endFn)
				if err != nil {
					return errors.Wrap(err, "unable to run tee output function")
				}
			}
		}
	}
}

// AddTee adds a step duplicating every item of input to total branches, retrieved with Get.
// Every branch must be consumed, a slow branch slows all of them down once its buffer is full.
func AddTee[I any](flow *Flow, name string, input *model.Step[I], total int, opts ...TeeOption[I]) (*Tee[I], error) {
	if flow == nil {
		return nil, ErrFlowMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}
	if total <= 0 {
		return nil, ErrTeeTotal
	}
	tee := &Tee[I]{
		Total: total,
		mainStep: &model.Step[I]{
			Details: &model.StepInfo{
				Type:       model.TeeStepType,
				Name:       name,
				Concurrent: 1,
			},
		},
	}
	for _, opt := range opts {
		opt(tee)
	}
	if tee.bufferSize <= 0 {
		tee.bufferSize = 1
	}
	tee.mainStep.Details.BufferSize = tee.bufferSize

	err := prepareTee(flow, input, tee)
	if err != nil {
		return nil, err
	}

	buffers := make([]chan I, total)
	tee.branches = make([]*model.Step[I], total)
	for i := range buffers {
		buffers[i] = make(chan I, tee.bufferSize)
		tee.branches[i] = &model.Step[I]{
			Details: tee.mainStep.Details,
			Output:  make(chan I),
		}
	}

	// one error per branch plus the dispatcher
	errC := make(chan error, total+1)
	flow.register(name, errC, func(ctx context.Context) {
		wgrp := &sync.WaitGroup{}
		wgrp.Add(total)
		for i := range buffers {
			i := i
			go func() {
				defer wgrp.Done()
				err := runBranch(ctx, buffers[i], tee.branches[i])
				if err != nil {
					errC <- errors.Wrapf(err, "branch %d", i)
				}
			}()
		}

		err := runTee(ctx, flow, input, tee, buffers)
		if err != nil {
			errC <- err
		}
		wgrp.Wait()
		close(errC)
	})

	return tee, nil
}
