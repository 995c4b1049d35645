package stream

import (
	"context"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/ufal/udpipe/internal/store"
	"github.com/ufal/udpipe/pkg/stream/model"
)

// Flow is a flow of steps.
type Flow struct {
	errcList  *errorChans
	opts      []model.FlowOption
	graph     graph.Graph[string, *model.StepInfo]
	startTime time.Time
	goFn      []func(ctx context.Context)

	mu  sync.Mutex
	ran bool
}

// New creates a new flow.
func New(opts ...model.FlowOption) (*Flow, error) {
	var steps graph.Store[string, *model.StepInfo] = store.NewMemoryStore[string, *model.StepInfo]()
	flow := &Flow{
		errcList:  &errorChans{},
		startTime: time.Now(),
		opts:      opts,
		graph:     graph.NewWithStore(model.Hash, steps, graph.Directed()),
	}

	for _, vertex := range []*model.StepInfo{model.StartStep, model.EndStep} {
		err := flow.graph.AddVertex(vertex)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add %s vertex", vertex.Name)
		}
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply flow option")
		}
	}

	return flow, nil
}

// addVertex registers the step in the flow graph and links it to its parents.
func (f *Flow) addVertex(step *model.StepInfo, parents ...*model.StepInfo) error {
	err := f.graph.AddVertex(step)
	if err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return errors.Wrapf(ErrDuplicateStep, "step %q", step.Name)
		}

		return errors.Wrapf(err, "unable to add step %q", step.Name)
	}

	for _, parent := range parents {
		err = f.graph.AddEdge(parent.Name, step.Name)
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return errors.Wrapf(err, "unable to link %q to %q", parent.Name, step.Name)
		}
	}

	return nil
}

// waitForFlow waits for results from all error channels.
// It returns early on the first error.
func waitForFlow(errs ...*errorChan) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}

	return nil
}

// Run starts the flow and waits for it to finish.
//
// A flow runs once. On the first error the context handed to the steps is cancelled and the error is returned
// without waiting for the remaining steps.
func (f *Flow) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.ran {
		f.mu.Unlock()

		return ErrAlreadyRun
	}
	f.ran = true
	f.mu.Unlock()

	dCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.startTime = time.Now()
	for _, fn := range f.goFn {
		go fn(dCtx)
	}

	// Wait for all steps to finish.
	err := waitForFlow(f.errcList.list...)
	if err != nil {
		return err
	}

	return f.finishRun()
}

func (f *Flow) finishRun() error {
	for _, opt := range f.opts {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish flow option")
		}
	}

	return nil
}

// register adds a step goroutine to the flow. It is started by Run.
func (f *Flow) register(name string, errC chan error, fn func(ctx context.Context)) {
	f.goFn = append(f.goFn, fn)
	f.errcList.add(newErrorChan(name, errC))
}
