package stream

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrFlowMustBeSet  = errors.New("flow must be set")
	ErrInputMustBeSet = errors.New("input must be set")
	ErrTeeTotal       = errors.New("total must be greater than 0")
	ErrAlreadyRun     = errors.New("flow already run")
	ErrDuplicateStep  = errors.New("step name already used")
)

type errorChans struct {
	mu   sync.Mutex
	list []*errorChan
}

func (ec *errorChans) add(errChan *errorChan) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.list = append(ec.list, errChan)
}

type errorChan struct {
	c    <-chan error
	name string
}

func newErrorChan(name string, c <-chan error) *errorChan {
	return &errorChan{
		c:    c,
		name: name,
	}
}

// mergeErrors merges multiple channels of errors.
// Based on https://blog.golang.org/pipelines.
func mergeErrors(cs ...*errorChan) <-chan error {
	var wg sync.WaitGroup
	// Every step sends at most one error, so a buffer of len(cs) never blocks
	// even when waitForFlow returns early.
	out := make(chan error, len(cs))

	output := func(c *errorChan) {
		defer wg.Done()
		if c.c == nil {
			return
		}
		for n := range c.c {
			out <- errors.Wrap(n, c.name)
		}
	}
	wg.Add(len(cs))
	for _, c := range cs {
		go output(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
