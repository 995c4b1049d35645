package stream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ufal/udpipe/pkg/stream"
	"github.com/ufal/udpipe/pkg/stream/model"
)

func addIntSource(t *testing.T, flow *stream.Flow, name string, total int) *model.Step[int] {
	t.Helper()

	step, err := stream.AddSource(flow, name, func(ctx context.Context, output chan<- int) error {
		for i := 0; i < total; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case output <- i:
			}
		}

		return nil
	})
	require.NoError(t, err)

	return step
}

// collector is a sink function appending every item, read back once the flow returned.
type collector[I any] struct {
	items []I
}

func (c *collector[I]) sink(_ context.Context, in I) error {
	c.items = append(c.items, in)

	return nil
}
