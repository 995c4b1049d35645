package stream_test

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufal/udpipe/pkg/stream"
	"github.com/ufal/udpipe/pkg/stream/drawer"
	"github.com/ufal/udpipe/pkg/stream/measure"
	"github.com/ufal/udpipe/pkg/stream/model"
)

func TestAddSourceNilFlow(t *testing.T) {
	t.Parallel()

	_, err := stream.AddSource(nil, "source", func(ctx context.Context, output chan<- int) error {
		return nil
	})
	assert.ErrorIs(t, err, stream.ErrFlowMustBeSet)
}

func TestAddStageNilInput(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	_, err = stream.AddStage(flow, "stage", (*model.Step[int])(nil), func(ctx context.Context, input int) (int, error) {
		return input, nil
	})
	assert.ErrorIs(t, err, stream.ErrInputMustBeSet)

	err = stream.AddSink(flow, "sink", (*model.Step[int])(nil), func(ctx context.Context, input int) error {
		return nil
	})
	assert.ErrorIs(t, err, stream.ErrInputMustBeSet)
}

func TestDuplicateStepName(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 1)
	_, err = stream.AddStage(flow, "numbers", source, func(ctx context.Context, input int) (int, error) {
		return input, nil
	})
	assert.ErrorIs(t, err, stream.ErrDuplicateStep)
}

func TestFlowKeepsOrder(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 100)
	stage, err := stream.AddStage(flow, "itoa", source, func(ctx context.Context, input int) (string, error) {
		return strconv.Itoa(input), nil
	})
	require.NoError(t, err)

	got := &collector[string]{}
	require.NoError(t, stream.AddSink(flow, "collect", stage, got.sink))

	require.NoError(t, flow.Run(context.Background()))

	expected := make([]string, 100)
	for i := range expected {
		expected[i] = strconv.Itoa(i)
	}
	assert.Equal(t, expected, got.items)
}

func TestFlowRunsOnce(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 1)
	require.NoError(t, stream.AddSink(flow, "discard", source, func(ctx context.Context, input int) error {
		return nil
	}))

	require.NoError(t, flow.Run(context.Background()))
	assert.ErrorIs(t, flow.Run(context.Background()), stream.ErrAlreadyRun)
}

func TestFlowConcurrentStage(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		concurrent int
	}{
		"sequential":     {concurrent: 0},
		"concurrent 2":   {concurrent: 2},
		"concurrent 100": {concurrent: 100},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			flow, err := stream.New()
			require.NoError(t, err)
			source := addIntSource(t, flow, "numbers", 10)
			stage, err := stream.AddStage(flow, "double", source, func(ctx context.Context, input int) (int, error) {
				return input * 2, nil
			}, stream.StageConcurrency[int](tc.concurrent))
			require.NoError(t, err)

			got := &collector[int]{}
			require.NoError(t, stream.AddSink(flow, "collect", stage, got.sink))
			require.NoError(t, flow.Run(context.Background()))
			assert.ElementsMatch(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, got.items)
		})
	}
}

func TestFlowStageError(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 10)
	stage, err := stream.AddStage(flow, "fail on 5", source, func(ctx context.Context, input int) (int, error) {
		if input == 5 {
			return 0, assert.AnError
		}

		return input, nil
	})
	require.NoError(t, err)

	got := &collector[int]{}
	require.NoError(t, stream.AddSink(flow, "collect", stage, got.sink))

	err = flow.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "fail on 5")
}

func TestMeasuredSourceError(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	flow, err := stream.New(measure.FlowMeasure(msr))
	require.NoError(t, err)
	source, err := stream.AddSource(flow, "fail after 2", func(ctx context.Context, output chan<- int) error {
		for i := 0; i < 2; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case output <- i:
			}
		}

		return assert.AnError
	})
	require.NoError(t, err)
	got := &collector[int]{}
	require.NoError(t, stream.AddSink(flow, "collect", source, got.sink))

	err = flow.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "fail after 2")
}

func TestFlowSinkError(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 10)
	require.NoError(t, stream.AddSink(flow, "broken", source, func(ctx context.Context, input int) error {
		return assert.AnError
	}))

	err = flow.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "broken")
}

func TestFlowCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	flow, err := stream.New()
	require.NoError(t, err)
	source, err := stream.AddSource(flow, "forever", func(ctx context.Context, output chan<- int) error {
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case output <- i:
			}
		}
	})
	require.NoError(t, err)
	require.NoError(t, stream.AddSink(flow, "cancel on 3", source, func(_ context.Context, input int) error {
		if input == 3 {
			cancel()
		}

		return nil
	}))

	done := make(chan error, 1)
	go func() {
		done <- flow.Run(ctx)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not stop after cancel")
	}
}

func TestFlowTee(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 20)

	tee, err := stream.AddTee(flow, "tee", source, 2, stream.TeeBufferSize[int](4))
	require.NoError(t, err)

	first := &collector[int]{}
	second := &collector[int]{}
	for i, c := range []*collector[int]{first, second} {
		branch, ok := tee.Get()
		require.True(t, ok)
		require.NoError(t, stream.AddSink(flow, "branch "+strconv.Itoa(i), branch, c.sink))
	}
	_, ok := tee.Get()
	assert.False(t, ok)

	require.NoError(t, flow.Run(context.Background()))

	expected := make([]int, 20)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, first.items)
	assert.Equal(t, expected, second.items)
}

func TestAddTeeTotal(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 1)
	_, err = stream.AddTee(flow, "tee", source, 0)
	assert.ErrorIs(t, err, stream.ErrTeeTotal)
}

func TestFlowReportAndDrawer(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	out := &bytes.Buffer{}
	flow, err := stream.New(measure.FlowMeasure(msr), drawer.FlowDrawer(drawer.NewDOTWriterDrawer(out), msr))
	require.NoError(t, err)

	source := addIntSource(t, flow, "numbers", 5)
	stage, err := stream.AddStage(flow, "square", source, func(ctx context.Context, input int) (int, error) {
		time.Sleep(time.Millisecond)

		return input * input, nil
	})
	require.NoError(t, err)
	got := &collector[int]{}
	require.NoError(t, stream.AddSink(flow, "collect", stage, got.sink))

	require.NoError(t, flow.Run(context.Background()))
	assert.Equal(t, []int{0, 1, 4, 9, 16}, got.items)

	reports, err := flow.Report(msr)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "numbers", reports[0].Name)
	assert.Equal(t, model.SourceStepType, reports[0].Type)
	assert.Equal(t, int64(5), reports[0].Items)
	assert.Equal(t, "square", reports[1].Name)
	assert.Equal(t, int64(5), reports[1].Items)
	assert.GreaterOrEqual(t, reports[1].Average, time.Millisecond)
	assert.GreaterOrEqual(t, reports[1].Total, 5*time.Millisecond)
	assert.Equal(t, "collect", reports[2].Name)
	assert.Equal(t, model.SinkStepType, reports[2].Type)
	assert.Equal(t, int64(5), reports[2].Items)

	dot := out.String()
	assert.Contains(t, dot, "strict digraph {")
	assert.Contains(t, dot, `"numbers" -> "square"`)
	assert.Contains(t, dot, `"square" -> "collect"`)
	assert.Contains(t, dot, `"collect" -> "end"`)
	assert.Contains(t, dot, `"start" -> "numbers"`)
}

func TestReportWithoutMeasure(t *testing.T) {
	t.Parallel()

	flow, err := stream.New()
	require.NoError(t, err)
	source := addIntSource(t, flow, "numbers", 1)
	require.NoError(t, stream.AddSink(flow, "discard", source, func(ctx context.Context, input int) error {
		return nil
	}))

	reports, err := flow.Report(nil)
	require.NoError(t, err)
	assert.Equal(t, []stream.StepReport{
		{Name: "numbers", Type: model.SourceStepType},
		{Name: "discard", Type: model.SinkStepType},
	}, reports)
}

func TestBottleneck(t *testing.T) {
	t.Parallel()

	_, ok := stream.Bottleneck(nil)
	assert.False(t, ok)

	reports := []stream.StepReport{
		{Name: "stdin", Type: model.SourceStepType, Items: 3, Total: time.Hour},
		{Name: "process", Type: model.StageStepType, Items: 3, Total: 3 * time.Second},
		{Name: "idle", Type: model.StageStepType, Items: 0},
		{Name: "stdout", Type: model.SinkStepType, Items: 3, Total: time.Millisecond},
	}
	slowest, ok := stream.Bottleneck(reports)
	require.True(t, ok)
	assert.Equal(t, "process", slowest.Name)

	_, ok = stream.Bottleneck(reports[:1])
	assert.False(t, ok)
}
