package exec

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufal/udpipe/pkg/udpipe"
)

// fakeRunner simulates command execution. Runs on empty input are model checks.
type fakeRunner struct {
	run   func(ctx context.Context, stdin string, name string, args ...string) (commandResult, error)
	check func(ctx context.Context, name string, args ...string) (commandResult, error)
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, stdin string, name string, args ...string) (commandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if stdin == "" {
		if f.check == nil {
			return commandResult{}, nil
		}

		return f.check(ctx, name, args...)
	}
	if f.run == nil {
		return commandResult{Stdout: stdin}, nil
	}

	return f.run(ctx, stdin, name, args...)
}

func newTestBackend(t *testing.T, runner commandRunner) *Backend {
	t.Helper()

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	b := New(WithBinary("udpipe-test"), WithLogger(log))
	b.runner = runner
	b.lookPath = func(file string) (string, error) {
		return "/opt/bin/" + file, nil
	}

	return b
}

func writeModel(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "english.udpipe")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0o600))

	return path
}

func TestArgs(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		cfg      udpipe.PipelineConfig
		expected []string
	}{
		"tokenize with defaults": {
			cfg:      udpipe.NewPipelineConfig("tokenize", "conllu"),
			expected: []string{"--tokenize", "--tag", "--parse", "--output=conllu", "model"},
		},
		"tokenizer options": {
			cfg:      udpipe.NewPipelineConfig("tokenizer=presegmented", "conllu"),
			expected: []string{"--tokenize", "--tokenizer=presegmented", "--tag", "--parse", "--output=conllu", "model"},
		},
		"conllu input": {
			cfg:      udpipe.NewPipelineConfig("conllu", "conllu"),
			expected: []string{"--input=conllu", "--tag", "--parse", "--output=conllu", "model"},
		},
		"horizontal with options": {
			cfg:      udpipe.NewPipelineConfig("horizontal=opts", "vertical"),
			expected: []string{"--input=horizontal=opts", "--tag", "--parse", "--output=vertical", "model"},
		},
		"explicit tagger options": {
			cfg: udpipe.PipelineConfig{
				Input: "tokenize", Tagger: udpipe.Explicit("use_lemma=0"), Parser: udpipe.Default, Output: "conllu",
			},
			expected: []string{"--tokenize", "--tag", "--tagger=use_lemma=0", "--parse", "--output=conllu", "model"},
		},
		"no tagger": {
			cfg: udpipe.PipelineConfig{
				Input: "tokenize", Tagger: udpipe.Skip, Parser: udpipe.Default, Output: "conllu",
			},
			expected: []string{"--tokenize", "--parse", "--output=conllu", "model"},
		},
		"no parser explicit tagger": {
			cfg: udpipe.PipelineConfig{
				Input: "conllu", Tagger: udpipe.Explicit("x"), Parser: udpipe.Explicit(""), Output: "conllu",
			},
			expected: []string{"--input=conllu", "--tag", "--tagger=x", "--output=conllu", "model"},
		},
		"nothing but output": {
			cfg: udpipe.PipelineConfig{
				Input: "conllu", Tagger: udpipe.Skip, Parser: udpipe.Skip, Output: "conllu",
			},
			expected: []string{"--input=conllu", "--output=conllu", "model"},
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, Args(tc.cfg, "model"))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing model", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "missing.udpipe")
		_, err := newTestBackend(t, &fakeRunner{}).Load(context.Background(), path)

		var loadErr *udpipe.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, path, loadErr.Path)
		assert.ErrorIs(t, err, udpipe.ErrModelNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()

		_, err := newTestBackend(t, &fakeRunner{}).Load(context.Background(), t.TempDir())
		assert.ErrorIs(t, err, ErrNotRegularFile)
	})

	t.Run("binary not found", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t, &fakeRunner{})
		b.lookPath = func(file string) (string, error) {
			return "", osexec.ErrNotFound
		}
		_, err := b.Load(context.Background(), writeModel(t))

		var loadErr *udpipe.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.ErrorIs(t, err, osexec.ErrNotFound)
	})

	t.Run("model checked once", func(t *testing.T) {
		t.Parallel()

		path := writeModel(t)
		runner := &fakeRunner{}
		_, err := newTestBackend(t, runner).Load(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"/opt/bin/udpipe-test", "--input=conllu", "--output=conllu", path},
		}, runner.calls)
	})

	t.Run("model rejected by binary", func(t *testing.T) {
		t.Parallel()

		path := writeModel(t)
		runner := &fakeRunner{
			check: func(ctx context.Context, name string, args ...string) (commandResult, error) {
				return commandResult{Stderr: "Cannot load UDPipe model '" + path + "'!\n", ExitCode: 1}, errors.New("exit status 1")
			},
		}
		_, err := newTestBackend(t, runner).Load(context.Background(), path)

		var loadErr *udpipe.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, path, loadErr.Path)
		assert.EqualError(t, loadErr.Err, "Cannot load UDPipe model '"+path+"'!")
		require.Len(t, runner.calls, 1)
	})

	t.Run("model rejected silently", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{
			check: func(ctx context.Context, name string, args ...string) (commandResult, error) {
				return commandResult{ExitCode: 2}, errors.New("exit status 2")
			},
		}
		_, err := newTestBackend(t, runner).Load(context.Background(), writeModel(t))

		var loadErr *udpipe.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.EqualError(t, loadErr.Err, "/opt/bin/udpipe-test exited with code 2")
	})

	t.Run("check cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		runner := &fakeRunner{
			check: func(ctx context.Context, name string, args ...string) (commandResult, error) {
				cancel()

				return commandResult{ExitCode: -1}, errors.New("signal: killed")
			},
		}
		_, err := newTestBackend(t, runner).Load(ctx, writeModel(t))

		var loadErr *udpipe.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed model", func(t *testing.T) {
		t.Parallel()

		mdl, err := newTestBackend(t, &fakeRunner{}).Load(context.Background(), writeModel(t))
		require.NoError(t, err)
		require.NoError(t, mdl.Close())
		_, err = mdl.NewPipeline(udpipe.NewPipelineConfig("tokenize", "conllu"))
		assert.ErrorIs(t, err, udpipe.ErrPipelineNotCreated)
	})
}

func TestNewPipelineFormats(t *testing.T) {
	t.Parallel()

	mdl, err := newTestBackend(t, &fakeRunner{}).Load(context.Background(), writeModel(t))
	require.NoError(t, err)
	defer mdl.Close()

	_, err = mdl.NewPipeline(udpipe.NewPipelineConfig("", "conllu"))
	assert.ErrorIs(t, err, udpipe.ErrUnsupportedFormat)
	_, err = mdl.NewPipeline(udpipe.NewPipelineConfig("tokenize", ""))
	assert.ErrorIs(t, err, udpipe.ErrUnsupportedFormat)
}

func TestProcess(t *testing.T) {
	t.Parallel()

	modelPath := writeModel(t)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{
			run: func(ctx context.Context, stdin string, name string, args ...string) (commandResult, error) {
				return commandResult{Stdout: "# text = " + stdin, Stderr: "Loading UDPipe model: done.\n"}, nil
			},
		}
		mdl, err := newTestBackend(t, runner).Load(context.Background(), modelPath)
		require.NoError(t, err)
		pipe, err := mdl.NewPipeline(udpipe.NewPipelineConfig("tokenize", "conllu"))
		require.NoError(t, err)

		out, err := pipe.Process(context.Background(), "word1 word2\n")
		require.NoError(t, err)
		assert.Equal(t, "# text = word1 word2\n", out)
		require.NoError(t, pipe.Close())

		require.Len(t, runner.calls, 2)
		assert.Equal(t, []string{
			"/opt/bin/udpipe-test", "--tokenize", "--tag", "--parse", "--output=conllu", modelPath,
		}, runner.calls[1])
	})

	t.Run("failure with message", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{
			run: func(ctx context.Context, stdin string, name string, args ...string) (commandResult, error) {
				return commandResult{Stderr: "Cannot read input CoNLL-U: bad line\n", ExitCode: 1}, errors.New("exit status 1")
			},
		}
		mdl, err := newTestBackend(t, runner).Load(context.Background(), modelPath)
		require.NoError(t, err)
		pipe, err := mdl.NewPipeline(udpipe.NewPipelineConfig("conllu", "conllu"))
		require.NoError(t, err)

		_, err = pipe.Process(context.Background(), "garbage\n")
		var procErr *udpipe.ProcessingError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, "Cannot read input CoNLL-U: bad line", procErr.Message)
	})

	t.Run("failure without message", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{
			run: func(ctx context.Context, stdin string, name string, args ...string) (commandResult, error) {
				return commandResult{ExitCode: 3}, errors.New("exit status 3")
			},
		}
		mdl, err := newTestBackend(t, runner).Load(context.Background(), modelPath)
		require.NoError(t, err)
		pipe, err := mdl.NewPipeline(udpipe.NewPipelineConfig("conllu", "conllu"))
		require.NoError(t, err)

		_, err = pipe.Process(context.Background(), "x\n")
		var procErr *udpipe.ProcessingError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, "/opt/bin/udpipe-test exited with code 3", procErr.Message)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		runner := &fakeRunner{
			run: func(ctx context.Context, stdin string, name string, args ...string) (commandResult, error) {
				cancel()

				return commandResult{ExitCode: -1}, errors.New("signal: killed")
			},
		}
		mdl, err := newTestBackend(t, runner).Load(context.Background(), modelPath)
		require.NoError(t, err)
		pipe, err := mdl.NewPipeline(udpipe.NewPipelineConfig("conllu", "conllu"))
		require.NoError(t, err)

		_, err = pipe.Process(ctx, "x\n")
		assert.ErrorIs(t, err, context.Canceled)
		var procErr *udpipe.ProcessingError
		assert.False(t, errors.As(err, &procErr))
	})
}

func TestExecRunner(t *testing.T) {
	t.Parallel()

	if _, err := osexec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	result, err := (&execRunner{}).Run(context.Background(), "a\nb\n", "cat")
	require.NoError(t, err)
	assert.Equal(t, commandResult{Stdout: "a\nb\n"}, result)

	result, err = (&execRunner{}).Run(context.Background(), "", "cat", "/nonexistent/file")
	require.Error(t, err)
	assert.NotZero(t, result.ExitCode)
	assert.NotEmpty(t, result.Stderr)
}

// writeScript writes an executable shell script standing in for the udpipe binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "udpipe")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	return path
}

// TestLoadWithBinary is not parallel: a script being written must not be inherited by a concurrent fork.
func TestLoadWithBinary(t *testing.T) {
	t.Run("corrupt model", func(t *testing.T) {
		binary := writeScript(t, `for last; do :; done
echo "Cannot load UDPipe model '$last'!" >&2
exit 1
`)
		path := writeModel(t)
		log, _ := test.NewNullLogger()
		_, err := New(WithBinary(binary), WithLogger(log)).Load(context.Background(), path)

		var loadErr *udpipe.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, "cannot load model from file '"+path+"': Cannot load UDPipe model '"+path+"'!", err.Error())
	})

	t.Run("valid model", func(t *testing.T) {
		binary := writeScript(t, "cat\n")
		log, _ := test.NewNullLogger()
		mdl, err := New(WithBinary(binary), WithLogger(log)).Load(context.Background(), writeModel(t))
		require.NoError(t, err)
		pipe, err := mdl.NewPipeline(udpipe.NewPipelineConfig("conllu", "conllu"))
		require.NoError(t, err)

		out, err := pipe.Process(context.Background(), "# sent\n")
		require.NoError(t, err)
		assert.Equal(t, "# sent\n", out)
		require.NoError(t, mdl.Close())
	})
}
