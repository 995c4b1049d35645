// Package cli builds the command line of the udpipe runners.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/transform"

	"github.com/ufal/udpipe/internal/config"
	"github.com/ufal/udpipe/internal/runner"
	"github.com/ufal/udpipe/pkg/udpipe"
)

// reported is an error already written on stderr.
type reported struct {
	error
}

func (r reported) Unwrap() error {
	return r.error
}

type command struct {
	name   string
	mode   runner.Mode
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	lookup func(key string) (string, bool)
	dotEnv bool
	// backend replaces the backend selected from the configuration.
	backend udpipe.Backend

	configPath string
	tagger     string
	parser     string
	noTagger   bool
	noParser   bool
	flagConfig config.Config
}

// Option configures a command.
type Option func(c *command)

// WithIO replaces the standard streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(c *command) {
		c.stdin = stdin
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithEnv reads the environment through lookup instead of the process environment. No .env file is loaded.
func WithEnv(lookup func(key string) (string, bool)) Option {
	return func(c *command) {
		c.lookup = lookup
		c.dotEnv = false
	}
}

// WithBackend uses backend whatever the configuration says.
func WithBackend(backend udpipe.Backend) Option {
	return func(c *command) {
		c.backend = backend
	}
}

// NewCommand creates the command of the runner called name.
func NewCommand(name string, mode runner.Mode, opts ...Option) *cobra.Command {
	c := &command{
		name:       name,
		mode:       mode,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		lookup:     os.LookupEnv,
		dotEnv:     true,
		flagConfig: config.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	short := "Process standard input with a UDPipe model in one go"
	if mode == runner.Blocks {
		short = "Process standard input with a UDPipe model, one blank line delimited block at a time"
	}
	cmd := &cobra.Command{
		Use:   name + " [flags] input_format output_format model_file",
		Short: short,
		Long: short + `.

input_format is tokenize, tokenizer=<options>, conllu, horizontal or vertical.
model_file is a UDPipe model file, or the URL of a UDPipe 2 REST service with
the model name as fragment, e.g. https://lindat.mff.cuni.cz/services/udpipe/api#english.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 {
				return reported{runner.Usage(c.stderr, name)}
			}

			return nil
		},
		RunE:          c.run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(c.stdin)
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)
	c.addFlags(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive("tagger", "no-tagger")
	cmd.MarkFlagsMutuallyExclusive("parser", "no-parser")

	return cmd
}

func (c *command) addFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.StringVar(&c.configPath, "config", "", "YAML configuration file (env "+config.EnvPrefix+"CONFIG)")
	flags.StringVar(&c.flagConfig.Backend, "backend", def.Backend, "backend: auto, exec or rest")
	flags.StringVar(&c.flagConfig.Binary, "binary", def.Binary, "udpipe executable used by the exec backend")
	flags.StringVar(&c.tagger, "tagger", "", "tagger options")
	flags.BoolVar(&c.noTagger, "no-tagger", false, "skip the tagger")
	flags.StringVar(&c.parser, "parser", "", "parser options")
	flags.BoolVar(&c.noParser, "no-parser", false, "skip the parser")
	flags.BoolVar(&c.flagConfig.KeepEmpty, "keep-empty", def.KeepEmpty, "submit the blocks holding no line")
	flags.StringVar(&c.flagConfig.Encoding, "encoding", def.Encoding, "encoding of standard input and output")
	flags.DurationVar(&c.flagConfig.Timeout, "timeout", def.Timeout, "timeout of every REST request, 0 for none")
	flags.Float64Var(&c.flagConfig.Rate, "rate", def.Rate, "maximum REST requests per second, 0 for no limit")
	flags.StringVar(&c.flagConfig.Tee, "tee", def.Tee, "also write the output to this file")
	flags.BoolVar(&c.flagConfig.Stats, "stats", def.Stats, "log per step statistics at the end")
	flags.StringVar(&c.flagConfig.Graph, "graph", def.Graph, "write the processing graph to this DOT file")
	flags.StringVar(&c.flagConfig.LogLevel, "log-level", def.LogLevel, "log level")
}

// resolve merges defaults, the configuration file, the environment and the flags set on the command line.
func (c *command) resolve(flags *pflag.FlagSet) (config.Config, error) {
	if c.dotEnv {
		err := config.LoadDotEnv()
		if err != nil {
			return config.Config{}, err
		}
	}

	path := c.configPath
	if !flags.Changed("config") {
		if v, ok := c.lookup(config.EnvPrefix + "CONFIG"); ok {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	err = cfg.ApplyEnv(c.lookup)
	if err != nil {
		return cfg, err
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("backend", func() { cfg.Backend = c.flagConfig.Backend })
	set("binary", func() { cfg.Binary = c.flagConfig.Binary })
	set("keep-empty", func() { cfg.KeepEmpty = c.flagConfig.KeepEmpty })
	set("encoding", func() { cfg.Encoding = c.flagConfig.Encoding })
	set("timeout", func() { cfg.Timeout = c.flagConfig.Timeout })
	set("rate", func() { cfg.Rate = c.flagConfig.Rate })
	set("tee", func() { cfg.Tee = c.flagConfig.Tee })
	set("stats", func() { cfg.Stats = c.flagConfig.Stats })
	set("graph", func() { cfg.Graph = c.flagConfig.Graph })
	set("log-level", func() { cfg.LogLevel = c.flagConfig.LogLevel })
	set("tagger", func() { cfg.Tagger = &c.tagger })
	set("parser", func() { cfg.Parser = &c.parser })
	skip := ""
	if c.noTagger {
		cfg.Tagger = &skip
	}
	if c.noParser {
		cfg.Parser = &skip
	}

	return cfg, cfg.Validate()
}

func (c *command) run(cmd *cobra.Command, args []string) error {
	cfg, err := c.resolve(cmd.Flags())
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	log, err := NewLogger(c.stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Stats && !log.IsLevelEnabled(logrus.InfoLevel) {
		log.SetLevel(logrus.InfoLevel)
	}

	backend := c.backend
	if backend == nil {
		backend, err = NewBackend(cfg, args[2], log)
		if err != nil {
			return err
		}
	}

	stdin, stdout := c.stdin, c.stdout
	enc, err := cfg.TextEncoding()
	if err != nil {
		return err
	}
	var encoded io.WriteCloser
	if enc != nil {
		stdin = transform.NewReader(stdin, enc.NewDecoder())
		encoded = transform.NewWriter(stdout, enc.NewEncoder())
		stdout = encoded
	}

	r := &runner.Runner{
		Program: c.name,
		Mode:    c.mode,
		Backend: backend,
		Config:  cfg,
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  c.stderr,
		Log:     log.WithField("program", c.name),
	}

	return finish(r.Run(cmd.Context(), args), encoded, cfg.Encoding)
}

// finish closes the encoded output, if any, once the runner returned runErr.
// A failed flush is only returned when the run itself succeeded.
func finish(runErr error, encoded io.Closer, encoding string) error {
	var closeErr error
	if encoded != nil {
		closeErr = encoded.Close()
	}
	if runErr != nil {
		return reported{runErr}
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "unable to flush %s output", encoding)
	}

	return nil
}

// NewLogger creates the logger writing to w at the given level.
func NewLogger(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	log.SetLevel(lvl)

	return log, nil
}

// Execute runs cmd and returns the process exit code. Errors not yet reported are written on stderr.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var done reported
	if !errors.As(err, &done) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", cmd.Name(), err)
	}

	return 1
}

// Main runs the runner called name on the process streams and exits.
func Main(name string, mode runner.Mode) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, NewCommand(name, mode))
	stop()
	os.Exit(code)
}
