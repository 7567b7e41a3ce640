package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/rubiojr/bolt/bolt"
	"github.com/rubiojr/bolt/cache"
	"github.com/rubiojr/bolt/config"
)

// session is the runtime state shared by one CLI invocation.
type session struct {
	cfg            *config.Config
	rt             *bolt.Runtime
	cache          *cache.ModuleCache
	log            *slog.Logger
	stdout, stderr io.Writer
	color          bool
	closers        []func()
}

func open(ctx context.Context, cmd *cli.Command) (*session, error) {
	root := cmd.Root()
	s := &session{stdout: root.Writer, stderr: root.ErrWriter}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	s.color = useColor(cmd, s.stderr)

	cfg, err := config.Load(cmd.String("dir"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = cmd.String("log-format")
	}
	if cmd.Bool("no-cache") {
		cfg.Cache.Kind = cache.KindNone
	}
	s.cfg = cfg
	s.log = newLogger(cfg.LogLevel, cfg.LogFormat, s.stderr)
	if cfg.File != "" {
		s.log.Debug("loaded configuration", "file", cfg.File)
	}

	if addr := cmd.String("profile-server"); addr != "" {
		stop, err := startProfiler(addr, root.Version, s.log)
		if err != nil {
			return nil, fmt.Errorf("starting profiler: %w", err)
		}
		s.closers = append(s.closers, stop)
	}

	s.rt = bolt.New(cfg.Root, bolt.WithLogger(s.log), bolt.WithStdout(s.stdout))

	backend, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		// The cache is an optimization; run without it.
		s.log.Warn("module cache unavailable", "backend", cfg.Cache.Kind, "error", err)
	} else if backend != nil {
		if c, ok := backend.(io.Closer); ok {
			s.closers = append(s.closers, func() { c.Close() })
		}
		s.cache = cache.New(s.rt, backend)
		s.cache.Attach(ctx)
	}
	return s, nil
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.rt.Clear()
}

// location turns a command-line argument into a resource location. Paths
// ending in the source extension are taken relative to the working
// directory; anything else is a location.
func (s *session) location(arg string) (string, error) {
	if len(arg) > len(bolt.Ext) && arg[len(arg)-len(bolt.Ext):] == bolt.Ext {
		return s.rt.Database.Location(arg)
	}
	if !bolt.ValidLocation(arg) {
		return "", fmt.Errorf("invalid module location %q", arg)
	}
	return arg, nil
}

// compile loads and compiles loc without running it.
func (s *session) compile(loc string) (*bolt.CompiledModule, error) {
	unit, err := s.rt.Database.Load(loc)
	if err != nil {
		return nil, err
	}
	m, err := s.rt.Compile(unit)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &bolt.DiagnosticsError{Unit: unit}
	}
	return m, nil
}

func (s *session) render(err error) {
	renderError(s.stderr, s.rt.Database, err, s.color)
}

// report prints err and returns errReported.
func (s *session) report(err error) error {
	s.render(err)
	return errReported
}

func useColor(cmd *cli.Command, w io.Writer) bool {
	if cmd.Bool("no-color") || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
