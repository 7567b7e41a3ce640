package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubiojr/bolt/bolt"
	"github.com/rubiojr/bolt/compiler"
	"github.com/rubiojr/bolt/value"
	"github.com/urfave/cli/v3"
)

// errReported is returned by actions that already printed their failure.
var errReported = errors.New("failure reported")

// Execute runs the Bolt CLI with the given version string.
// Import modules via blank imports before calling this function
// so they register via init().
func Execute(version string) {
	root := New(version)
	if err := root.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// New returns the root command.
func New(version string) *cli.Command {
	return &cli.Command{
		Name:                   "bolt",
		Usage:                  "Run Bolt scripts with cached module compilation",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"C"},
				Usage:   "Project directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Do not read or write the compiled module cache",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable ANSI color output",
			},
			&cli.StringFlag{
				Name:    "profile-server",
				Usage:   "Send continuous profiles to this Pyroscope server",
				Sources: cli.EnvVars("BOLT_PROFILE_SERVER"),
			},
		},
		// Allow `bolt script.bolt` as shorthand for `bolt run script.bolt`
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() > 0 && strings.HasSuffix(cmd.Args().First(), bolt.Ext) {
				return runAction(ctx, cmd)
			}
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Execute a module and everything it imports",
				ArgsUsage: "<file.bolt | location>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "print",
						Aliases: []string{"p"},
						Usage:   "Print the module output",
					},
				},
				Action: runAction,
			},
			{
				Name:      "emit",
				Usage:     "Print the compiled code of a module",
				ArgsUsage: "<file.bolt | location>",
				Action:    emitAction,
			},
			{
				Name:      "check",
				Usage:     "Parse and compile modules without running them",
				ArgsUsage: "[file.bolt | location ...]",
				Action:    checkAction,
			},
			{
				Name:  "cache",
				Usage: "Manage the compiled module cache",
				Commands: []*cli.Command{
					{
						Name:   "clear",
						Usage:  "Remove every cached module",
						Action: cacheClearAction,
					},
				},
			},
		},
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: bolt run <file.bolt | location>")
	}
	s, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	loc, err := s.location(cmd.Args().First())
	if err != nil {
		return err
	}
	out, err := s.rt.Exec(loc)
	if err != nil {
		return s.report(err)
	}
	if cmd.Bool("print") && !out.IsNil() && out.Tag != value.TreeTag {
		fmt.Fprintln(s.stdout, value.Repr(out))
	}
	return nil
}

func emitAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: bolt emit <file.bolt | location>")
	}
	s, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	loc, err := s.location(cmd.Args().First())
	if err != nil {
		return err
	}
	m, err := s.compile(loc)
	if err != nil {
		return s.report(err)
	}
	if !m.HasCode() {
		fmt.Fprintf(s.stdout, "; %s has no executable statements\n", loc)
		return nil
	}
	fmt.Fprint(s.stdout, compiler.Disassemble(m.Code, m.Refs))
	return nil
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	s, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var locs []string
	for _, arg := range cmd.Args().Slice() {
		loc, err := s.location(arg)
		if err != nil {
			return err
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 {
		if locs, err = s.allLocations(); err != nil {
			return err
		}
	}
	if len(locs) == 0 {
		return fmt.Errorf("no %s files found in %s", bolt.Ext, s.cfg.Root)
	}

	failed := 0
	for _, loc := range locs {
		if _, err := s.compile(loc); err != nil {
			s.render(err)
			failed++
		}
	}
	fmt.Fprintf(s.stdout, "%d modules checked, %d with errors\n", len(locs), failed)
	if failed > 0 {
		return errReported
	}
	return nil
}

func cacheClearAction(ctx context.Context, cmd *cli.Command) error {
	s, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cache == nil {
		fmt.Fprintln(s.stdout, "module cache is disabled")
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Fprintln(s.stdout, "module cache cleared")
	return nil
}

// allLocations lists every module below the project root.
func (s *session) allLocations() ([]string, error) {
	var locs []string
	err := filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.cfg.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != bolt.Ext {
			return nil
		}
		loc, err := s.rt.Database.Location(path)
		if err != nil {
			return err
		}
		locs = append(locs, loc)
		return nil
	})
	return locs, err
}
