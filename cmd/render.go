package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rubiojr/bolt/bolt"
	"github.com/rubiojr/bolt/compiler"
)

type palette struct {
	bold, red, dim, reset string
}

func newPalette(color bool) palette {
	if !color {
		return palette{}
	}
	return palette{bold: "\033[1m", red: "\033[31m", dim: "\033[2m", reset: "\033[0m"}
}

// renderError prints err to w, quoting the offending source lines when
// they are known to db.
func renderError(w io.Writer, db *bolt.Database, err error, color bool) {
	p := newPalette(color)

	var diags *bolt.DiagnosticsError
	var list compiler.ErrorList
	var rerr *bolt.Error
	switch {
	case errors.As(err, &diags):
		for _, d := range diags.Unit.Diagnostics {
			header(w, p, "syntax error", d.String())
			snippet(w, p, diags.Unit.Source, d.Line, d.Col)
		}
	case errors.As(err, &list):
		for _, e := range list {
			header(w, p, "compile error", e.Error())
			if src, ok := sourceOf(db, e.File); ok {
				snippet(w, p, src, e.Pos.Line, e.Pos.Col)
			}
		}
	case errors.As(err, &rerr):
		header(w, p, "error", rerr.Error())
		if src, ok := sourceOf(db, rerr.Pos.File); ok {
			snippet(w, p, src, rerr.Pos.Line, 0)
		}
		for _, f := range rerr.Frames {
			fmt.Fprintf(w, "%s  at %s%s\n", p.dim, f, p.reset)
		}
	default:
		header(w, p, "error", err.Error())
	}
}

func header(w io.Writer, p palette, kind, msg string) {
	fmt.Fprintf(w, "%s%s%s:%s %s%s%s\n", p.bold, p.red, kind, p.reset, p.bold, msg, p.reset)
}

func sourceOf(db *bolt.Database, file string) (string, bool) {
	if db == nil || file == "" {
		return "", false
	}
	for _, u := range db.Units() {
		if u.Filename == file {
			return u.Source, true
		}
	}
	return "", false
}

// snippet prints the lines around line with a caret under col. A col
// below 1 points at the first non-blank character.
func snippet(w io.Writer, p palette, src string, line, col int) {
	lines := strings.Split(src, "\n")
	if line < 1 || line > len(lines) {
		return
	}
	cur := lines[line-1]
	if line > 1 {
		fmt.Fprintf(w, "%s%4d | %s%s\n", p.dim, line-1, lines[line-2], p.reset)
	}
	fmt.Fprintf(w, "%4d | %s\n", line, cur)

	if col < 1 {
		col = len(cur) - len(strings.TrimLeft(cur, " \t")) + 1
	}
	// Keep tabs so the caret lines up with the quoted line.
	var pad strings.Builder
	for i, r := range cur {
		if i >= col-1 {
			break
		}
		if r == '\t' {
			pad.WriteByte('\t')
		} else {
			pad.WriteByte(' ')
		}
	}
	if col-1 > len(cur) {
		pad.WriteString(strings.Repeat(" ", col-1-len(cur)))
	}
	fmt.Fprintf(w, "     | %s%s^%s\n", pad.String(), p.red, p.reset)

	if line < len(lines) && strings.TrimSpace(lines[line]) != "" {
		fmt.Fprintf(w, "%s%4d | %s%s\n", p.dim, line+1, lines[line], p.reset)
	}
}
