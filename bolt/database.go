package bolt

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rubiojr/bolt/ast"
)

// Ext is the source file extension of Bolt modules.
const Ext = ".bolt"

// Diagnostic is a problem found while reading or parsing a unit.
type Diagnostic struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Col, d.Msg)
}

// CompilationUnit is the parsed form of one module source.
type CompilationUnit struct {
	AST              *ast.Module // nil after a parse failure
	ResourceLocation string
	Filename         string
	Source           string
	Diagnostics      []Diagnostic
}

// Database owns the compilation units of a project, keyed by resource
// location. Locations are slash-separated paths below Root without the
// file extension.
type Database struct {
	Root string
	// Current is the unit being processed right now.
	Current *CompilationUnit

	units map[string]*CompilationUnit
}

// NewDatabase returns an empty database rooted at root.
func NewDatabase(root string) *Database {
	return &Database{Root: root, units: make(map[string]*CompilationUnit)}
}

// Load returns the unit for loc, reading and parsing its file on first
// use. A parse failure yields a unit without AST that carries a
// diagnostic; a missing file yields an error matching fs.ErrNotExist.
func (db *Database) Load(loc string) (*CompilationUnit, error) {
	if u, ok := db.units[loc]; ok {
		return u, nil
	}
	if !ValidLocation(loc) {
		return nil, fmt.Errorf("invalid resource location %q: %w", loc, os.ErrNotExist)
	}
	filename := db.Filename(loc)
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return db.add(loc, filename, string(src)), nil
}

// AddSource parses source as the unit for loc, replacing any prior unit.
func (db *Database) AddSource(loc, source string) *CompilationUnit {
	return db.add(loc, loc+Ext, source)
}

func (db *Database) add(loc, filename, source string) *CompilationUnit {
	u := &CompilationUnit{ResourceLocation: loc, Filename: filename, Source: source}
	mod, err := ast.ParseSource(source, filename)
	if err != nil {
		var pe *ast.ParseError
		if errors.As(err, &pe) {
			u.Diagnostics = append(u.Diagnostics, Diagnostic{File: pe.File, Line: pe.Line, Col: pe.Col, Msg: pe.Msg})
		} else {
			u.Diagnostics = append(u.Diagnostics, Diagnostic{File: filename, Msg: err.Error()})
		}
	} else {
		u.AST = mod
	}
	db.units[loc] = u
	return u
}

// Lookup returns the unit for loc if it has been loaded.
func (db *Database) Lookup(loc string) (*CompilationUnit, bool) {
	u, ok := db.units[loc]
	return u, ok
}

// UnitForTree returns the unit whose syntax tree is tree.
func (db *Database) UnitForTree(tree *ast.Module) (*CompilationUnit, bool) {
	for _, u := range db.units {
		if u.AST == tree {
			return u, true
		}
	}
	return nil, false
}

// Units returns all units sorted by location.
func (db *Database) Units() []*CompilationUnit {
	out := make([]*CompilationUnit, 0, len(db.units))
	for _, u := range db.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceLocation < out[j].ResourceLocation })
	return out
}

// Clear forgets every unit.
func (db *Database) Clear() {
	db.units = make(map[string]*CompilationUnit)
	db.Current = nil
}

// Filename returns the file that holds loc.
func (db *Database) Filename(loc string) string {
	return filepath.Join(db.Root, filepath.FromSlash(loc)+Ext)
}

// Location converts a file path into a resource location relative to Root.
func (db *Database) Location(file string) (string, error) {
	root, err := filepath.Abs(db.Root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	loc := strings.TrimSuffix(filepath.ToSlash(rel), Ext)
	if !ValidLocation(loc) {
		return "", fmt.Errorf("%s is outside the project root %s", file, db.Root)
	}
	return loc, nil
}

// ValidLocation reports whether loc is a clean location inside the root.
func ValidLocation(loc string) bool {
	if loc == "" || loc == "." || strings.HasPrefix(loc, "/") {
		return false
	}
	return path.Clean(loc) == loc && loc != ".." && !strings.HasPrefix(loc, "../")
}

// ResolveLocation resolves loc against base, the location of the
// importing module. Only locations starting with ./ or ../ are relative.
func ResolveLocation(base, loc string) string {
	if !strings.HasPrefix(loc, "./") && !strings.HasPrefix(loc, "../") {
		return loc
	}
	return path.Clean(path.Join(path.Dir(base), loc))
}
