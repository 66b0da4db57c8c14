package structure

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Orientation describes which of the two supported tree layouts a data
// directory follows.
type Orientation string

const (
	// OrientationYearFirst is the canonical <year>/<person>/ layout.
	OrientationYearFirst Orientation = "year-first"
	// OrientationPersonFirst is the inverted <person>/<year>/ layout.
	OrientationPersonFirst Orientation = "person-first"
	// OrientationAuto requests detection by probing the tree.
	OrientationAuto Orientation = ""
)

// IsValid checks if the orientation value is valid.
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationYearFirst, OrientationPersonFirst, OrientationAuto:
		return true
	}
	return false
}

// ParseOrientation converts a user-supplied layout selector.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return OrientationAuto, nil
	case "year-first", "year":
		return OrientationYearFirst, nil
	case "person-first", "person":
		return OrientationPersonFirst, nil
	}
	return "", fmt.Errorf("unknown layout %q (expected %q or %q)", s, OrientationYearFirst, OrientationPersonFirst)
}

// ErrAmbiguousStructure reports a tree whose orientation cannot be detected
// because no 4-digit year segment exists at depth 1 or depth 2. Callers can
// recover by supplying an explicit orientation.
var ErrAmbiguousStructure = errors.New("cannot detect directory layout: no 4-digit year segment at depth 1 or 2")

// ErrEmptyTree reports a data directory with no subdirectories at all. It is
// kept apart from ErrAmbiguousStructure so callers can treat an empty tree
// as a no-op rather than a layout fault.
var ErrEmptyTree = errors.New("data directory has no subdirectories")

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Unit is one (person, year) evaluation directory and the JSON files in it.
type Unit struct {
	Person string
	Year   int
	Dir    string
	Files  []string
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%d", u.Person, u.Year)
}

// File returns the full path of the named file within the unit, or "" when
// the unit does not carry it.
func (u Unit) File(name string) string {
	for _, f := range u.Files {
		if filepath.Base(f) == name {
			return f
		}
	}
	return ""
}

// Resolver enumerates (person, year) units from a data tree in a uniform
// way regardless of the tree's physical orientation.
type Resolver struct {
	root        string
	orientation Orientation
}

// NewResolver binds a resolver to root. With OrientationAuto the layout is
// probed; detection failure surfaces ErrAmbiguousStructure.
func NewResolver(root string, orientation Orientation) (*Resolver, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", root)
	}

	if orientation == OrientationAuto {
		orientation, err = DetectOrientation(root)
		if err != nil {
			return nil, err
		}
	}
	if !orientation.IsValid() || orientation == OrientationAuto {
		return nil, fmt.Errorf("unsupported orientation %q", orientation)
	}

	return &Resolver{root: root, orientation: orientation}, nil
}

// DetectOrientation probes the first two directory levels below root. A
// 4-digit segment at depth 1 means <year>/<person>; at depth 2 it means
// <person>/<year>. Depth 1 wins when both would match.
func DetectOrientation(root string) (Orientation, error) {
	level1, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	hasDir := false
	for _, entry := range level1 {
		if !entry.IsDir() {
			continue
		}
		hasDir = true
		if yearPattern.MatchString(entry.Name()) {
			return OrientationYearFirst, nil
		}
	}
	if !hasDir {
		return "", ErrEmptyTree
	}

	for _, entry := range level1 {
		if !entry.IsDir() {
			continue
		}
		level2, err := os.ReadDir(filepath.Join(root, entry.Name()))
		if err != nil {
			continue
		}
		for _, sub := range level2 {
			if sub.IsDir() && yearPattern.MatchString(sub.Name()) {
				return OrientationPersonFirst, nil
			}
		}
	}

	return "", ErrAmbiguousStructure
}

// Root returns the resolver's data directory.
func (r *Resolver) Root() string {
	return r.root
}

// Orientation returns the layout the resolver is bound to.
func (r *Resolver) Orientation() Orientation {
	return r.orientation
}

// Walk enumerates units lazily in lexical path order, calling fn once per
// (person, year) directory that contains at least one JSON file. A non-nil
// error from fn stops the walk and is returned. Walk can be called again to
// restart enumeration.
func (r *Resolver) Walk(fn func(Unit) error) error {
	var current *Unit

	flush := func() error {
		if current == nil {
			return nil
		}
		unit := *current
		current = nil
		return fn(unit)
	}

	// Exactly three segments per match: <seg>/<seg>/<file>.json.
	err := doublestar.GlobWalk(os.DirFS(r.root), "*/*/*.json", func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		segs := strings.Split(p, "/")
		unit, ok := r.unitFor(segs[0], segs[1])
		if !ok {
			return nil
		}
		if current != nil && current.Dir != unit.Dir {
			if err := flush(); err != nil {
				return err
			}
		}
		if current == nil {
			current = &unit
		}
		current.Files = append(current.Files, filepath.Join(r.root, filepath.FromSlash(p)))
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// unitFor maps the two path segments under root to a unit identity. Pairs
// whose year segment is not a 4-digit number are not units.
func (r *Resolver) unitFor(first, second string) (Unit, bool) {
	var person, yearSeg string
	switch r.orientation {
	case OrientationYearFirst:
		yearSeg, person = first, second
	case OrientationPersonFirst:
		person, yearSeg = first, second
	default:
		return Unit{}, false
	}
	if !yearPattern.MatchString(yearSeg) {
		return Unit{}, false
	}
	year, err := strconv.Atoi(yearSeg)
	if err != nil {
		return Unit{}, false
	}
	return Unit{
		Person: person,
		Year:   year,
		Dir:    filepath.Join(r.root, first, second),
	}, true
}

// Units collects every unit in the tree.
func (r *Resolver) Units() ([]Unit, error) {
	var units []Unit
	err := r.Walk(func(u Unit) error {
		units = append(units, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}
