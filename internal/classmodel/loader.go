package classmodel

import (
	"fmt"

	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
)

// Loader accumulates compiled units and resolves their base-class name
// strings into a cross-unit ancestor graph (spec §3, §9 "class-loader").
// Bases are stored as name strings on CompiledUnit; Resolve walks them
// once, with a visited-set DFS, detecting cycles (diamonds through
// multiple bases are fine — a cycle through a class's own descendants is
// not) and reporting any as a bytecode.LinkError.
type Loader struct {
	classes map[string]*Class // lowercase class name -> Class
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{classes: make(map[string]*Class)}
}

// AddUnit registers a compiled unit, wrapping it in an (as yet unresolved)
// Class, and returns that Class.
func (l *Loader) AddUnit(unit *bytecode.CompiledUnit) *Class {
	c := NewClass(unit)
	l.classes[lowerName(unit.ClassName)] = c
	return c
}

// Lookup returns the loaded class of the given case-insensitive name.
func (l *Loader) Lookup(name string) (*Class, bool) {
	c, ok := l.classes[lowerName(name)]
	return c, ok
}

// All returns every loaded class (for iteration by $ClassName / host code).
func (l *Loader) All() map[string]*Class { return l.classes }

// Resolve links every class's BaseNames into resolved Bases, failing fast
// on an unresolved base class (fatal at load, spec §7) or on an
// inheritance cycle.
func (l *Loader) Resolve() error {
	for _, c := range l.classes {
		if err := l.resolveOne(c, make(map[*Class]bool)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) resolveOne(c *Class, inProgress map[*Class]bool) error {
	if c.Bases != nil || len(c.Unit.BaseNames) == 0 {
		return nil // already resolved, or has no bases
	}
	if inProgress[c] {
		return &bytecode.LinkError{ClassName: c.Name(), Detail: "cyclic inheritance"}
	}
	inProgress[c] = true
	defer delete(inProgress, c)

	bases := make([]*Class, 0, len(c.Unit.BaseNames))
	for _, baseName := range c.Unit.BaseNames {
		base, ok := l.Lookup(baseName)
		if !ok {
			return &bytecode.LinkError{ClassName: c.Name(), Detail: fmt.Sprintf("unresolved base class %q", baseName)}
		}
		if err := l.resolveOne(base, inProgress); err != nil {
			return err
		}
		bases = append(bases, base)
	}
	c.Bases = bases
	return nil
}
