// Package classmodel implements the loaded, link-resolved class/object
// model described by spec §3/§9: classes with single or multiple
// inheritance, instance and common (shared) storage, and inheritance-aware
// virtual-function dispatch. A bytecode.CompiledUnit becomes a Class only
// after the Loader resolves its base-class name strings into a cross-unit
// graph (spec §3: "ResolvedBases are populated only by the loader").
package classmodel

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/value"
)

func lowerName(s string) string { return strings.ToLower(s) }

// Class is one loaded class: its compiled bytecode plus, once resolved, the
// ancestor classes its base-name strings refer to.
type Class struct {
	Unit *bytecode.CompiledUnit

	// Bases holds the resolved ancestors in declaration order, populated
	// only by Loader.Resolve (spec §3). Before resolution it is nil and
	// lookup is restricted to the class itself.
	Bases []*Class

	// Objects is the class's append-only, ordered object registry (spec §9:
	// "represent them as sorted append-only arrays ... plus an ID->slot
	// index map"), giving deterministic iteration independent of deletion.
	Objects []*RuntimeObject
	idIndex map[uuid.UUID]int

	// common holds the shared storage for every `comum` variable declared
	// directly on this class (spec §3 "Common fields are shared state on
	// the class"). Keyed by lowercase variable name.
	common map[string]*value.Value

	// methodCache memoizes the most-derived-first function lookup (spec §9
	// "cached into a per-class vtable on first call"), keyed by lowercase
	// method name. An entry with ok==false (and a nil function) records a
	// confirmed miss.
	methodCache map[string]methodLookup
}

type methodLookup struct {
	fn    *bytecode.CompiledFunction
	owner *Class
	ok    bool
}

// NewClass wraps a compiled unit before linking.
func NewClass(unit *bytecode.CompiledUnit) *Class {
	c := &Class{
		Unit:        unit,
		idIndex:     make(map[uuid.UUID]int),
		common:      make(map[string]*value.Value),
		methodCache: make(map[string]methodLookup),
	}
	for _, v := range unit.Variables {
		if v.Common {
			zero := value.NullValue()
			c.common[lowerName(v.Name)] = &zero
		}
	}
	return c
}

// Name is the class's (case-preserved) declared name.
func (c *Class) Name() string { return c.Unit.ClassName }

// FindFunction performs the most-derived-first ancestor search spec §4.4
// and §9 describe: start at this class (the runtime object's actual,
// most-derived class when called from dispatch), and walk the base list
// depth-first. The first class in that walk carrying the name wins; a
// function marked `varfunc` anywhere in the chain is virtual, but because
// the search always starts at the most-derived class, the most-derived
// override is already what gets found first — there is no separate
// override-resolution step.
func (c *Class) FindFunction(name string) (*bytecode.CompiledFunction, *Class) {
	key := lowerName(name)
	if hit, ok := c.methodCache[key]; ok {
		if hit.ok {
			return hit.fn, hit.owner
		}
		return nil, nil
	}
	fn, owner := c.findFunctionUncached(key, make(map[*Class]bool))
	c.methodCache[key] = methodLookup{fn: fn, owner: owner, ok: fn != nil}
	return fn, owner
}

func (c *Class) findFunctionUncached(key string, visited map[*Class]bool) (*bytecode.CompiledFunction, *Class) {
	if visited[c] {
		return nil, nil
	}
	visited[c] = true
	if fn, ok := c.Unit.Functions[key]; ok {
		return fn, c
	}
	for _, base := range c.Bases {
		if fn, owner := base.findFunctionUncached(key, visited); fn != nil {
			return fn, owner
		}
	}
	return nil, nil
}

// FindConstant searches this class then its ancestors, most-derived first,
// for a constant of the given name.
func (c *Class) FindConstant(name string) (*bytecode.Constant, *Class) {
	return c.findConstant(lowerName(name), make(map[*Class]bool))
}

func (c *Class) findConstant(key string, visited map[*Class]bool) (*bytecode.Constant, *Class) {
	if visited[c] {
		return nil, nil
	}
	visited[c] = true
	if k, ok := c.Unit.Constants[key]; ok {
		return k, c
	}
	for _, base := range c.Bases {
		if k, owner := base.findConstant(key, visited); k != nil {
			return k, owner
		}
	}
	return nil, nil
}

// FindVariable locates the VariableSlot declaring name, searching this
// class's own variables first and then each base class in declaration
// order, depth-first; the first class in that walk that declares the name
// wins, whether the slot is comum or per-instance. The VM calls it on the
// receiver object's runtime class, so a declaration in a more-derived
// class is found before one in its ancestors.
func (c *Class) FindVariable(name string) (*bytecode.VariableSlot, *Class, bool) {
	return c.findVariable(lowerName(name), make(map[*Class]bool))
}

func (c *Class) findVariable(key string, visited map[*Class]bool) (*bytecode.VariableSlot, *Class, bool) {
	if visited[c] {
		return nil, nil, false
	}
	visited[c] = true
	for i := range c.Unit.Variables {
		if lowerName(c.Unit.Variables[i].Name) == key {
			return &c.Unit.Variables[i], c, true
		}
	}
	for _, base := range c.Bases {
		if slot, owner, ok := base.findVariable(key, visited); ok {
			return slot, owner, true
		}
	}
	return nil, nil, false
}

// CommonSlot resolves a `comum` variable's shared storage cell, walking
// the ancestor chain (spec §4.4 "class-level commons (ancestor chain
// again)") until it reaches the class that actually owns the storage.
func (c *Class) CommonSlot(name string) (*value.Value, bool) {
	_, owner, ok := c.FindVariable(name)
	if !ok {
		return nil, false
	}
	if cell, ok := owner.common[lowerName(name)]; ok {
		return cell, true
	}
	return nil, false
}

// IsInstanceOf reports whether c is className or descends from it.
func (c *Class) IsInstanceOf(className string) bool {
	return c.isInstanceOf(lowerName(className), make(map[*Class]bool))
}

func (c *Class) isInstanceOf(key string, visited map[*Class]bool) bool {
	if visited[c] {
		return false
	}
	visited[c] = true
	if lowerName(c.Name()) == key {
		return true
	}
	for _, base := range c.Bases {
		if base.isInstanceOf(key, visited) {
			return true
		}
	}
	return false
}

// Register appends obj to the class's object list and indexes its id.
func (c *Class) Register(obj *RuntimeObject) {
	obj.Index = len(c.Objects)
	c.idIndex[obj.ID] = obj.Index
	c.Objects = append(c.Objects, obj)
}

// First returns the first live object of this class, or nil.
func (c *Class) First() *RuntimeObject {
	for _, o := range c.Objects {
		if !o.Deleted {
			return o
		}
	}
	return nil
}

// ByIndex returns the n-th object registered to this class (live or not),
// used by $[expr] dynamic instance selection (spec §3 DollarRef).
func (c *Class) ByIndex(n int) (*RuntimeObject, bool) {
	if n < 0 || n >= len(c.Objects) {
		return nil, false
	}
	return c.Objects[n], true
}

// String satisfies fmt.Stringer for debug output / panics.
func (c *Class) String() string { return fmt.Sprintf("class(%s)", c.Name()) }
