// Package builtins implements the host-exposed primitive functions callable
// through OpCallBuiltin, and the TypeHandler contract (spec §6.4) through
// which domain value types (files, sockets, timers, lists) plug into the
// interpreter as external collaborators.
package builtins

import (
	"strings"

	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// Func is one built-in's implementation. args are already evaluated in
// left-to-right call order.
type Func func(args []value.Value) (value.Value, error)

type entry struct {
	id   int
	name string
	fn   Func
}

var registry []entry
var byName = map[string]int{}

func register(name string, fn Func) {
	id := len(registry)
	registry = append(registry, entry{id: id, name: name, fn: fn})
	byName[strings.ToLower(name)] = id
}

// IDByName resolves a case-insensitive built-in name to its stable id, used
// by both the compiler (to emit OpCallBuiltin) and the VM (to dispatch it).
func IDByName(name string) (int, bool) {
	id, ok := byName[strings.ToLower(name)]
	return id, ok
}

// NameByID is the inverse of IDByName, used by the VM to recognise the
// read/write built-ins it routes to its own sinks.
func NameByID(id int) string {
	if id < 0 || id >= len(registry) {
		return "?"
	}
	return registry[id].name
}

// Call invokes the built-in with the given id.
func Call(id int, args []value.Value) (value.Value, error) {
	if id < 0 || id >= len(registry) {
		return value.NullValue(), errUnknownBuiltin(id)
	}
	return registry[id].fn(args)
}

type errUnknownBuiltin int

func (e errUnknownBuiltin) Error() string { return "unknown built-in id" }
