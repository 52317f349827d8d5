package interp

import (
	"github.com/magoolation/intmud.net-sub002/internal/bytecode"
	"github.com/magoolation/intmud.net-sub002/internal/classmodel"
	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// frame is one call-stack entry (spec §4.4 "Machine shape"). DefiningClass
// is the class that owns Function's bytecode (i.e. where the method was
// found during dispatch) — not necessarily Receiver's dynamic class — so
// string-pool indices inside Function.Code always resolve against the
// CompiledUnit that actually interned them, even when Receiver is a more
// derived instance (spec §4.4: "a pointer to the defining CompiledUnit").
type frame struct {
	Function      *bytecode.CompiledFunction
	DefiningClass *classmodel.Class
	PC            int
	Locals        []value.Value
	Receiver      *classmodel.RuntimeObject
	Args          [10]value.Value
	ArgCount      int
}

func newFrame(fn *bytecode.CompiledFunction, class *classmodel.Class, receiver *classmodel.RuntimeObject, args []value.Value) *frame {
	f := &frame{
		Function:      fn,
		DefiningClass: class,
		Locals:        make([]value.Value, len(fn.Locals)),
		Receiver:      receiver,
	}
	for i := range f.Locals {
		f.Locals[i] = value.NullValue()
	}
	n := len(args)
	if n > 10 {
		n = 10
	}
	for i := 0; i < n; i++ {
		f.Args[i] = args[i]
	}
	f.ArgCount = n
	return f
}

func (f *frame) currentLine() int { return f.Function.LineForOffset(f.PC) }
