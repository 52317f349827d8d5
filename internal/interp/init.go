package interp

import "github.com/magoolation/intmud.net-sub002/internal/classmodel"

// LoadProgram runs every loaded class's common-variable initializers
// exactly once (spec §3 "Variable decl: ... optional initializer
// expression"; spec §9 "class-level object registries are per-class and
// live for the lifetime of the program"). Call once after
// Loader.Resolve() and before any CreateInstance/CallMethod.
func (vm *VM) LoadProgram() {
	for _, class := range vm.Loader.All() {
		vm.initCommons(class)
	}
}

func (vm *VM) initCommons(class *classmodel.Class) {
	for _, slot := range class.Unit.Variables {
		if !slot.Common || slot.Initializer == nil {
			continue
		}
		res := vm.invoke(class, slot.Initializer, nil, nil)
		if res.State == StateReturning {
			if cell, ok := class.CommonSlot(slot.Name); ok {
				*cell = res.Value
			}
		}
	}
}

// runInstanceInitializers evaluates obj's declared instance-variable
// initializers, base classes first (so a derived class's initializer can
// safely assume an inherited field already holds its declared default),
// then this class's own — matching declaration order within each class.
func (vm *VM) runInstanceInitializers(obj *classmodel.RuntimeObject) {
	vm.runInitChain(obj.Class, obj, make(map[*classmodel.Class]bool))
}

func (vm *VM) runInitChain(class *classmodel.Class, obj *classmodel.RuntimeObject, visited map[*classmodel.Class]bool) {
	if visited[class] {
		return
	}
	visited[class] = true
	for _, base := range class.Bases {
		vm.runInitChain(base, obj, visited)
	}
	for _, slot := range class.Unit.Variables {
		if slot.Common || slot.Initializer == nil {
			continue
		}
		res := vm.invoke(class, slot.Initializer, obj, nil)
		if res.State == StateReturning {
			obj.SetField(slot.Name, truncateToType(slot.TypeName, res.Value))
		}
	}
}
