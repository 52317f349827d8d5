package classmodel

import (
	"github.com/google/uuid"

	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// RuntimeObject is a live instance bound to a Class (spec §3). Its unique
// id is a uuid.UUID minted on New, giving objects a host-stable identity
// across class reloads rather than a process-local incrementing counter.
type RuntimeObject struct {
	ID       uuid.UUID
	Class    *Class
	Fields   map[string]value.Value // instance-only fields, keyed by lowercase name
	Index    int                    // slot within Class.Objects
	RefCount int
	Deleted  bool
}

// NewRuntimeObject allocates a fresh, unregistered instance of class.
// Callers register it with Class.Register once construction succeeds.
func NewRuntimeObject(class *Class) *RuntimeObject {
	return &RuntimeObject{
		ID:     uuid.New(),
		Class:  class,
		Fields: make(map[string]value.Value),
	}
}

// ClassName / IsDeleted implement value.ObjectRef.
func (o *RuntimeObject) ClassName() string { return o.Class.Name() }
func (o *RuntimeObject) IsDeleted() bool   { return o.Deleted }

// GetField reads an instance field by case-insensitive name, defaulting to
// null for a never-assigned field (spec §4.4: missing names resolve to
// null/zero, never an error).
func (o *RuntimeObject) GetField(name string) value.Value {
	if v, ok := o.Fields[lowerName(name)]; ok {
		return v
	}
	return value.NullValue()
}

// SetField stores an instance field by case-insensitive name, creating it
// if absent (spec §4.4: "a store to an unknown dynamic name creates an
// instance field on the current receiver").
func (o *RuntimeObject) SetField(name string, v value.Value) {
	o.Fields[lowerName(name)] = v
}

// HasField reports whether name has ever been assigned on this instance
// (distinct from GetField's default-to-null reads).
func (o *RuntimeObject) HasField(name string) bool {
	_, ok := o.Fields[lowerName(name)]
	return ok
}

// Delete marks the object removed (spec §4.4 "Delete"): idempotent,
// observable only through IsDeleted/Deleted thereafter. A second Delete is
// a no-op (testable property 10).
func (o *RuntimeObject) Delete() {
	o.Deleted = true
}
