package builtins

import "github.com/magoolation/intmud.net-sub002/internal/value"

// TypeHandler is the host collaborator contract for domain value types
// (files, sockets, timers, lists — spec §6.4). The interpreter core never
// special-cases any of these: a Handler-kind value.Value just carries a
// TypeHandler plus its opaque payload. The VM reaches the handler through
// OpLoadIndex/OpStoreIndex (ExecuteFunction with "obterindice" /
// "definirindice") and tam() (Size); member loads and method calls on a
// Handler-kind value do not reach the handler and yield null.
type TypeHandler interface {
	// Size reports the handler's notion of length for this payload (used by
	// tam() when it is handed a Handler-kind value).
	Size(payload any) int

	Initialize(args []value.Value) (any, error)

	GetBool(payload any) bool
	GetInt(payload any) int64
	GetDouble(payload any) float64
	GetText(payload any) string

	SetInt(payload any, v int64) (any, error)
	SetDouble(payload any, v float64) (any, error)
	SetText(payload any, v string) (any, error)

	Assign(dst, src any) (any, error)
	Compare(a, b any) int
	Equals(a, b any) bool

	ExecuteFunction(payload any, name string, args []value.Value) (value.Value, error)
}
