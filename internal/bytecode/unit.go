package bytecode

import "github.com/magoolation/intmud.net-sub002/internal/value"

// StringPool is the per-unit, append-only, deduplicated table of UTF-8
// strings referenced by u16 indices in the bytecode (spec §3, §6.3).
// Interning is by exact bytes; indices are assigned monotonically in
// first-use order (testable property 3).
type StringPool struct {
	strs    []string
	indexOf map[string]int
}

// NewStringPool creates an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{indexOf: make(map[string]int)}
}

// Intern returns the pool index for s, allocating a new entry on first use.
// Pool indices are emitted as u16, so only the first 65536 entries are
// addressable; neither this method nor the compiler checks that limit.
func (p *StringPool) Intern(s string) int {
	if i, ok := p.indexOf[s]; ok {
		return i
	}
	i := len(p.strs)
	p.strs = append(p.strs, s)
	p.indexOf[s] = i
	return i
}

// Get returns the string at index i.
func (p *StringPool) Get(i int) string { return p.strs[i] }

// Len returns the number of interned strings.
func (p *StringPool) Len() int { return len(p.strs) }

// All returns the pool contents in index order (read-only view).
func (p *StringPool) All() []string { return p.strs }

// VariableSlot describes one instance or common variable's place in the
// class's data segment.
type VariableSlot struct {
	Name     string
	TypeName string
	TypeSize int
	Offset   int
	Size     int
	Common   bool
	Saved    bool

	// Initializer is the compiled form of the variable's optional source
	// initializer expression (spec §3 "Variable decl: ... optional
	// initializer expression"), wrapped the same way a varconst body is:
	// a single-statement thunk function returning the initializer's value.
	// Nil when the declaration has none (the field then defaults to
	// null/zero). Run once per instance for instance variables, once per
	// class for common ones (spec §9 design notes).
	Initializer *CompiledFunction
}

// ConstantKind tags a Constant's payload.
type ConstantKind byte

const (
	ConstInt ConstantKind = iota
	ConstDouble
	ConstString
	ConstNull
	ConstThunk // expression-valued constant; lazily evaluated on first use
)

// Constant is one `const`/`varconst` entry in a CompiledUnit.
type Constant struct {
	Name  string
	Kind  ConstantKind
	I     int64
	D     float64
	S     string
	Thunk *CompiledFunction // non-nil when Kind == ConstThunk
}

// LocalDescriptor names one local slot in a CompiledFunction.
type LocalDescriptor struct {
	Name string
	Type string
	Index int
}

// LineEntry maps a bytecode offset to the source line that produced it.
type LineEntry struct {
	Offset int
	Line   int
}

// CompiledFunction is one compiled method/var-function body.
type CompiledFunction struct {
	Name      string
	Code      []byte
	Locals    []LocalDescriptor
	Lines     []LineEntry
	Virtual   bool
	StartLine int
}

// LineForOffset returns the source line active at the given bytecode
// offset, using the last LineEntry at or before it.
func (f *CompiledFunction) LineForOffset(off int) int {
	line := f.StartLine
	for _, e := range f.Lines {
		if e.Offset > off {
			break
		}
		line = e.Line
	}
	return line
}

// CompiledUnit is the compiled form of one class (spec §3 "CompiledUnit").
type CompiledUnit struct {
	ClassName   string
	BaseNames   []string
	Variables   []VariableSlot
	Functions   map[string]*CompiledFunction
	Constants   map[string]*Constant
	Strings     *StringPool
	DataSize    int
}

// NewCompiledUnit creates an empty unit for className.
func NewCompiledUnit(className string) *CompiledUnit {
	return &CompiledUnit{
		ClassName: className,
		Functions: make(map[string]*CompiledFunction),
		Constants: make(map[string]*Constant),
		Strings:   NewStringPool(),
	}
}

// ConstantValue converts the literal payload of a non-thunk constant into
// a value.Value. Thunk constants are
// evaluated lazily by the VM on first read (spec §4.3.3).
func (c *Constant) ConstantValue() value.Value {
	switch c.Kind {
	case ConstInt:
		return value.IntValue(c.I)
	case ConstDouble:
		return value.DoubleValue(c.D)
	case ConstString:
		return value.StringValue(c.S)
	default:
		return value.NullValue()
	}
}
