package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Wire format for a serialized CompiledUnit.
//
// Header (5 bytes): magic "OBJ\x00" (4 bytes), format version (1 byte).
// Body: class name, base-name list, string pool, variable table, constant
// table, function table — each prefixed with a u32 count or byte length,
// little-endian throughout. Function code is stored as-is, so its operands
// keep the widths spec §6.1/§6.3 define (u16 pool indices).
const (
	unitMagic   = "OBJ\x00"
	unitVersion = 1
)

// SerializeUnit encodes unit into this module's on-disk bytecode format, for
// a host that wants to cache compiled units across process runs. No
// cross-version persistence guarantee is made beyond the version byte
// mismatch being detected and rejected.
func SerializeUnit(unit *CompiledUnit) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(unitMagic)
	buf.WriteByte(unitVersion)

	writeString(buf, unit.ClassName)

	writeU32(buf, uint32(len(unit.BaseNames)))
	for _, b := range unit.BaseNames {
		writeString(buf, b)
	}

	strs := unit.Strings.All()
	writeU32(buf, uint32(len(strs)))
	for _, s := range strs {
		writeString(buf, s)
	}

	writeU32(buf, uint32(len(unit.Variables)))
	for _, v := range unit.Variables {
		writeString(buf, v.Name)
		writeString(buf, v.TypeName)
		writeU32(buf, uint32(v.TypeSize))
		writeU32(buf, uint32(v.Offset))
		writeU32(buf, uint32(v.Size))
		writeBool(buf, v.Common)
		writeBool(buf, v.Saved)
		writeBool(buf, v.Initializer != nil)
		if v.Initializer != nil {
			if err := writeFunction(buf, v.Initializer); err != nil {
				return nil, err
			}
		}
	}

	writeU32(buf, uint32(len(unit.Constants)))
	for name, c := range unit.Constants {
		writeString(buf, name)
		if err := writeConstant(buf, c); err != nil {
			return nil, err
		}
	}

	writeU32(buf, uint32(len(unit.Functions)))
	for name, fn := range unit.Functions {
		writeString(buf, name)
		if err := writeFunction(buf, fn); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DeserializeUnit decodes a CompiledUnit previously produced by
// SerializeUnit.
func DeserializeUnit(data []byte) (*CompiledUnit, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != unitMagic {
		return nil, fmt.Errorf("bad magic: %q", magic)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != unitVersion {
		return nil, fmt.Errorf("unsupported unit format version %d", version)
	}

	className, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read class name: %w", err)
	}
	unit := NewCompiledUnit(className)

	baseCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read base count: %w", err)
	}
	unit.BaseNames = make([]string, baseCount)
	for i := range unit.BaseNames {
		if unit.BaseNames[i], err = readString(r); err != nil {
			return nil, fmt.Errorf("read base name: %w", err)
		}
	}

	strCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read string count: %w", err)
	}
	for i := uint32(0); i < strCount; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read pool string: %w", err)
		}
		unit.Strings.Intern(s)
	}

	varCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read variable count: %w", err)
	}
	unit.Variables = make([]VariableSlot, varCount)
	for i := range unit.Variables {
		v := &unit.Variables[i]
		if v.Name, err = readString(r); err != nil {
			return nil, err
		}
		if v.TypeName, err = readString(r); err != nil {
			return nil, err
		}
		sz, err := readU32(r)
		if err != nil {
			return nil, err
		}
		v.TypeSize = int(sz)
		off, err := readU32(r)
		if err != nil {
			return nil, err
		}
		v.Offset = int(off)
		size, err := readU32(r)
		if err != nil {
			return nil, err
		}
		v.Size = int(size)
		if v.Common, err = readBool(r); err != nil {
			return nil, err
		}
		if v.Saved, err = readBool(r); err != nil {
			return nil, err
		}
		hasInit, err := readBool(r)
		if err != nil {
			return nil, err
		}
		if hasInit {
			if v.Initializer, err = readFunction(r); err != nil {
				return nil, fmt.Errorf("read initializer: %w", err)
			}
		}
	}
	unit.DataSize = 0
	for _, v := range unit.Variables {
		unit.DataSize += v.Size
	}

	constCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read constant count: %w", err)
	}
	for i := uint32(0); i < constCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("read constant %q: %w", name, err)
		}
		unit.Constants[name] = c
	}

	fnCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("read function count: %w", err)
	}
	for i := uint32(0); i < fnCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		fn, err := readFunction(r)
		if err != nil {
			return nil, fmt.Errorf("read function %q: %w", name, err)
		}
		unit.Functions[name] = fn
	}

	return unit, nil
}

func writeFunction(w *bytes.Buffer, fn *CompiledFunction) error {
	writeString(w, fn.Name)
	writeBool(w, fn.Virtual)
	writeU32(w, uint32(fn.StartLine))

	writeU32(w, uint32(len(fn.Code)))
	w.Write(fn.Code)

	writeU32(w, uint32(len(fn.Locals)))
	for _, l := range fn.Locals {
		writeString(w, l.Name)
		writeString(w, l.Type)
		writeU32(w, uint32(l.Index))
	}

	writeU32(w, uint32(len(fn.Lines)))
	for _, l := range fn.Lines {
		writeU32(w, uint32(l.Offset))
		writeU32(w, uint32(l.Line))
	}
	return nil
}

func readFunction(r *bytes.Reader) (*CompiledFunction, error) {
	fn := &CompiledFunction{}
	var err error
	if fn.Name, err = readString(r); err != nil {
		return nil, err
	}
	if fn.Virtual, err = readBool(r); err != nil {
		return nil, err
	}
	startLine, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.StartLine = int(startLine)

	codeLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(r, fn.Code); err != nil {
		return nil, err
	}

	localCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.Locals = make([]LocalDescriptor, localCount)
	for i := range fn.Locals {
		if fn.Locals[i].Name, err = readString(r); err != nil {
			return nil, err
		}
		if fn.Locals[i].Type, err = readString(r); err != nil {
			return nil, err
		}
		idx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		fn.Locals[i].Index = int(idx)
	}

	lineCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fn.Lines = make([]LineEntry, lineCount)
	for i := range fn.Lines {
		off, err := readU32(r)
		if err != nil {
			return nil, err
		}
		ln, err := readU32(r)
		if err != nil {
			return nil, err
		}
		fn.Lines[i] = LineEntry{Offset: int(off), Line: int(ln)}
	}

	return fn, nil
}

func writeConstant(w *bytes.Buffer, c *Constant) error {
	writeString(w, c.Name)
	w.WriteByte(byte(c.Kind))
	switch c.Kind {
	case ConstInt:
		writeI64(w, c.I)
	case ConstDouble:
		writeF64(w, c.D)
	case ConstString:
		writeString(w, c.S)
	case ConstNull:
		// no payload
	case ConstThunk:
		return writeFunction(w, c.Thunk)
	default:
		return fmt.Errorf("unknown constant kind %d", c.Kind)
	}
	return nil
}

func readConstant(r *bytes.Reader) (*Constant, error) {
	c := &Constant{}
	var err error
	if c.Name, err = readString(r); err != nil {
		return nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	c.Kind = ConstantKind(kindByte)
	switch c.Kind {
	case ConstInt:
		if c.I, err = readI64(r); err != nil {
			return nil, err
		}
	case ConstDouble:
		if c.D, err = readF64(r); err != nil {
			return nil, err
		}
	case ConstString:
		if c.S, err = readString(r); err != nil {
			return nil, err
		}
	case ConstNull:
		// no payload
	case ConstThunk:
		if c.Thunk, err = readFunction(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown constant kind %d", c.Kind)
	}
	return c, nil
}

// --- primitive helpers (little-endian, length-prefixed strings) ---

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeI64(w *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}

func readI64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func writeF64(w *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.Write(b[:])
}

func readF64(r *bytes.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

func writeBool(w *bytes.Buffer, v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func writeString(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
