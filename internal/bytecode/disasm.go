package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// Disassembler renders a CompiledFunction's bytecode as human-readable text
// (spec §6.1's bit-exact opcode contract is easier to keep honest against a
// disassembly than against raw bytes).
type Disassembler struct {
	writer io.Writer
	unit   *CompiledUnit
	fn     *CompiledFunction
}

// NewDisassembler creates a disassembler for fn, resolving string-pool
// references against unit.
func NewDisassembler(unit *CompiledUnit, fn *CompiledFunction, writer io.Writer) *Disassembler {
	return &Disassembler{writer: writer, unit: unit, fn: fn}
}

// Disassemble prints every instruction in the function.
func (d *Disassembler) Disassemble() {
	fmt.Fprintf(d.writer, "== %s.%s ==\n", d.unit.ClassName, d.fn.Name)
	for offset := 0; offset < len(d.fn.Code); {
		offset = d.DisassembleInstruction(offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next one.
func (d *Disassembler) DisassembleInstruction(offset int) int {
	code := d.fn.Code
	if offset < 0 || offset >= len(code) {
		fmt.Fprintf(d.writer, "invalid offset: %d\n", offset)
		return offset + 1
	}
	op := Op(code[offset])
	width := op.OperandWidth()
	line := d.fn.LineForOffset(offset)

	fmt.Fprintf(d.writer, "%04d %4d %-18s", offset, line, op.String())
	operandPos := offset + 1

	switch op {
	case OpPushString, OpLoadField, OpStoreField, OpLoadGlobal, OpStoreGlobal:
		idx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		fmt.Fprintf(d.writer, " %4d '%s'\n", idx, d.unit.Strings.Get(idx))
	case OpLoadLocal, OpStoreLocal:
		idx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		fmt.Fprintf(d.writer, " %4d  ; %s\n", idx, localName(d.fn, idx))
	case OpLoadArg, OpStoreArg:
		fmt.Fprintf(d.writer, " %4d\n", code[operandPos])
	case OpPushInt:
		v := int32(binary.LittleEndian.Uint32(code[operandPos:]))
		fmt.Fprintf(d.writer, " %d\n", v)
	case OpPushDouble:
		bits := binary.LittleEndian.Uint64(code[operandPos:])
		fmt.Fprintf(d.writer, " %g\n", math.Float64frombits(bits))
	case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpJumpIfNull, OpJumpIfNotNull:
		rel := int16(binary.LittleEndian.Uint16(code[operandPos:]))
		target := operandPos + 2 + int(rel)
		fmt.Fprintf(d.writer, " %4d -> %04d\n", rel, target)
	case OpCall, OpCallMethod:
		idx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		argc := code[operandPos+2]
		fmt.Fprintf(d.writer, " %4d '%s' argc=%d\n", idx, d.unit.Strings.Get(idx), argc)
	case OpCallBuiltin:
		idx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		argc := code[operandPos+2]
		fmt.Fprintf(d.writer, " %4d argc=%d\n", idx, argc)
	case OpCallMethodDynamic, OpCallDynamic:
		fmt.Fprintf(d.writer, " argc=%d\n", code[operandPos])
	case OpNew:
		idx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		argc := code[operandPos+2]
		fmt.Fprintf(d.writer, " %4d '%s' argc=%d\n", idx, d.unit.Strings.Get(idx), argc)
	case OpInstanceOf, OpLoadClass:
		idx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		fmt.Fprintf(d.writer, " %4d '%s'\n", idx, d.unit.Strings.Get(idx))
	case OpLoadClassMember:
		cIdx := int(binary.LittleEndian.Uint16(code[operandPos:]))
		mIdx := int(binary.LittleEndian.Uint16(code[operandPos+2:]))
		fmt.Fprintf(d.writer, " %s:%s\n", d.unit.Strings.Get(cIdx), d.unit.Strings.Get(mIdx))
	case OpLine:
		ln := int(binary.LittleEndian.Uint16(code[operandPos:]))
		fmt.Fprintf(d.writer, " %4d\n", ln)
	default:
		fmt.Fprintln(d.writer)
	}
	return offset + 1 + width
}

func localName(fn *CompiledFunction, idx int) string {
	if idx >= 0 && idx < len(fn.Locals) {
		return fn.Locals[idx].Name
	}
	return "?"
}

// DisassembleToString returns fn's disassembly as a string.
func DisassembleToString(unit *CompiledUnit, fn *CompiledFunction) string {
	var sb strings.Builder
	NewDisassembler(unit, fn, &sb).Disassemble()
	return sb.String()
}
