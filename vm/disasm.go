package vm

import (
	"fmt"
	"strings"
)

// formatInstruction renders one decoded instruction as text, e.g.
// "0004: STORE_LOCAL_N 2" or "0012: BINARY Add". Used by Disassemble.
func formatInstruction(instr Instruction) string {
	switch instr.Opcode {
	case Unary:
		return fmt.Sprintf("%04d: UNARY %s", instr.Offset, UnaryOp(instr.N1))
	case Binary:
		return fmt.Sprintf("%04d: BINARY %s", instr.Offset, BinaryOp(instr.N1))
	}

	switch instr.Opcode.ImmediateCount() {
	case 0:
		return fmt.Sprintf("%04d: %s", instr.Offset, instr.Opcode)
	case 1:
		return fmt.Sprintf("%04d: %s %d", instr.Offset, instr.Opcode, instr.N1)
	case 2:
		return fmt.Sprintf("%04d: %s %d %d", instr.Offset, instr.Opcode, instr.N1, instr.N2)
	default:
		return fmt.Sprintf("%04d: <unknown opcode 0x%02x>", instr.Offset, byte(instr.Opcode))
	}
}

// Disassemble decodes every instruction in bytecode and returns one
// formatted line per instruction. It stops and reports the decode fault
// (appended as a final "NNNN: <decode error: ...>" line) if bytecode is
// malformed, rather
// than returning an error, since this is a debugging aid and partial
// output is still useful.
func Disassemble(bytecode []byte) string {
	var b strings.Builder
	pc := 0
	for pc < len(bytecode) {
		instr, next, fault := decodeInstruction(bytecode, pc)
		if fault != nil {
			fmt.Fprintf(&b, "%04d: <decode error: %s>\n", pc, fault.Code)
			break
		}
		b.WriteString(formatInstruction(instr))
		b.WriteByte('\n')
		pc = next
	}
	return b.String()
}

// maxTraceFrames bounds how many frames FormatTrace will walk. up_frame
// links live in heap memory the code object itself can corrupt (a STORE_SLOT
// through a forged address), so a cycle is a fault the walk must survive
// rather than loop on forever.
const maxTraceFrames = 256

// FormatTrace renders a fault together with a walk of the frame stack that
// was live when it was raised, innermost frame first. It re-derives each
// caller's code object from the pool via its stored code_offset, the same
// mechanism RETURN uses, so the trace survives frames whose Go values have
// otherwise gone out of scope.
func FormatTrace(pool *Pool, heap *Heap, fault *Fault) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fault: %s\n", fault.Code)

	frame := fault.Frame
	for i := 0; frame != nil; i++ {
		if i >= maxTraceFrames {
			fmt.Fprintf(&b, "  <truncated: frame chain exceeds %d frames>\n", maxTraceFrames)
			break
		}
		fmt.Fprintf(&b, "  code_offset=%d pc=%d sp=%d locals=%d\n",
			frame.codeOffset, frame.PC(), frame.SP(), frame.localCount)
		up := frame.UpFrame()
		if up == 0 {
			break
		}
		next, fault := resolveFrame(heap, pool, up)
		if fault != nil {
			fmt.Fprintf(&b, "  <truncated: %s>\n", fault.Code)
			break
		}
		frame = next
	}
	return b.String()
}
