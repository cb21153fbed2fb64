package vm

// Instruction is one decoded opcode plus up to two signed immediates, as
// produced by decodeInstruction. Offset is the byte position of the opcode
// itself within the enclosing code block's bytecode, for use in
// disassembly.
type Instruction struct {
	Opcode Opcode
	N1     int
	N2     int
	Offset int
}

// decodeInstruction decodes one instruction from bytecode starting at pc,
// returning it along with the pc of the following instruction. It fails
// with TruncatedCode if the opcode byte or any of its immediates run past
// the end of bytecode.
func decodeInstruction(bytecode []byte, pc int) (Instruction, int, *Fault) {
	if pc >= len(bytecode) {
		return Instruction{}, 0, newFault(TruncatedCode, nil)
	}
	op := Opcode(bytecode[pc])
	instr := Instruction{Opcode: op, Offset: pc}
	next := pc + 1

	switch op.ImmediateCount() {
	case 0:
		// nothing to decode
	case 1:
		n1, after, ok := decodeSint(bytecode, next)
		if !ok {
			return Instruction{}, 0, newFault(TruncatedCode, nil)
		}
		instr.N1 = n1
		next = after
	case 2:
		n1, after1, ok := decodeSint(bytecode, next)
		if !ok {
			return Instruction{}, 0, newFault(TruncatedCode, nil)
		}
		n2, after2, ok := decodeSint(bytecode, after1)
		if !ok {
			return Instruction{}, 0, newFault(TruncatedCode, nil)
		}
		instr.N1, instr.N2 = n1, n2
		next = after2
	default:
		return Instruction{}, 0, newFault(UnknownOpcode, nil)
	}

	return instr, next, nil
}
