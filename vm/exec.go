package vm

// dispositionKind is what the interpreter should do after one dispatched
// instruction: keep going, suppress the next decoded instruction, enter a
// call, return to the caller, or take an absolute jump.
type dispositionKind int

const (
	dispContinue dispositionKind = iota
	dispSkip
	dispCall
	dispReturn
	dispJump
)

type disposition struct {
	kind  dispositionKind
	addr  Word // dispCall: callee address, as pushed by CONSTANT
	count int  // dispCall / dispReturn: argument/result count
	newPC int  // dispJump: absolute target pc
}

// maxObjectSlots is the largest NEW allocation this VM permits (§4.6).
const maxObjectSlots = 64

// Execute runs the code block at codeOffset (a compact, 4-byte-scaled pool
// offset, per §6) with args bound to its locals, until it returns, falls
// off the end of its bytecode, or faults. It returns the number of result
// words the top-level call returned (which may exceed len(results); excess
// values are silently dropped) or a Fault.
//
// maxCycles and deadline are both optional (nil means "no limit"). cycles
// and the deadline are checked once per decoded instruction, including an
// instruction that ends up being skipped by IF.
func (m *VM) Execute(codeOffset uint32, args []Word, results []Word, maxCycles *uint64, deadline *uint64) (int, *Fault) {
	frame, fault := m.frameFromOffset(codeOffset, nil)
	if fault != nil {
		return 0, fault
	}
	if fault := frame.StartLocals(args); fault != nil {
		return 0, fault
	}

	skip := false
	var cycles uint64

	for {
		if frame.PC() == len(frame.bytecode) {
			return 0, nil
		}

		if deadline != nil && m.currentTime != nil && m.currentTime() >= *deadline {
			return 0, newFault(TimeExceeded, frame)
		}
		if maxCycles != nil {
			cycles++
			if cycles > *maxCycles {
				return 0, newFault(CyclesExceeded, frame)
			}
		}

		instr, nextPC, fault := decodeInstruction(frame.bytecode, frame.PC())
		if fault != nil {
			fault.Frame = frame
			return 0, fault
		}

		if skip {
			skip = false
			frame.setPC(nextPC)
			continue
		}

		disp, fault := m.executeOne(instr, frame)
		if fault != nil {
			return 0, fault
		}

		switch disp.kind {
		case dispContinue:
			frame.setPC(nextPC)

		case dispSkip:
			frame.setPC(nextPC)
			skip = true

		case dispCall:
			frame.setPC(nextPC)
			callArgs, fault := frame.GetN(disp.count)
			if fault != nil {
				return 0, fault
			}
			argsCopy := append([]Word(nil), callArgs...)
			callee, fault := m.frameFromAddr(disp.addr, frame)
			if fault != nil {
				return 0, fault
			}
			if fault := callee.StartLocals(argsCopy); fault != nil {
				return 0, fault
			}
			frame = callee

		case dispReturn:
			stackResults, fault := frame.GetN(disp.count)
			if fault != nil {
				return 0, fault
			}
			upAddr := frame.UpFrame()
			if upAddr == 0 {
				n := disp.count
				if n > len(results) {
					n = len(results)
				}
				copy(results[:n], stackResults[:n])
				return disp.count, nil
			}
			previous, fault := resolveFrame(m.heap, m.pool, upAddr)
			if fault != nil {
				fault.Frame = frame
				return 0, fault
			}
			if fault := previous.PutN(stackResults); fault != nil {
				return 0, fault
			}
			frame = previous

		case dispJump:
			if disp.newPC >= len(frame.bytecode) {
				return 0, newFault(OutOfBounds, frame)
			}
			frame.setPC(disp.newPC)
		}
	}
}

// frameFromOffset looks up a code block by compact pool offset and
// allocates a frame for it, linked to up.
func (m *VM) frameFromOffset(offset uint32, up *Frame) (*Frame, *Fault) {
	return m.frameFromAddr(m.pool.AddrFromOffset(offset), up)
}

// frameFromAddr looks up a code block by full pool address (as produced by
// a CONSTANT instruction) and allocates a frame for it, linked to up.
func (m *VM) frameFromAddr(addr Word, up *Frame) (*Frame, *Fault) {
	offset, ok := m.pool.OffsetFromAddr(addr)
	if !ok {
		return nil, newFault(InvalidAddress, up)
	}
	code, fault := m.pool.GetCode(addr)
	if fault != nil {
		fault.Frame = up
		return nil, fault
	}
	return allocateFrame(m.heap, offset, code, up)
}

// executeOne dispatches a single decoded instruction against frame,
// mutating its operand stack/locals in place and returning what the main
// loop should do next.
func (m *VM) executeOne(instr Instruction, frame *Frame) (disposition, *Fault) {
	switch instr.Opcode {

	// zero immediates

	case Break:
		return disposition{}, newFault(BreakHit, frame)

	case Nop:
		// nothing

	case Dup:
		v, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(v); fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(v); fault != nil {
			return disposition{}, fault
		}

	case Drop:
		if _, fault := frame.Get(); fault != nil {
			return disposition{}, fault
		}

	case Call:
		count, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		return disposition{kind: dispCall, addr: addr, count: int(count)}, nil

	case Return:
		count, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		return disposition{kind: dispReturn, count: int(count)}, nil

	case NewOp:
		fill, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		slots, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		obj, fault := m.newObject(int(slots), int(fill), frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(obj); fault != nil {
			return disposition{}, fault
		}

	case Size:
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		size, fault := m.objectSize(addr, frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(size); fault != nil {
			return disposition{}, fault
		}

	case LoadSlot:
		slot, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		v, fault := m.loadSlot(addr, int(slot), frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(v); fault != nil {
			return disposition{}, fault
		}

	case StoreSlot:
		v, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		slot, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		if fault := m.storeSlot(addr, int(slot), v, frame); fault != nil {
			return disposition{}, fault
		}

	case If:
		cond, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		if cond == 0 {
			return disposition{kind: dispSkip}, nil
		}

	// one immediate

	case Immediate:
		if fault := frame.Put(intToWord(instr.N1)); fault != nil {
			return disposition{}, fault
		}

	case Constant:
		if fault := frame.Put(m.pool.AddrFromOffset(uint32(instr.N1))); fault != nil {
			return disposition{}, fault
		}

	case LoadSlotN:
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		v, fault := m.loadSlot(addr, instr.N1, frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(v); fault != nil {
			return disposition{}, fault
		}

	case StoreSlotN:
		v, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		if fault := m.storeSlot(addr, instr.N1, v, frame); fault != nil {
			return disposition{}, fault
		}

	case LoadLocalN:
		if instr.N1 < 0 || instr.N1 >= frame.LocalCount() {
			return disposition{}, newFault(OutOfBounds, frame)
		}
		if fault := frame.Put(frame.GetLocal(instr.N1)); fault != nil {
			return disposition{}, fault
		}

	case StoreLocalN:
		if instr.N1 < 0 || instr.N1 >= frame.LocalCount() {
			return disposition{}, newFault(OutOfBounds, frame)
		}
		v, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		frame.SetLocal(instr.N1, v)

	case LoadGlobalN:
		v, ok := m.getGlobal(instr.N1)
		if !ok {
			return disposition{}, newFault(OutOfBounds, frame)
		}
		if fault := frame.Put(v); fault != nil {
			return disposition{}, fault
		}

	case StoreGlobalN:
		v, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		if !m.setGlobal(instr.N1, v) {
			return disposition{}, newFault(OutOfBounds, frame)
		}

	case Unary:
		v, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		result, fault := evalUnary(UnaryOp(instr.N1), int(v), frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(intToWord(result)); fault != nil {
			return disposition{}, fault
		}

	case Binary:
		v2, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		v1, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		result, fault := evalBinary(BinaryOp(instr.N1), int(v1), int(v2), frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(intToWord(result)); fault != nil {
			return disposition{}, fault
		}

	case CallN:
		addr, fault := frame.Get()
		if fault != nil {
			return disposition{}, fault
		}
		return disposition{kind: dispCall, addr: addr, count: instr.N1}, nil

	case ReturnN:
		return disposition{kind: dispReturn, count: instr.N1}, nil

	case Jump:
		return disposition{kind: dispJump, newPC: instr.N1}, nil

	// two immediates

	case NewNN:
		obj, fault := m.newObject(instr.N1, instr.N2, frame)
		if fault != nil {
			return disposition{}, fault
		}
		if fault := frame.Put(obj); fault != nil {
			return disposition{}, fault
		}

	default:
		return disposition{}, newFault(UnknownOpcode, frame)
	}

	return disposition{kind: dispContinue}, nil
}

// newObject implements NEW/NEW_N_N: allocate a slots-word array, fill the
// low `fill` slots from the operand stack (bottom of the popped region to
// slot 0), zero the rest, and return its heap address.
func (m *VM) newObject(slots, fill int, frame *Frame) (Word, *Fault) {
	if slots > maxObjectSlots {
		return 0, newFault(InvalidSize, frame)
	}
	if fill > slots {
		return 0, newFault(OutOfBounds, frame)
	}
	fields, fault := frame.GetN(fill)
	if fault != nil {
		return 0, fault
	}
	addr, ok := m.heap.AllocateArray(slots)
	if !ok {
		return 0, newFault(OutOfMemory, frame)
	}
	for i, v := range fields {
		m.heap.WriteWord(addr+Word(i*wordSize), v)
	}
	return addr, nil
}

// objectSize implements SIZE: the allocation size, in words, of a heap
// object. Only valid for heap addresses.
func (m *VM) objectSize(addr Word, frame *Frame) (Word, *Fault) {
	words, ok := m.heap.SizeWords(addr)
	if !ok {
		return 0, newFault(InvalidAddress, frame)
	}
	return intToWord(words), nil
}

// loadSlot implements LOAD_SLOT/LOAD_SLOT_N: slot_addr = addr + slot*word,
// readable from either the constant pool or the heap.
func (m *VM) loadSlot(addr Word, slot int, frame *Frame) (Word, *Fault) {
	slotAddr := addr + Word(slot*wordSize)
	if slotAddr%Word(wordSize) != 0 {
		return 0, newFault(Unaligned, frame)
	}
	v, ok := m.asSafeConstant(slotAddr)
	if !ok {
		return 0, newFault(InvalidAddress, frame)
	}
	return v, nil
}

// storeSlot implements STORE_SLOT/STORE_SLOT_N: the target must lie inside
// the heap; the constant pool is immutable.
func (m *VM) storeSlot(addr Word, slot int, value Word, frame *Frame) *Fault {
	slotAddr := addr + Word(slot*wordSize)
	if slotAddr%Word(wordSize) != 0 {
		return newFault(Unaligned, frame)
	}
	if !m.heap.WriteWord(slotAddr, value) {
		return newFault(InvalidAddress, frame)
	}
	return nil
}

func evalUnary(op UnaryOp, v int, frame *Frame) (int, *Fault) {
	switch op {
	case Not:
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case Negative:
		return -v, nil
	case BitNot:
		return ^v, nil
	default:
		return 0, newFault(UnknownOpcode, frame)
	}
}

func evalBinary(op BinaryOp, a, b int, frame *Frame) (int, *Fault) {
	switch op {
	case Add:
		return a + b, nil
	case Sub:
		return a - b, nil
	case Mul:
		return a * b, nil
	case Div:
		if b == 0 {
			return 0, newFault(DivideByZero, frame)
		}
		return a / b, nil
	case Mod:
		if b == 0 {
			return 0, newFault(DivideByZero, frame)
		}
		return a % b, nil
	case Equals:
		return boolWord(a == b), nil
	case LessThan:
		return boolWord(a < b), nil
	case LessOrEq:
		return boolWord(a <= b), nil
	case BitOr:
		return a | b, nil
	case BitAnd:
		return a & b, nil
	case BitXor:
		return a ^ b, nil
	case ShiftLeft:
		if b < 0 || b >= wordSize*8 {
			return 0, newFault(ShiftOverflow, frame)
		}
		return a << uint(b), nil
	case ShiftRight:
		if b < 0 || b >= wordSize*8 {
			return 0, newFault(ShiftOverflow, frame)
		}
		return int(uint(a) >> uint(b)), nil
	case SignShiftRight:
		if b < 0 || b >= wordSize*8 {
			return 0, newFault(ShiftOverflow, frame)
		}
		return a >> uint(b), nil
	default:
		return 0, newFault(UnknownOpcode, frame)
	}
}

func boolWord(b bool) int {
	if b {
		return 1
	}
	return 0
}
