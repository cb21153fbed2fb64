package vm

import "encoding/binary"

func init() {
	if wordSize != 8 {
		// The packed header below assumes a word is exactly 8 bytes (a
		// 64-bit host); a 32-bit build would need a 3-word header
		// variant, which isn't supported here.
		panic("wordvm: unsupported word size")
	}
}

// frameHeaderBytes is the size, in bytes, of a stack frame's header: one
// word for up_frame, plus one more word holding code_offset (4B), pc (2B),
// sp (1B) and a pad byte (§3). On a 64-bit host (checked above) that's 16
// bytes, 2 words.
const frameHeaderBytes = 16

// Frame is a view over one activation record: a heap allocation consisting
// of the header above, local_count locals, and max_stack operand-stack
// slots. It does not itself store the code object (local_count, max_stack,
// bytecode) across calls; those are always re-derived from code_offset via
// the pool, so a Frame can be reconstructed purely from its heap address.
type Frame struct {
	heap       *Heap
	addr       Word
	codeOffset uint32
	localCount int
	maxStack   int
	bytecode   []byte
}

// Addr is this frame's heap address, the value a caller frame's up_frame
// slot is set to.
func (f *Frame) Addr() Word { return f.addr }

func (f *Frame) header() []byte {
	b, ok := f.heap.bytesAt(f.addr, frameHeaderBytes)
	if !ok {
		panic("wordvm: frame header out of bounds")
	}
	return b
}

// UpFrame returns the caller frame's heap address, or 0 if this is the root
// frame.
func (f *Frame) UpFrame() Word {
	return Word(binary.LittleEndian.Uint64(f.header()[:8]))
}

func (f *Frame) setUpFrame(up Word) {
	binary.LittleEndian.PutUint64(f.header()[:8], uint64(up))
}

func (f *Frame) setCodeOffset(offset uint32) {
	binary.LittleEndian.PutUint32(f.header()[8:12], offset)
}

// PC is the current instruction pointer: a byte offset into this frame's
// bytecode.
func (f *Frame) PC() int {
	return int(binary.LittleEndian.Uint16(f.header()[12:14]))
}

func (f *Frame) setPC(pc int) {
	binary.LittleEndian.PutUint16(f.header()[12:14], uint16(pc))
}

// SP is the current operand-stack depth, in [0, max_stack].
func (f *Frame) SP() int {
	return int(f.header()[14])
}

func (f *Frame) setSP(sp int) {
	f.header()[14] = byte(sp)
}

func (f *Frame) localsOffset() Word {
	return f.addr + Word(frameHeaderBytes)
}

func (f *Frame) stackOffset() Word {
	return f.localsOffset() + Word(f.localCount*wordSize)
}

// Locals returns a direct, bounds-checked view of this frame's local slots.
func (f *Frame) Locals() []byte {
	b, ok := f.heap.bytesAt(f.localsOffset(), f.localCount*wordSize)
	if !ok {
		panic("wordvm: frame locals out of bounds")
	}
	return b
}

// LocalCount reports how many local slots this frame has.
func (f *Frame) LocalCount() int { return f.localCount }

// GetLocal reads local slot n. The caller is responsible for bounds
// checking against LocalCount and turning a panic into OutOfBounds; the
// interpreter does this once, in the LOAD_LOCAL_N/STORE_LOCAL_N handlers.
func (f *Frame) GetLocal(n int) Word {
	locals := f.Locals()
	return Word(binary.LittleEndian.Uint64(locals[n*wordSize:]))
}

// SetLocal writes local slot n.
func (f *Frame) SetLocal(n int, v Word) {
	locals := f.Locals()
	binary.LittleEndian.PutUint64(locals[n*wordSize:], uint64(v))
}

func (f *Frame) stackSlot(i int) []byte {
	b, ok := f.heap.bytesAt(f.stackOffset()+Word(i*wordSize), wordSize)
	if !ok {
		panic("wordvm: frame stack out of bounds")
	}
	return b
}

// Get pops and returns the top of the operand stack.
func (f *Frame) Get() (Word, *Fault) {
	sp := f.SP()
	if sp == 0 {
		return 0, newFault(StackUnderflow, f)
	}
	sp--
	v := Word(binary.LittleEndian.Uint64(f.stackSlot(sp)))
	f.setSP(sp)
	return v, nil
}

// GetN pops the top n values and returns them in the order they were
// pushed (the bottom of the popped region first). The returned slice is a
// fresh copy, so later pushes on this frame do not change it.
func (f *Frame) GetN(n int) ([]Word, *Fault) {
	sp := f.SP()
	if n > sp {
		return nil, newFault(StackUnderflow, f)
	}
	sp -= n
	out := make([]Word, n)
	for i := 0; i < n; i++ {
		out[i] = Word(binary.LittleEndian.Uint64(f.stackSlot(sp + i)))
	}
	f.setSP(sp)
	return out, nil
}

// Put pushes one value onto the operand stack.
func (f *Frame) Put(v Word) *Fault {
	sp := f.SP()
	if sp == f.maxStack {
		return newFault(StackOverflow, f)
	}
	binary.LittleEndian.PutUint64(f.stackSlot(sp), uint64(v))
	f.setSP(sp + 1)
	return nil
}

// PutN pushes each value in order.
func (f *Frame) PutN(values []Word) *Fault {
	for _, v := range values {
		if fault := f.Put(v); fault != nil {
			return fault
		}
	}
	return nil
}

// StartLocals copies args into locals[0:len(args)] at frame creation; the
// remaining locals are already zero from allocation.
func (f *Frame) StartLocals(args []Word) *Fault {
	if len(args) > f.localCount {
		return newFault(LocalsOverflow, f)
	}
	for i, a := range args {
		f.SetLocal(i, a)
	}
	return nil
}

// allocateFrame bump-allocates a new frame on heap for the given code
// object and links it to the caller.
func allocateFrame(heap *Heap, codeOffset uint32, code CodeObject, up *Frame) (*Frame, *Fault) {
	total := frameHeaderBytes + (code.LocalCount+code.MaxStack)*wordSize
	addr, ok := heap.AllocateDynamic(total)
	if !ok {
		return nil, newFault(OutOfMemory, up)
	}
	f := &Frame{
		heap:       heap,
		addr:       addr,
		codeOffset: codeOffset,
		localCount: code.LocalCount,
		maxStack:   code.MaxStack,
		bytecode:   code.Bytecode,
	}
	f.setCodeOffset(codeOffset)
	if up != nil {
		f.setUpFrame(up.addr)
	}
	return f, nil
}

// resolveFrame reconstructs a Frame view for a previously allocated frame
// at addr, re-deriving its code object from the pool via the code_offset
// stored in its header. This is how RETURN walks back to the caller: the
// frame itself never cached its code object.
func resolveFrame(heap *Heap, pool *Pool, addr Word) (*Frame, *Fault) {
	f := &Frame{heap: heap, addr: addr}
	codeOffset := binary.LittleEndian.Uint32(f.header()[8:12])
	code, fault := pool.GetCode(pool.AddrFromOffset(codeOffset))
	if fault != nil {
		return nil, fault
	}
	f.codeOffset = codeOffset
	f.localCount = code.LocalCount
	f.maxStack = code.MaxStack
	f.bytecode = code.Bytecode
	return f, nil
}
