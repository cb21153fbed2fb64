package vm

import "encoding/binary"

// maxLocalsOrStack is the largest legal local_count / max_stack value a code
// header may declare (§3: "0..=63").
const maxLocalsOrStack = 63

// Pool is a read-only, caller-owned constant pool: bytecode and literal
// objects, addressed either as byte offsets or as a 4-byte-aligned "offset"
// (offset = (addr-base)>>2) for compact embedding in CONSTANT instructions.
type Pool struct {
	data []byte
	base Word
}

// NewPool wraps a byte slice the host will not mutate for the lifetime of
// any VM built on it. The pool's base address must be 4-byte aligned,
// since CONSTANT instructions reconstruct addresses by shifting a 32-bit
// offset left by 2.
func NewPool(data []byte) *Pool {
	p := &Pool{data: data}
	if len(data) > 0 {
		p.base = addressOf(data)
	}
	return p
}

func (p *Pool) end() Word {
	return p.base + Word(len(p.data))
}

// AddrFromOffset expands a compact 4-byte-aligned offset into a full
// address in this pool.
func (p *Pool) AddrFromOffset(offset uint32) Word {
	return p.base + (Word(offset) << 2)
}

// OffsetFromAddr is the inverse of AddrFromOffset. addr must lie inside the
// pool and be 4-byte aligned.
func (p *Pool) OffsetFromAddr(addr Word) (uint32, bool) {
	if addr < p.base || addr >= p.end() || (addr-p.base)%4 != 0 {
		return 0, false
	}
	return uint32((addr - p.base) >> 2), true
}

// IsInside reports whether addr falls inside this pool's byte region.
func (p *Pool) IsInside(addr Word) bool {
	return len(p.data) > 0 && addr >= p.base && addr < p.end()
}

func (p *Pool) inRange(addr Word, length int) bool {
	return len(p.data) > 0 && addr >= p.base && int(addr-p.base)+length <= len(p.data) && length >= 0
}

// ReadWord reads one word at addr, which must lie inside the pool and be
// word-aligned.
func (p *Pool) ReadWord(addr Word) (Word, bool) {
	if !p.inRange(addr, wordSize) {
		return 0, false
	}
	off := int(addr - p.base)
	return Word(binary.LittleEndian.Uint64(p.data[off:])), true
}

// CodeObject is a code block recovered from the pool: the header plus a
// view of its bytecode. It is not stored in a stack frame; it is re-derived
// from code_offset on demand, per §3.
type CodeObject struct {
	LocalCount int
	MaxStack   int
	Bytecode   []byte
}

// GetCode parses the code-block header (§3) at addr: one byte local_count,
// one byte max_stack, a little-endian u16 bytecode_len, then bytecode_len
// bytes of bytecode.
func (p *Pool) GetCode(addr Word) (CodeObject, *Fault) {
	if !p.inRange(addr, 4) {
		return CodeObject{}, newFault(InvalidAddress, nil)
	}
	off := int(addr - p.base)
	header := p.data[off : off+4]
	localCount := int(header[0])
	maxStack := int(header[1])
	if localCount > maxLocalsOrStack || maxStack > maxLocalsOrStack {
		return CodeObject{}, newFault(InvalidCodeObject, nil)
	}
	length := int(header[2]) | int(header[3])<<8
	if !p.inRange(addr+4, length) {
		return CodeObject{}, newFault(InvalidAddress, nil)
	}
	bodyOff := off + 4
	return CodeObject{
		LocalCount: localCount,
		MaxStack:   maxStack,
		Bytecode:   p.data[bodyOff : bodyOff+length],
	}, nil
}

// Index looks up the n'th length-prefixed constant blob in the pool, a
// convenience accessor layered over the raw offset scheme for host code
// (an assembler or compiler) that wants to locate literal data by ordinal
// without pre-computing byte offsets. Each entry is a varint length
// followed by that many bytes; Index walks past `n` entries and decodes
// the following varint as the length of the requested one.
func (p *Pool) Index(n int) ([]byte, bool) {
	i := 0
	for n > 0 {
		length, next, ok := decodeUint(p.data, i)
		if !ok {
			return nil, false
		}
		i = next + int(length)
		n--
	}
	length, next, ok := decodeUint(p.data, i)
	if !ok || next+int(length) > len(p.data) {
		return nil, false
	}
	return p.data[next : next+int(length)], true
}
