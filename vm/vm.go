package vm

// CurrentTimeFunc supplies a monotonic clock reading for deadline
// enforcement. If a VM is built without one, the deadline argument to
// Execute is ignored, per §6.
type CurrentTimeFunc func() uint64

// VM is one instance of the interpreter: an immutable constant pool, a
// heap it owns exclusively for the duration of an Execute call, a globals
// array allocated once at construction, and an optional clock. A VM must
// not be shared between concurrently executing goroutines; execution is
// single-threaded and cooperative (§5).
type VM struct {
	pool        *Pool
	heap        *Heap
	globals     Word
	globalCount int
	currentTime CurrentTimeFunc
}

// New builds a VM over a caller-owned constant pool and heap region. The
// globals array is allocated once here, on the heap, and persists for the
// life of the VM across Execute calls (§3, §9 "Global state").
func New(constantPool []byte, heapMemory []byte, globalCount int, currentTime CurrentTimeFunc) (*VM, *Fault) {
	pool := NewPool(constantPool)
	heap := NewHeap(heapMemory)
	globalsAddr, ok := heap.AllocateArray(globalCount)
	if !ok {
		return nil, newFault(OutOfMemory, nil)
	}
	return &VM{
		pool:        pool,
		heap:        heap,
		globals:     globalsAddr,
		globalCount: globalCount,
		currentTime: currentTime,
	}, nil
}

func (m *VM) getGlobal(n int) (Word, bool) {
	if n < 0 || n >= m.globalCount {
		return 0, false
	}
	v, ok := m.heap.ReadWord(m.globals + Word(n*wordSize))
	return v, ok
}

func (m *VM) setGlobal(n int, v Word) bool {
	if n < 0 || n >= m.globalCount {
		return false
	}
	return m.heap.WriteWord(m.globals+Word(n*wordSize), v)
}

// asSafeConstant reads a word that may live in either the constant pool or
// the heap. This dual check, not a type tag, is how the VM tells the two
// regions apart (§9 "Pointer tagging vs. dual-region checks").
func (m *VM) asSafeConstant(addr Word) (Word, bool) {
	if m.pool.IsInside(addr) {
		return m.pool.ReadWord(addr)
	}
	if m.heap.IsInside(addr) {
		return m.heap.ReadWord(addr)
	}
	return 0, false
}
