package vm

import "testing"

func testCode() CodeObject {
	return CodeObject{LocalCount: 2, MaxStack: 4, Bytecode: []byte{byte(Nop)}}
}

func TestAllocateFrameAndPushPop(t *testing.T) {
	heap := NewHeap(make([]byte, 1024))
	frame, fault := allocateFrame(heap, 0, testCode(), nil)
	assert(t, fault == nil, "unexpected fault: %v", fault)
	assert(t, frame.UpFrame() == 0, "root frame should have no up_frame")

	assert(t, frame.Put(42) == nil, "put failed")
	assert(t, frame.Put(7) == nil, "put failed")
	assert(t, frame.SP() == 2, "got sp %d", frame.SP())

	v, fault := frame.Get()
	assert(t, fault == nil && v == 7, "got %d, fault %v", v, fault)
	v, fault = frame.Get()
	assert(t, fault == nil && v == 42, "got %d, fault %v", v, fault)
	assert(t, frame.SP() == 0, "got sp %d", frame.SP())
}

func TestFrameStackUnderflow(t *testing.T) {
	heap := NewHeap(make([]byte, 1024))
	frame, _ := allocateFrame(heap, 0, testCode(), nil)
	_, fault := frame.Get()
	assert(t, fault != nil && fault.Code == StackUnderflow, "got %v", fault)
}

func TestFrameStackOverflow(t *testing.T) {
	heap := NewHeap(make([]byte, 1024))
	code := CodeObject{LocalCount: 0, MaxStack: 2, Bytecode: []byte{}}
	frame, _ := allocateFrame(heap, 0, code, nil)
	assert(t, frame.Put(1) == nil, "put 1 failed")
	assert(t, frame.Put(2) == nil, "put 2 failed")
	fault := frame.Put(3)
	assert(t, fault != nil && fault.Code == StackOverflow, "got %v", fault)
}

func TestStartLocalsOverflow(t *testing.T) {
	heap := NewHeap(make([]byte, 1024))
	code := CodeObject{LocalCount: 1, MaxStack: 1, Bytecode: []byte{}}
	frame, _ := allocateFrame(heap, 0, code, nil)
	fault := frame.StartLocals([]Word{1, 2})
	assert(t, fault != nil && fault.Code == LocalsOverflow, "got %v", fault)
}

func TestGetLocalSetLocal(t *testing.T) {
	heap := NewHeap(make([]byte, 1024))
	frame, _ := allocateFrame(heap, 0, testCode(), nil)
	assert(t, frame.StartLocals([]Word{11, 22}) == nil, "start locals failed")
	assert(t, frame.GetLocal(0) == 11 && frame.GetLocal(1) == 22, "got %d/%d", frame.GetLocal(0), frame.GetLocal(1))
	frame.SetLocal(1, 99)
	assert(t, frame.GetLocal(1) == 99, "got %d", frame.GetLocal(1))
}

func TestResolveFrameRederivesCodeObject(t *testing.T) {
	heap := NewHeap(make([]byte, 1024))
	poolData := []byte{2, 4, 1, 0, byte(Nop)}
	pool := NewPool(poolData)

	root, fault := allocateFrame(heap, 0, testCode(), nil)
	assert(t, fault == nil, "unexpected fault: %v", fault)

	code, fault := pool.GetCode(pool.AddrFromOffset(0))
	assert(t, fault == nil, "unexpected fault: %v", fault)
	child, fault := allocateFrame(heap, 0, code, root)
	assert(t, fault == nil, "unexpected fault: %v", fault)
	assert(t, child.UpFrame() == root.Addr(), "up_frame not linked")

	resolved, fault := resolveFrame(heap, pool, root.Addr())
	assert(t, fault == nil, "unexpected fault: %v", fault)
	assert(t, resolved.LocalCount() == root.LocalCount(), "got %d, want %d", resolved.LocalCount(), root.LocalCount())
}
