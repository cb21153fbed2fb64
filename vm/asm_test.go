package vm

import "testing"

func TestAssembleSingleBlock(t *testing.T) {
	source := `
.code main 0 8
	IMMEDIATE 30
	IMMEDIATE 1
	RETURN
`
	program, err := Assemble(source)
	assert(t, err == nil, "assemble failed: %v", err)
	offset, ok := program.Symbols["main"]
	assert(t, ok, "missing symbol main")
	assert(t, offset == 0, "got offset %d", offset)

	m := newTestVM(t, program.Pool, 4096)
	out := make([]Word, 1)
	n, fault := m.Execute(offset, nil, out, nil, nil)
	assert(t, fault == nil, "unexpected fault: %v", fault)
	assert(t, n == 1 && out[0] == 30, "got n=%d out=%v", n, out)
}

func TestAssembleLocalLabel(t *testing.T) {
	source := `
.code main 0 8
	JUMP skip
	IMMEDIATE 999    // dead code, jumped over
skip:
	IMMEDIATE 7
	IMMEDIATE 1
	RETURN
`
	program, err := Assemble(source)
	assert(t, err == nil, "assemble failed: %v", err)

	m := newTestVM(t, program.Pool, 4096)
	out := make([]Word, 1)
	n, fault := m.Execute(program.Symbols["main"], nil, out, nil, nil)
	assert(t, fault == nil, "unexpected fault: %v", fault)
	assert(t, n == 1 && out[0] == 7, "got n=%d out=%v", n, out)
}

func TestAssembleCrossBlockConstant(t *testing.T) {
	source := `
.code main 0 4
	IMMEDIATE 5
	CONSTANT double
	IMMEDIATE 1
	CALL
	RETURN_N 1

.code double 1 4
	LOAD_LOCAL_N 0
	IMMEDIATE 2
	BINARY Mul
	RETURN_N 1
`
	program, err := Assemble(source)
	assert(t, err == nil, "assemble failed: %v", err)

	m := newTestVM(t, program.Pool, 4096)
	out := make([]Word, 1)
	n, fault := m.Execute(program.Symbols["main"], nil, out, nil, nil)
	assert(t, fault == nil, "unexpected fault: %v", fault)
	assert(t, n == 1 && out[0] == 10, "got n=%d out=%v", n, out)
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble(".code main 0 0\n\tFROB 1\n")
	assert(t, err != nil, "expected an error for an unknown mnemonic")
}

func TestAssembleUndefinedLabel(t *testing.T) {
	_, err := Assemble(".code main 0 0\n\tJUMP nowhere\n")
	assert(t, err != nil, "expected an error for an undefined label")
}
