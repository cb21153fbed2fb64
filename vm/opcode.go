package vm

// Opcode is the single byte at the start of every instruction. The high
// nibble of the byte partitions the opcode space by immediate count: 0x00-
// 0x0F take none, 0x10-0x1F take one signed immediate, 0x20-0x2F take two,
// and 0x30+ is unused.
type Opcode byte

const (
	Break Opcode = 0x00
	Nop   Opcode = 0x01
	Dup   Opcode = 0x02
	Drop  Opcode = 0x03
	Call  Opcode = 0x04
	Return Opcode = 0x05
	NewOp Opcode = 0x06
	Size  Opcode = 0x07
	LoadSlot  Opcode = 0x08
	StoreSlot Opcode = 0x09
	If    Opcode = 0x0A

	Immediate     Opcode = 0x10
	Constant      Opcode = 0x11
	LoadSlotN     Opcode = 0x12
	StoreSlotN    Opcode = 0x13
	LoadLocalN    Opcode = 0x14
	StoreLocalN   Opcode = 0x15
	LoadGlobalN   Opcode = 0x16
	StoreGlobalN  Opcode = 0x17
	Unary         Opcode = 0x18
	Binary        Opcode = 0x19
	CallN         Opcode = 0x1A
	ReturnN       Opcode = 0x1B
	Jump          Opcode = 0x1C

	NewNN Opcode = 0x20
)

const (
	firstOneImmOpcode = 0x10
	firstTwoImmOpcode = 0x20
	firstUnusedOpcode = 0x30
)

// ImmediateCount returns how many signed immediates follow this opcode byte
// in the instruction stream, as fixed by the high-nibble partition of the
// opcode space (§4.3). It does not validate that op is a recognized
// instruction within its class.
func (op Opcode) ImmediateCount() int {
	switch {
	case byte(op) < firstOneImmOpcode:
		return 0
	case byte(op) < firstTwoImmOpcode:
		return 1
	case byte(op) < firstUnusedOpcode:
		return 2
	default:
		return -1 // unused opcode space
	}
}

var opcodeNames = map[Opcode]string{
	Break: "BREAK", Nop: "NOP", Dup: "DUP", Drop: "DROP", Call: "CALL",
	Return: "RETURN", NewOp: "NEW", Size: "SIZE", LoadSlot: "LOAD_SLOT",
	StoreSlot: "STORE_SLOT", If: "IF",
	Immediate: "IMMEDIATE", Constant: "CONSTANT", LoadSlotN: "LOAD_SLOT_N",
	StoreSlotN: "STORE_SLOT_N", LoadLocalN: "LOAD_LOCAL_N",
	StoreLocalN: "STORE_LOCAL_N", LoadGlobalN: "LOAD_GLOBAL_N",
	StoreGlobalN: "STORE_GLOBAL_N", Unary: "UNARY", Binary: "BINARY",
	CallN: "CALL_N", ReturnN: "RETURN_N", Jump: "JUMP",
	NewNN: "NEW_N_N",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

var mnemonicToOpcode map[string]Opcode

func init() {
	mnemonicToOpcode = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		mnemonicToOpcode[name] = op
	}
}

// UnaryOp selects the operation for a UNARY instruction (§4.7).
type UnaryOp int

const (
	Not UnaryOp = iota
	Negative
	BitNot
)

var unaryNames = map[UnaryOp]string{Not: "Not", Negative: "Negative", BitNot: "BitNot"}

func (u UnaryOp) String() string {
	if s, ok := unaryNames[u]; ok {
		return s
	}
	return "?"
}

// BinaryOp selects the operation for a BINARY instruction (§4.7).
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Equals
	LessThan
	LessOrEq
	BitOr
	BitAnd
	BitXor
	ShiftLeft
	ShiftRight
	SignShiftRight
)

var binaryNames = map[BinaryOp]string{
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod",
	Equals: "Equals", LessThan: "LessThan", LessOrEq: "LessOrEq",
	BitOr: "BitOr", BitAnd: "BitAnd", BitXor: "BitXor",
	ShiftLeft: "ShiftLeft", ShiftRight: "ShiftRight", SignShiftRight: "SignShiftRight",
}

func (b BinaryOp) String() string {
	if s, ok := binaryNames[b]; ok {
		return s
	}
	return "?"
}

var mnemonicToUnary = map[string]UnaryOp{"Not": Not, "Negative": Negative, "BitNot": BitNot}
var mnemonicToBinary = map[string]BinaryOp{
	"Add": Add, "Sub": Sub, "Mul": Mul, "Div": Div, "Mod": Mod,
	"Equals": Equals, "LessThan": LessThan, "LessOrEq": LessOrEq,
	"BitOr": BitOr, "BitAnd": BitAnd, "BitXor": BitXor,
	"ShiftLeft": ShiftLeft, "ShiftRight": ShiftRight, "SignShiftRight": SignShiftRight,
}
