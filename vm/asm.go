package vm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// symbolWidth is how many bytes a forward or cross-block symbolic reference
// (a JUMP label or a CONSTANT block name) always reserves, regardless of its
// eventual resolved value. Reserving a fixed width lets every other
// instruction's byte offset be computed in a single forward pass, before any
// symbol is resolved, at the cost of a few wasted bytes per reference. A
// fully general assembler would instead iterate to a fixed point and let
// each reference take its natural width; this is the simpler of the two and
// the one this package implements.
const symbolWidth = 5

var asmComment = regexp.MustCompile(`//.*$`)

// Program is an assembled constant pool together with the symbol table an
// assembly source file defined: each ".code" block's name mapped to the
// compact offset (§6) CONSTANT/Execute expect.
type Program struct {
	Pool    []byte
	Symbols map[string]uint32
}

type asmItem struct {
	label   string // non-empty for a label definition, nothing else set
	lineNo  int
	op      Opcode
	argToks []string
}

type asmBlock struct {
	name             string
	localCount       int
	maxStack         int
	items            []asmItem
	length           int            // final bytecode length, in bytes
	labels           map[string]int // local label -> byte offset
	headerStart      int            // byte offset of this block's header within the pool
}

// Assemble parses a line-oriented assembly source text into a constant
// pool. Each physical line is a blank line, a "// ..." comment, a
// ".code name localCount maxStack" directive opening a new code block, a
// "label:" definition, or one instruction: an opcode mnemonic followed by
// zero, one, or two whitespace-separated immediates. An immediate may be a
// decimal or "0x"-prefixed hex literal; CONSTANT's immediate and JUMP's
// immediate may instead name a ".code" block or a local label, resolved to
// the matching compact offset or byte offset.
func Assemble(source string) (*Program, error) {
	blocks, err := parseBlocks(source)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if err := sizeBlock(&blocks[i]); err != nil {
			return nil, err
		}
	}

	symbols := make(map[string]uint32, len(blocks))
	cursor := 0
	for i := range blocks {
		if pad := cursor % 4; pad != 0 {
			cursor += 4 - pad
		}
		blocks[i].headerStart = cursor
		symbols[blocks[i].name] = uint32(cursor / 4)
		cursor += 4 + blocks[i].length
	}

	pool := make([]byte, cursor)
	for i := range blocks {
		if err := emitBlock(pool, &blocks[i], symbols); err != nil {
			return nil, err
		}
	}

	return &Program{Pool: pool, Symbols: symbols}, nil
}

func parseBlocks(source string) ([]asmBlock, error) {
	var blocks []asmBlock
	var current *asmBlock

	for lineNo, raw := range strings.Split(source, "\n") {
		lineNo++ // 1-based for diagnostics
		line := strings.TrimSpace(asmComment.ReplaceAllString(raw, ""))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".code") {
			fields := strings.Fields(line)
			if len(fields) != 4 {
				return nil, fmt.Errorf("line %d: .code requires name localCount maxStack", lineNo)
			}
			localCount, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad localCount: %w", lineNo, err)
			}
			maxStack, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad maxStack: %w", lineNo, err)
			}
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &asmBlock{name: fields[1], localCount: localCount, maxStack: maxStack}
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: instruction before any .code block", lineNo)
		}

		if strings.HasSuffix(line, ":") {
			current.items = append(current.items, asmItem{label: strings.TrimSuffix(line, ":"), lineNo: lineNo})
			continue
		}

		fields := strings.Fields(line)
		mnemonic := fields[0]
		op, ok := mnemonicToOpcode[mnemonic]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown instruction %q", lineNo, mnemonic)
		}
		current.items = append(current.items, asmItem{op: op, argToks: fields[1:], lineNo: lineNo})
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks, nil
}

// sizeBlock computes every instruction's byte width and every label's byte
// offset in one forward pass; see symbolWidth's comment for why this is
// possible without knowing any symbol's resolved value yet.
func sizeBlock(b *asmBlock) error {
	b.labels = make(map[string]int)
	offset := 0
	for _, item := range b.items {
		if item.label != "" {
			b.labels[item.label] = offset
			continue
		}
		n := item.op.ImmediateCount()
		if n < 0 {
			return fmt.Errorf("line %d: opcode 0x%02x has no immediate form", item.lineNo, byte(item.op))
		}
		if len(item.argToks) != n {
			return fmt.Errorf("line %d: %s needs %d immediate(s), got %d", item.lineNo, item.op, n, len(item.argToks))
		}
		width := 1
		for _, tok := range item.argToks {
			if v, ok := resolveImmediateLiteral(item.op, tok); ok {
				width += len(encodeSint(nil, v))
			} else {
				width += symbolWidth
			}
		}
		offset += width
	}
	b.length = offset
	return nil
}

func emitBlock(pool []byte, b *asmBlock, symbols map[string]uint32) error {
	body := pool[b.headerStart+4 : b.headerStart+4+b.length]
	offset := 0
	for _, item := range b.items {
		if item.label != "" {
			continue
		}
		body[offset] = byte(item.op)
		offset++
		for _, tok := range item.argToks {
			if v, ok := resolveImmediateLiteral(item.op, tok); ok {
				enc := encodeSint(nil, v)
				copy(body[offset:], enc)
				offset += len(enc)
				continue
			}
			resolved, err := resolveSymbol(item.op, tok, b, symbols)
			if err != nil {
				return fmt.Errorf("line %d: %w", item.lineNo, err)
			}
			enc := padVarint(encodeSint(nil, resolved), symbolWidth)
			copy(body[offset:], enc)
			offset += symbolWidth
		}
	}

	pool[b.headerStart] = byte(b.localCount)
	pool[b.headerStart+1] = byte(b.maxStack)
	pool[b.headerStart+2] = byte(b.length)
	pool[b.headerStart+3] = byte(b.length >> 8)
	return nil
}

func resolveSymbol(op Opcode, tok string, b *asmBlock, symbols map[string]uint32) (int, error) {
	switch op {
	case Jump:
		off, ok := b.labels[tok]
		if !ok {
			return 0, fmt.Errorf("undefined label %q", tok)
		}
		return off, nil
	case Constant:
		off, ok := symbols[tok]
		if !ok {
			return 0, fmt.Errorf("undefined code block %q", tok)
		}
		return int(off), nil
	default:
		return 0, fmt.Errorf("%s does not accept a symbolic operand %q", op, tok)
	}
}

// resolveImmediateLiteral resolves an immediate token to a value known at
// assembly time: a numeric literal, or (for UNARY/BINARY) the mnemonic name
// of the unary/binary operation. These are never forward references, unlike
// a JUMP label or a CONSTANT block name, so they never need symbolWidth
// padding.
func resolveImmediateLiteral(op Opcode, tok string) (int, bool) {
	if v, ok := parseLiteral(tok); ok {
		return v, true
	}
	switch op {
	case Unary:
		if u, ok := mnemonicToUnary[tok]; ok {
			return int(u), true
		}
	case Binary:
		if b, ok := mnemonicToBinary[tok]; ok {
			return int(b), true
		}
	}
	return 0, false
}

func parseLiteral(tok string) (int, bool) {
	base := 10
	s := tok
	if strings.HasPrefix(s, "0x") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, false
	}
	return int(v), true
}
