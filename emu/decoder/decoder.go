package decoder

/*
 * MIPS-I simulator - instruction decoder and encoder.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package decoder implements table-driven decode, encode and disassembly
// of the MIPS-I integer subset. Decode and encode share the same opcode
// tables (a map from numeric selector to a {mnemonic, format} entry per
// dispatch level), so decode(encode(x)) == x for every instruction this
// package accepts.

import (
	"fmt"

	"github.com/mipssim/core/emu/trap"
)

// Format identifies which of the three MIPS-I instruction word layouts
// an Instruction was decoded from.
type Format int

const (
	RFormat Format = iota
	IFormat
	JFormat
)

// Instruction is the decoded form of one 32-bit MIPS-I word. Only the
// fields meaningful for Format/Mnemonic are populated; the rest are
// zero, and Encode reads only the fields it needs for that Format, so a
// round trip through Decode then Encode reproduces the original word.
type Instruction struct {
	Mnemonic          string
	Format            Format
	Opcode            uint32
	Funct             uint32
	Rs, Rt, Rd, Shamt int
	Imm               uint16 // raw 16-bit immediate/offset field, sign or zero extended by the core per mnemonic
	Target            uint32 // raw 26-bit jump target field
}

// SignExtImm sign-extends the 16-bit immediate field.
func (i Instruction) SignExtImm() int32 {
	return int32(int16(i.Imm))
}

// ZeroExtImm zero-extends the 16-bit immediate field.
func (i Instruction) ZeroExtImm() uint32 {
	return uint32(i.Imm)
}

type entry struct {
	mnemonic string
	format   Format
}

// specialTable covers opcode SPECIAL (0), dispatched on the funct field.
var specialTable = map[uint32]entry{
	0x00: {"SLL", RFormat},
	0x02: {"SRL", RFormat},
	0x03: {"SRA", RFormat},
	0x04: {"SLLV", RFormat},
	0x06: {"SRLV", RFormat},
	0x07: {"SRAV", RFormat},
	0x08: {"JR", RFormat},
	0x09: {"JALR", RFormat},
	0x0C: {"SYSCALL", RFormat},
	0x0D: {"BREAK", RFormat},
	0x10: {"MFHI", RFormat},
	0x11: {"MTHI", RFormat},
	0x12: {"MFLO", RFormat},
	0x13: {"MTLO", RFormat},
	0x18: {"MULT", RFormat},
	0x19: {"MULTU", RFormat},
	0x1A: {"DIV", RFormat},
	0x1B: {"DIVU", RFormat},
	0x20: {"ADD", RFormat},
	0x21: {"ADDU", RFormat},
	0x22: {"SUB", RFormat},
	0x23: {"SUBU", RFormat},
	0x24: {"AND", RFormat},
	0x25: {"OR", RFormat},
	0x26: {"XOR", RFormat},
	0x27: {"NOR", RFormat},
	0x2A: {"SLT", RFormat},
	0x2B: {"SLTU", RFormat},
}

// regimmTable covers opcode REGIMM (1), dispatched on the rt field.
var regimmTable = map[uint32]entry{
	0x00: {"BLTZ", IFormat},
	0x01: {"BGEZ", IFormat},
	0x10: {"BLTZAL", IFormat},
	0x11: {"BGEZAL", IFormat},
}

// cop0Table covers opcode COP0 (0x10), dispatched on the rs field.
var cop0Table = map[uint32]entry{
	0x00: {"MFC0", RFormat},
	0x04: {"MTC0", RFormat},
}

// primaryTable covers every other opcode: I-format loads/stores,
// immediates and branches, plus the two J-format opcodes.
var primaryTable = map[uint32]entry{
	0x02: {"J", JFormat},
	0x03: {"JAL", JFormat},
	0x04: {"BEQ", IFormat},
	0x05: {"BNE", IFormat},
	0x06: {"BLEZ", IFormat},
	0x07: {"BGTZ", IFormat},
	0x08: {"ADDI", IFormat},
	0x09: {"ADDIU", IFormat},
	0x0A: {"SLTI", IFormat},
	0x0B: {"SLTIU", IFormat},
	0x0C: {"ANDI", IFormat},
	0x0D: {"ORI", IFormat},
	0x0E: {"XORI", IFormat},
	0x0F: {"LUI", IFormat},
	0x20: {"LB", IFormat},
	0x21: {"LH", IFormat},
	0x23: {"LW", IFormat},
	0x24: {"LBU", IFormat},
	0x25: {"LHU", IFormat},
	0x28: {"SB", IFormat},
	0x29: {"SH", IFormat},
	0x2B: {"SW", IFormat},
}

var (
	specialRev = reverse(specialTable)
	regimmRev  = reverse(regimmTable)
	cop0Rev    = reverse(cop0Table)
	primaryRev = reverse(primaryTable)
)

func reverse(m map[uint32]entry) map[string]uint32 {
	out := make(map[string]uint32, len(m))
	for k, e := range m {
		out[e.mnemonic] = k
	}
	return out
}

// Decode extracts an Instruction from word, or a trap.UnsupportedInstruction
// if no table entry matches. pc is attributed to the trap for EPC latching.
func Decode(word, pc uint32) (Instruction, *trap.Trap) {
	opcode := (word >> 26) & 0x3f
	switch opcode {
	case 0x00:
		funct := word & 0x3f
		e, ok := specialTable[funct]
		if !ok {
			return Instruction{}, trap.New(trap.UnsupportedInstruction, pc, fmt.Sprintf("special funct %#x", funct))
		}
		return Instruction{
			Mnemonic: e.mnemonic, Format: RFormat, Opcode: opcode, Funct: funct,
			Rs: field(word, 21), Rt: field(word, 16), Rd: field(word, 11), Shamt: field(word, 6),
		}, nil

	case 0x01:
		rt := uint32(field(word, 16))
		e, ok := regimmTable[rt]
		if !ok {
			return Instruction{}, trap.New(trap.UnsupportedInstruction, pc, fmt.Sprintf("regimm rt %#x", rt))
		}
		return Instruction{
			Mnemonic: e.mnemonic, Format: e.format, Opcode: opcode,
			Rs: field(word, 21), Rt: int(rt), Imm: uint16(word),
		}, nil

	case 0x02, 0x03:
		e := primaryTable[opcode]
		return Instruction{
			Mnemonic: e.mnemonic, Format: JFormat, Opcode: opcode, Target: word & 0x03ffffff,
		}, nil

	case 0x10:
		rs := uint32(field(word, 21))
		e, ok := cop0Table[rs]
		if !ok {
			return Instruction{}, trap.New(trap.UnsupportedInstruction, pc, fmt.Sprintf("cop0 rs %#x", rs))
		}
		return Instruction{
			Mnemonic: e.mnemonic, Format: e.format, Opcode: opcode,
			Rt: field(word, 16), Rd: field(word, 11),
		}, nil

	default:
		e, ok := primaryTable[opcode]
		if !ok {
			return Instruction{}, trap.New(trap.UnsupportedInstruction, pc, fmt.Sprintf("opcode %#x", opcode))
		}
		return Instruction{
			Mnemonic: e.mnemonic, Format: e.format, Opcode: opcode,
			Rs: field(word, 21), Rt: field(word, 16), Imm: uint16(word),
		}, nil
	}
}

func field(word uint32, shift uint) int {
	return int((word >> shift) & 0x1f)
}

// Encode rebuilds the 32-bit word for inst. It is the exact inverse of
// Decode for any Instruction Decode can produce, and is also used
// directly by the assembler (component H) to emit machine code from a
// parsed mnemonic and operand set.
func Encode(inst Instruction) (uint32, bool) {
	if funct, ok := specialRev[inst.Mnemonic]; ok {
		word := funct & 0x3f
		word |= uint32(inst.Rs&0x1f) << 21
		word |= uint32(inst.Rt&0x1f) << 16
		word |= uint32(inst.Rd&0x1f) << 11
		word |= uint32(inst.Shamt&0x1f) << 6
		return word, true
	}
	if rt, ok := regimmRev[inst.Mnemonic]; ok {
		word := uint32(0x01) << 26
		word |= uint32(inst.Rs&0x1f) << 21
		word |= rt << 16
		word |= uint32(inst.Imm)
		return word, true
	}
	if rs, ok := cop0Rev[inst.Mnemonic]; ok {
		word := uint32(0x10) << 26
		word |= rs << 21
		word |= uint32(inst.Rt&0x1f) << 16
		word |= uint32(inst.Rd&0x1f) << 11
		return word, true
	}
	if opcode, ok := primaryRev[inst.Mnemonic]; ok {
		word := opcode << 26
		// Dispatch on the table's format, not inst.Format, so a
		// hand-built Instruction (the assembler's) need not set it.
		switch primaryTable[opcode].format {
		case JFormat:
			word |= inst.Target & 0x03ffffff
		default:
			word |= uint32(inst.Rs&0x1f) << 21
			word |= uint32(inst.Rt&0x1f) << 16
			word |= uint32(inst.Imm)
		}
		return word, true
	}
	return 0, false
}

// reg formats a MIPS register number the conventional assembler way.
func reg(n int) string {
	return fmt.Sprintf("$%d", n&0x1f)
}

// Disassemble renders inst as a line of assembly text. It is a pure
// textual rendering; it does not resolve branch/jump targets to symbol
// names, which is the assembler/debugger's job when one is available.
func Disassemble(inst Instruction) string {
	switch inst.Format {
	case RFormat:
		switch inst.Mnemonic {
		case "SYSCALL", "BREAK":
			return inst.Mnemonic
		case "JR":
			return fmt.Sprintf("JR %s", reg(inst.Rs))
		case "JALR":
			return fmt.Sprintf("JALR %s, %s", reg(inst.Rd), reg(inst.Rs))
		case "MFHI", "MFLO":
			return fmt.Sprintf("%s %s", inst.Mnemonic, reg(inst.Rd))
		case "MTHI", "MTLO":
			return fmt.Sprintf("%s %s", inst.Mnemonic, reg(inst.Rs))
		case "MULT", "MULTU", "DIV", "DIVU":
			return fmt.Sprintf("%s %s, %s", inst.Mnemonic, reg(inst.Rs), reg(inst.Rt))
		case "SLL", "SRL", "SRA":
			return fmt.Sprintf("%s %s, %s, %d", inst.Mnemonic, reg(inst.Rd), reg(inst.Rt), inst.Shamt)
		case "MFC0":
			return fmt.Sprintf("MFC0 %s, $%d", reg(inst.Rt), inst.Rd)
		case "MTC0":
			return fmt.Sprintf("MTC0 %s, $%d", reg(inst.Rt), inst.Rd)
		default:
			return fmt.Sprintf("%s %s, %s, %s", inst.Mnemonic, reg(inst.Rd), reg(inst.Rs), reg(inst.Rt))
		}
	case IFormat:
		switch inst.Mnemonic {
		case "LUI":
			return fmt.Sprintf("LUI %s, %#x", reg(inst.Rt), inst.Imm)
		case "LB", "LBU", "LH", "LHU", "LW":
			return fmt.Sprintf("%s %s, %d(%s)", inst.Mnemonic, reg(inst.Rt), inst.SignExtImm(), reg(inst.Rs))
		case "SB", "SH", "SW":
			return fmt.Sprintf("%s %s, %d(%s)", inst.Mnemonic, reg(inst.Rt), inst.SignExtImm(), reg(inst.Rs))
		case "BEQ", "BNE":
			return fmt.Sprintf("%s %s, %s, %d", inst.Mnemonic, reg(inst.Rs), reg(inst.Rt), inst.SignExtImm())
		case "BLEZ", "BGTZ", "BLTZ", "BGEZ", "BLTZAL", "BGEZAL":
			return fmt.Sprintf("%s %s, %d", inst.Mnemonic, reg(inst.Rs), inst.SignExtImm())
		case "ANDI", "ORI", "XORI":
			return fmt.Sprintf("%s %s, %s, %#x", inst.Mnemonic, reg(inst.Rt), reg(inst.Rs), inst.ZeroExtImm())
		default:
			return fmt.Sprintf("%s %s, %s, %d", inst.Mnemonic, reg(inst.Rt), reg(inst.Rs), inst.SignExtImm())
		}
	default: // JFormat
		return fmt.Sprintf("%s %#x", inst.Mnemonic, inst.Target<<2)
	}
}
