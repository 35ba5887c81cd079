package assembler

/*
 * MIPS-I simulator - assembler instruction and pseudo-op expansion.
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

import (
	"strings"

	"github.com/mipssim/core/emu/decoder"
)

// instruction assembles one real or pseudo mnemonic at the current
// address and advances a.addr by the number of words it occupies. Real
// mnemonics are recognized by realInstruction's switch on the mnemonic,
// which reports any name it does not list as an unknown mnemonic.
func (a *Assembler) instruction(file string, lineNo int, mnemonic string, ops []string) {
	switch mnemonic {
	case "NOP":
		a.emitWord(decoder.Instruction{Mnemonic: "SLL"})
		return
	case "MOVE":
		if len(ops) != 2 {
			a.errf(file, lineNo, "MOVE takes rd, rs")
			return
		}
		rd, rs := a.reg(file, lineNo, ops[0]), a.reg(file, lineNo, ops[1])
		a.emitWord(decoder.Instruction{Mnemonic: "ADDU", Rd: rd, Rs: rs, Rt: 0})
		return
	case "B":
		if len(ops) != 1 {
			a.errf(file, lineNo, "B takes exactly one label")
			return
		}
		a.emitField(file, lineNo, ops[0], fixBranch16, decoder.Instruction{Mnemonic: "BEQ", Rs: 0, Rt: 0})
		a.addr += 4
		return
	case "LA":
		a.expandLA(file, lineNo, ops)
		return
	case "LI":
		a.expandLI(file, lineNo, ops)
		return
	}

	a.realInstruction(file, lineNo, mnemonic, ops)
}

// emitWord writes a fully-known instruction word (no symbol dependency)
// at a.addr and advances past it.
func (a *Assembler) emitWord(inst decoder.Instruction) {
	word, _ := decoder.Encode(inst)
	a.putWord(a.addr, word)
	a.addr += 4
}

func (a *Assembler) expandLA(file string, lineNo int, ops []string) {
	if len(ops) != 2 {
		a.errf(file, lineNo, "LA takes rd, symbol")
		return
	}
	rd := a.reg(file, lineNo, ops[0])
	a.emitField(file, lineNo, ops[1], fixHi16, decoder.Instruction{Mnemonic: "LUI", Rt: rd})
	a.addr += 4
	a.emitField(file, lineNo, ops[1], fixLo16, decoder.Instruction{Mnemonic: "ORI", Rt: rd, Rs: rd})
	a.addr += 4
}

// expandLI chooses the shortest encoding for LI rd, imm: one word
// (ADDIU for a value that fits the sign-extended field, ORI for a
// zero-extendable value that does not) or the two-word LUI+ORI sequence
// for anything wider. An expression LI cannot resolve yet is assumed to
// need the full two-word form, since the shortest encoding cannot be
// chosen without knowing the value.
func (a *Assembler) expandLI(file string, lineNo int, ops []string) {
	if len(ops) != 2 {
		a.errf(file, lineNo, "LI takes rd, immediate")
		return
	}
	rd := a.reg(file, lineNo, ops[0])
	v, undef := a.eval(file, lineNo, ops[1])
	if !undef && v >= -32768 && v <= 32767 {
		a.emitWord(decoder.Instruction{Mnemonic: "ADDIU", Rt: rd, Rs: 0, Imm: uint16(int16(v))})
		return
	}
	if !undef && v >= 0 && v <= 65535 {
		a.emitWord(decoder.Instruction{Mnemonic: "ORI", Rt: rd, Rs: 0, Imm: uint16(v)})
		return
	}
	a.emitField(file, lineNo, ops[1], fixHi16, decoder.Instruction{Mnemonic: "LUI", Rt: rd})
	a.addr += 4
	a.emitField(file, lineNo, ops[1], fixLo16, decoder.Instruction{Mnemonic: "ORI", Rt: rd, Rs: rd})
	a.addr += 4
}

// reg parses a register operand, recording a diagnostic and returning 0
// on failure so callers can keep assembling the rest of the file.
func (a *Assembler) reg(file string, lineNo int, tok string) int {
	n, err := regNumber(tok)
	if err != nil {
		a.errf(file, lineNo, "%s", err)
		return 0
	}
	return n
}

// regOrNum accepts either a register operand ("$t0", or "$12" as
// MFC0/MTC0 show the CP0 register in disassembly) or a bare CP0 register
// number ("12"), used for the cop0 instructions' second operand.
func (a *Assembler) regOrNum(file string, lineNo int, tok string) int {
	if strings.HasPrefix(tok, "$") {
		return a.reg(file, lineNo, tok)
	}
	v, _ := a.evalNow(file, lineNo, tok)
	return int(v)
}

// splitOffset parses the MIPS "offset(reg)" load/store operand syntax.
func splitOffset(tok string) (offset, regTok string, ok bool) {
	open := strings.IndexByte(tok, '(')
	if open < 0 || !strings.HasSuffix(tok, ")") {
		return "", "", false
	}
	return strings.TrimSpace(tok[:open]), strings.TrimSpace(tok[open+1 : len(tok)-1]), true
}

func (a *Assembler) realInstruction(file string, lineNo int, mnemonic string, ops []string) {
	want := func(n int) bool {
		if len(ops) != n {
			a.errf(file, lineNo, "%s takes %d operand(s), got %d", mnemonic, n, len(ops))
			return false
		}
		return true
	}

	switch mnemonic {
	case "ADD", "ADDU", "SUB", "SUBU", "AND", "OR", "XOR", "NOR", "SLT", "SLTU":
		if !want(3) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic,
			Rd: a.reg(file, lineNo, ops[0]), Rs: a.reg(file, lineNo, ops[1]), Rt: a.reg(file, lineNo, ops[2])})

	case "SLL", "SRL", "SRA":
		if !want(3) {
			return
		}
		shamt, _ := a.evalNow(file, lineNo, ops[2])
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic,
			Rd: a.reg(file, lineNo, ops[0]), Rt: a.reg(file, lineNo, ops[1]), Shamt: int(shamt)})

	case "SLLV", "SRLV", "SRAV":
		if !want(3) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic,
			Rd: a.reg(file, lineNo, ops[0]), Rt: a.reg(file, lineNo, ops[1]), Rs: a.reg(file, lineNo, ops[2])})

	case "JR":
		if !want(1) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: "JR", Rs: a.reg(file, lineNo, ops[0])})

	case "JALR":
		switch len(ops) {
		case 1:
			a.emitWord(decoder.Instruction{Mnemonic: "JALR", Rd: 31, Rs: a.reg(file, lineNo, ops[0])})
		case 2:
			a.emitWord(decoder.Instruction{Mnemonic: "JALR", Rd: a.reg(file, lineNo, ops[0]), Rs: a.reg(file, lineNo, ops[1])})
		default:
			a.errf(file, lineNo, "JALR takes rs, or rd, rs")
		}

	case "SYSCALL", "BREAK":
		if !want(0) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic})

	case "MFHI", "MFLO":
		if !want(1) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic, Rd: a.reg(file, lineNo, ops[0])})

	case "MTHI", "MTLO":
		if !want(1) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic, Rs: a.reg(file, lineNo, ops[0])})

	case "MULT", "MULTU", "DIV", "DIVU":
		if !want(2) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: mnemonic, Rs: a.reg(file, lineNo, ops[0]), Rt: a.reg(file, lineNo, ops[1])})

	case "MFC0":
		if !want(2) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: "MFC0", Rt: a.reg(file, lineNo, ops[0]), Rd: a.regOrNum(file, lineNo, ops[1])})

	case "MTC0":
		if !want(2) {
			return
		}
		a.emitWord(decoder.Instruction{Mnemonic: "MTC0", Rt: a.reg(file, lineNo, ops[0]), Rd: a.regOrNum(file, lineNo, ops[1])})

	case "LUI":
		if !want(2) {
			return
		}
		rt := a.reg(file, lineNo, ops[0])
		a.emitField(file, lineNo, ops[1], fixImm16, decoder.Instruction{Mnemonic: "LUI", Rt: rt})
		a.addr += 4

	case "LB", "LBU", "LH", "LHU", "LW", "SB", "SH", "SW":
		if !want(2) {
			return
		}
		offset, regTok, ok := splitOffset(ops[1])
		if !ok {
			a.errf(file, lineNo, "%s expects \"offset(reg)\", got %q", mnemonic, ops[1])
			return
		}
		rt := a.reg(file, lineNo, ops[0])
		rs := a.reg(file, lineNo, regTok)
		a.emitField(file, lineNo, offset, fixImm16, decoder.Instruction{Mnemonic: mnemonic, Rt: rt, Rs: rs})
		a.addr += 4

	case "ANDI", "ORI", "XORI", "ADDI", "ADDIU", "SLTI", "SLTIU":
		if !want(3) {
			return
		}
		rt := a.reg(file, lineNo, ops[0])
		rs := a.reg(file, lineNo, ops[1])
		a.emitField(file, lineNo, ops[2], fixImm16, decoder.Instruction{Mnemonic: mnemonic, Rt: rt, Rs: rs})
		a.addr += 4

	case "BEQ", "BNE":
		if !want(3) {
			return
		}
		rs := a.reg(file, lineNo, ops[0])
		rt := a.reg(file, lineNo, ops[1])
		a.emitField(file, lineNo, ops[2], fixBranch16, decoder.Instruction{Mnemonic: mnemonic, Rs: rs, Rt: rt})
		a.addr += 4

	case "BLEZ", "BGTZ", "BLTZ", "BGEZ", "BLTZAL", "BGEZAL":
		if !want(2) {
			return
		}
		rs := a.reg(file, lineNo, ops[0])
		a.emitField(file, lineNo, ops[1], fixBranch16, decoder.Instruction{Mnemonic: mnemonic, Rs: rs})
		a.addr += 4

	case "J", "JAL":
		if !want(1) {
			return
		}
		a.emitField(file, lineNo, ops[0], fixJump26, decoder.Instruction{Mnemonic: mnemonic})
		a.addr += 4

	default:
		a.errf(file, lineNo, "unknown mnemonic %q", mnemonic)
	}
}
