package trap

/*
 * MIPS-I simulator - CPU trap taxonomy.
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

// Package trap defines the CPU and bus fault taxonomy shared by the bus,
// both cores, and the assembler's reporter. A Trap is returned as an
// ordinary Go error value; nothing in this simulator panics for an
// architecturally reachable condition.

import "fmt"

// Kind identifies one fault class. The single-letter CLI fail-match
// codes (I, A, O, J) map to these.
type Kind int

const (
	// UnsupportedInstruction is raised by the decoder for a word that
	// matches no known opcode/function encoding.
	UnsupportedInstruction Kind = iota
	// UnsupportedALU is raised when an ALU case reaches an operand
	// combination the implementation does not expect to see, e.g. an
	// internal decode/execute mismatch.
	UnsupportedALU
	// Overflow is raised by the trapping arithmetic variants (ADD, ADDI,
	// SUB) on signed overflow.
	Overflow
	// UnalignedAccess is raised when a data or instruction address is
	// not aligned to the width of the access.
	UnalignedAccess
	// BusError is raised when an access falls outside every registered
	// address range.
	BusError
)

// FailMatchLetter returns the single CLI letter for k, as used by
// --fail-match (I, A, O, J); BusError has no letter of its own and
// reports "".
func (k Kind) FailMatchLetter() string {
	switch k {
	case UnsupportedInstruction:
		return "I"
	case UnsupportedALU:
		return "A"
	case Overflow:
		return "O"
	case UnalignedAccess:
		return "J"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case UnsupportedInstruction:
		return "unsupported-instruction"
	case UnsupportedALU:
		return "unsupported-alu"
	case Overflow:
		return "overflow"
	case UnalignedAccess:
		return "unaligned-access"
	case BusError:
		return "bus-error"
	default:
		return "unknown-trap"
	}
}

// Trap is the error value carried out of a faulting Step, Read, or
// Write call. PC is the address of the instruction that faulted
// (latched into CP0 EPC by the core), and Addr is the faulting data or
// fetch address when applicable.
type Trap struct {
	Kind Kind
	PC   uint32
	Addr uint32
	Msg  string
}

func (t *Trap) Error() string {
	if t.Msg != "" {
		return fmt.Sprintf("%s at pc=%#x: %s", t.Kind, t.PC, t.Msg)
	}
	return fmt.Sprintf("%s at pc=%#x addr=%#x", t.Kind, t.PC, t.Addr)
}

// New builds a Trap for the given fault kind at pc, with no associated
// data address.
func New(k Kind, pc uint32, msg string) *Trap {
	return &Trap{Kind: k, PC: pc, Msg: msg}
}

// NewAddr builds a Trap for a fault tied to a specific data or fetch
// address, such as BusError or UnalignedAccess.
func NewAddr(k Kind, pc, addr uint32) *Trap {
	return &Trap{Kind: k, PC: pc, Addr: addr}
}
