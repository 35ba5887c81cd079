package assembler

/*
 * MIPS-I simulator - assembler test set.
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
	"testing"

	"github.com/mipssim/core/emu/assembler/source"
	"github.com/mipssim/core/emu/decoder"
)

func mustAssemble(t *testing.T, text string) *Program {
	t.Helper()
	prog, err := New(source.Map{}).Assemble("test.s", text)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return prog
}

// word reads one assembled big-endian word out of the program image.
func word(p *Program, addr uint32) uint32 {
	return uint32(p.image[addr])<<24 | uint32(p.image[addr+1])<<16 |
		uint32(p.image[addr+2])<<8 | uint32(p.image[addr+3])
}

func decodeAt(t *testing.T, p *Program, addr uint32) decoder.Instruction {
	t.Helper()
	inst, tr := decoder.Decode(word(p, addr), addr)
	if tr != nil {
		t.Fatalf("word at %#x does not decode: %v", addr, tr)
	}
	return inst
}

// TestAscizPlacesBytes assembles msg: .asciz "Hi" at .org 0x2000 and
// checks the bytes land at 0x2000..0x2002 with msg bound to 0x2000.
func TestAscizPlacesBytes(t *testing.T) {
	prog := mustAssemble(t, `
	.org 0x2000
msg:	.asciz "Hi"
`)
	wantBytes := []byte{'H', 'i', 0}
	for i, want := range wantBytes {
		if got := prog.image[0x2000+uint32(i)]; got != want {
			t.Errorf("byte at %#x = %#x, want %#x", 0x2000+i, got, want)
		}
	}
	if v, ok := prog.Symbols["msg"]; !ok || v != 0x2000 {
		t.Errorf("msg = %#x (defined=%v), want 0x2000", v, ok)
	}
}

func TestForwardBranchFixup(t *testing.T) {
	prog := mustAssemble(t, `
	beq $zero, $zero, done
	nop
done:	nop
`)
	inst := decodeAt(t, prog, 0)
	if inst.Mnemonic != "BEQ" {
		t.Fatalf("first word decodes to %s, want BEQ", inst.Mnemonic)
	}
	// done is two words past the branch: offset relative to pc+4 is 1.
	if inst.Imm != 1 {
		t.Errorf("branch offset = %d, want 1", inst.Imm)
	}
}

func TestBackwardBranchOffset(t *testing.T) {
	prog := mustAssemble(t, `
top:	nop
	bne $t0, $zero, top
`)
	inst := decodeAt(t, prog, 4)
	// top is two words back from pc+4: offset -2.
	if int16(inst.Imm) != -2 {
		t.Errorf("branch offset = %d, want -2", int16(inst.Imm))
	}
}

func TestLAExpansion(t *testing.T) {
	prog := mustAssemble(t, `
	.set target, 0x12345678
	la $t0, target
`)
	lui := decodeAt(t, prog, 0)
	ori := decodeAt(t, prog, 4)
	if lui.Mnemonic != "LUI" || lui.Rt != 8 || lui.Imm != 0x1234 {
		t.Errorf("first word = %s $%d, %#x; want LUI $8, 0x1234", lui.Mnemonic, lui.Rt, lui.Imm)
	}
	if ori.Mnemonic != "ORI" || ori.Rt != 8 || ori.Rs != 8 || ori.Imm != 0x5678 {
		t.Errorf("second word = %s; want ORI $8, $8, 0x5678", ori.Mnemonic)
	}
}

// TestLIShortestEncoding checks LI picks one word when the constant
// fits and falls back to LUI+ORI when it does not.
func TestLIShortestEncoding(t *testing.T) {
	prog := mustAssemble(t, `
	li $t0, 5
	li $t1, 0xFFFF
	li $t2, 0x12345
`)
	if inst := decodeAt(t, prog, 0); inst.Mnemonic != "ADDIU" || inst.Imm != 5 {
		t.Errorf("li 5 = %s %#x, want ADDIU 5", inst.Mnemonic, inst.Imm)
	}
	if inst := decodeAt(t, prog, 4); inst.Mnemonic != "ORI" || inst.Imm != 0xFFFF {
		t.Errorf("li 0xFFFF = %s %#x, want ORI 0xFFFF", inst.Mnemonic, inst.Imm)
	}
	lui := decodeAt(t, prog, 8)
	ori := decodeAt(t, prog, 12)
	if lui.Mnemonic != "LUI" || lui.Imm != 0x1 || ori.Mnemonic != "ORI" || ori.Imm != 0x2345 {
		t.Errorf("li 0x12345 expands to %s/%s, want LUI 1 + ORI 0x2345", lui.Mnemonic, ori.Mnemonic)
	}
}

func TestMoveAndNopExpansion(t *testing.T) {
	prog := mustAssemble(t, `
	nop
	move $t0, $t1
`)
	if w := word(prog, 0); w != 0 {
		t.Errorf("nop = %#x, want 0 (SLL $0,$0,0)", w)
	}
	inst := decodeAt(t, prog, 4)
	if inst.Mnemonic != "ADDU" || inst.Rd != 8 || inst.Rs != 9 || inst.Rt != 0 {
		t.Errorf("move = %s $%d,$%d,$%d; want ADDU $8,$9,$0", inst.Mnemonic, inst.Rd, inst.Rs, inst.Rt)
	}
}

func TestDuplicateLabelDiagnostic(t *testing.T) {
	_, err := New(source.Map{}).Assemble("test.s", `
dup:	nop
	nop
dup:	nop
`)
	if err == nil {
		t.Fatal("duplicate label did not fail")
	}
	if !strings.Contains(err.Error(), "redefined") {
		t.Errorf("error %q does not mention redefinition", err)
	}
}

func TestUndefinedSymbolDiagnostic(t *testing.T) {
	_, err := New(source.Map{}).Assemble("test.s", `
	.word nowhere
`)
	if err == nil {
		t.Fatal("undefined symbol did not fail")
	}
	if !strings.Contains(err.Error(), "undefined symbol") {
		t.Errorf("error %q does not mention the undefined symbol", err)
	}
}

// TestDiagnosticsAreCollected feeds two bad lines and checks both are
// reported rather than stopping at the first.
func TestDiagnosticsAreCollected(t *testing.T) {
	_, err := New(source.Map{}).Assemble("test.s", `
	frobnicate $t0
	add $t0, $t0, $nosuch
`)
	if err == nil {
		t.Fatal("bad program did not fail")
	}
	if !strings.Contains(err.Error(), "2 error") {
		t.Errorf("error %q does not report both diagnostics", err)
	}
}

func TestExpressions(t *testing.T) {
	prog := mustAssemble(t, `
	.org 0x100
	.word 2+3*4
	.word (1<<4)|0xF
	.word -1
	.word .
	.word 'A'
	.word 0b101, 017, 0x10
`)
	wants := []uint32{14, 0x1F, 0xFFFFFFFF, 0x10C, 'A', 5, 15, 16}
	for i, want := range wants {
		addr := uint32(0x100 + 4*i)
		if got := word(prog, addr); got != want {
			t.Errorf("word at %#x = %#x, want %#x", addr, got, want)
		}
	}
}

func TestSpaceAndFill(t *testing.T) {
	prog := mustAssemble(t, `
	.org 0x40
	.space 3, 0xAA
after:	.byte 1
`)
	for i := uint32(0); i < 3; i++ {
		if got := prog.image[0x40+i]; got != 0xAA {
			t.Errorf("fill byte at %#x = %#x, want 0xAA", 0x40+i, got)
		}
	}
	if v := prog.Symbols["after"]; v != 0x43 {
		t.Errorf("after = %#x, want 0x43", v)
	}
}

func TestSetEquAndGlobl(t *testing.T) {
	prog := mustAssemble(t, `
	.set width, 8
	.equ height, width*2
	.globl height
	.word width, height
`)
	if got := word(prog, 0); got != 8 {
		t.Errorf("width word = %d, want 8", got)
	}
	if got := word(prog, 4); got != 16 {
		t.Errorf("height word = %d, want 16", got)
	}
	if !prog.Globals["height"] {
		t.Error("height not marked global")
	}
}

func TestIncludeThroughProvider(t *testing.T) {
	provider := source.Map{
		"lib.s": "libsym:\t.word 7\n",
	}
	prog, err := New(provider).Assemble("main.s", `
	.org 0x80
	.include "lib.s"
`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if v, ok := prog.Symbols["libsym"]; !ok || v != 0x80 {
		t.Errorf("libsym = %#x (defined=%v), want 0x80", v, ok)
	}
	if got := word(prog, 0x80); got != 7 {
		t.Errorf("included word = %d, want 7", got)
	}
}

func TestIncludeNotFound(t *testing.T) {
	_, err := New(source.Map{}).Assemble("main.s", `
	.include "missing.s"
`)
	if err == nil {
		t.Fatal("missing include did not fail")
	}
}

func TestPragmaSurfacedAsEvent(t *testing.T) {
	prog := mustAssemble(t, `
#pragma window core
	nop
`)
	if len(prog.Pragmas) != 1 {
		t.Fatalf("got %d pragmas, want 1", len(prog.Pragmas))
	}
	p := prog.Pragmas[0]
	if p.Text != "window core" || p.Line != 2 {
		t.Errorf("pragma = %+v, want \"window core\" at line 2", p)
	}
}

func TestEntryFollowsStartSymbol(t *testing.T) {
	prog := mustAssemble(t, `
	.org 0x1000
	nop
_start:	nop
`)
	if prog.Entry != 0x1004 {
		t.Errorf("entry = %#x, want 0x1004 (the _start label)", prog.Entry)
	}
}

func TestEntryDefaultsToFirstInstruction(t *testing.T) {
	prog := mustAssemble(t, `
	.org 0x400
	.word 1
	.org 0x500
	nop
`)
	if prog.Entry != 0x500 {
		t.Errorf("entry = %#x, want 0x500 (first instruction, not first data)", prog.Entry)
	}
}

func TestLoadStoreOffsetSyntax(t *testing.T) {
	prog := mustAssemble(t, `
	lw $t0, 8($sp)
	sw $t0, -4($fp)
`)
	lw := decodeAt(t, prog, 0)
	if lw.Mnemonic != "LW" || lw.Rt != 8 || lw.Rs != 29 || lw.Imm != 8 {
		t.Errorf("lw = %s $%d, %d($%d)", lw.Mnemonic, lw.Rt, int16(lw.Imm), lw.Rs)
	}
	sw := decodeAt(t, prog, 4)
	if sw.Mnemonic != "SW" || sw.Rt != 8 || sw.Rs != 30 || int16(sw.Imm) != -4 {
		t.Errorf("sw = %s $%d, %d($%d)", sw.Mnemonic, sw.Rt, int16(sw.Imm), sw.Rs)
	}
}
