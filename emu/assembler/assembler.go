package assembler

/*
 * MIPS-I simulator - single-pass-with-fix-ups assembler.
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

// Package assembler assembles MIPS-I source text into a memory image:
// a lexer, a precedence-climbing expression evaluator, a symbol table,
// directive handling, pseudo-instruction expansion, and a fix-up list
// resolved at the end once every label has a fixed address.
// Every instruction and directive has a known, constant size the moment it
// is parsed, so a single pass over the source assigns every address; only
// symbol *values* may still be outstanding, and those outstanding reads
// become fix-up records instead of a second pass over the source.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mipssim/core/emu/assembler/source"
	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/decoder"
)

// Pragma is one #pragma line, opaque to the core and surfaced as a plain
// event for an external reporter to interpret.
type Pragma struct {
	File string
	Line int
	Text string
}

type fixKind int

const (
	fixWord fixKind = iota
	fixHalf
	fixByte
	fixImm16
	fixBranch16
	fixJump26
	fixHi16
	fixLo16
)

// fixup is a deferred patch: {address, relocation kind, expression,
// source location}. inst carries every already-known field of the
// instruction word so finish only has to fill in the one field that
// depended on a symbol and re-encode.
type fixup struct {
	addr uint32
	pc   uint32 // address the relocation is relative to (branches)
	kind fixKind
	expr string
	file string
	line int
	inst decoder.Instruction
}

// Program is the result of a successful Assemble: a sparse memory image
// plus the symbol table an external reporter or debugger can use to
// annotate addresses with names.
type Program struct {
	Symbols map[string]int64
	Globals map[string]bool
	Pragmas []Pragma
	Entry   uint32

	image map[uint32]byte
}

// WriteTo copies every assembled byte into space. It writes with
// bus.PeripheralBurst: this is a bulk load, not a CPU access, and any
// backend fronted by a cache should treat it like any other external
// memory mutation.
func (p *Program) WriteTo(space *bus.Space) error {
	addrs := make([]uint32, 0, len(p.image))
	for a := range p.image {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, a := range addrs {
		if tr := space.Write(a, bus.Byte, uint32(p.image[a]), a, bus.PeripheralBurst); tr != nil {
			return fmt.Errorf("writing assembled image at %#x: %s", a, tr.Error())
		}
	}
	return nil
}

// diag is one collected assembler diagnostic.
type diag struct {
	file string
	line int
	msg  string
}

func (d diag) String() string {
	return fmt.Sprintf("%s:%d: %s", d.file, d.line, d.msg)
}

// Assembler holds the state shared across a whole assembly, including any
// files pulled in by .include.
type Assembler struct {
	provider source.Provider
	sym      *symtab
	image    map[uint32]byte
	fixups   []fixup
	pragmas  []Pragma
	diags    []diag

	addr          uint32
	section       string // ".text" or ".data", for diagnostics only
	firstInstr    uint32
	sawFirstInstr bool
}

// New returns an Assembler that resolves .include paths through provider.
func New(provider source.Provider) *Assembler {
	return &Assembler{
		provider: provider,
		sym:      newSymtab(),
		image:    make(map[uint32]byte),
		section:  ".text",
	}
}

// Assemble assembles text (attributed to file, for diagnostics) and, if no
// diagnostics were emitted, resolves every fix-up and returns the finished
// Program. It is the only exported entry point; Assembler is not meant to
// be driven line by line from outside the package.
func (a *Assembler) Assemble(file, text string) (*Program, error) {
	a.assembleLines(file, strings.Split(text, "\n"))
	if len(a.diags) > 0 {
		return nil, a.diagError()
	}
	if err := a.finish(); err != nil {
		return nil, err
	}
	entry := a.firstInstr
	if v, ok := a.sym.lookup("_start"); ok {
		entry = uint32(v)
	}
	return &Program{
		Symbols: a.sym.values,
		Globals: a.sym.global,
		Pragmas: a.pragmas,
		Entry:   entry,
		image:   a.image,
	}, nil
}

func (a *Assembler) diagError() error {
	lines := make([]string, len(a.diags))
	for i, d := range a.diags {
		lines[i] = d.String()
	}
	return fmt.Errorf("assembly failed with %d error(s):\n%s", len(a.diags), strings.Join(lines, "\n"))
}

func (a *Assembler) errf(file string, line int, format string, args ...any) {
	a.diags = append(a.diags, diag{file: file, line: line, msg: fmt.Sprintf(format, args...)})
}

// resolver answers a symResolver lookup for the current assembler state,
// with "." meaning the address of the line currently being assembled.
func (a *Assembler) resolver() symResolver {
	return func(name string) (int64, bool) {
		if name == "." {
			return int64(a.addr), true
		}
		return a.sym.lookup(name)
	}
}

func (a *Assembler) assembleLines(file string, lines []string) {
	for i, raw := range lines {
		lineNo := i + 1
		a.assembleLine(file, lineNo, raw)
	}
}

func (a *Assembler) assembleLine(file string, lineNo int, raw string) {
	text := stripComment(raw)
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "#pragma") {
		a.pragmas = append(a.pragmas, Pragma{File: file, Line: lineNo, Text: strings.TrimSpace(strings.TrimPrefix(text, "#pragma"))})
		return
	}

	if label, rest, ok := splitLabel(text); ok {
		if err := a.sym.define(label, int64(a.addr)); err != nil {
			a.errf(file, lineNo, "%s", err)
		}
		text = strings.TrimSpace(rest)
		if text == "" {
			return
		}
	}

	fields := strings.SplitN(text, " ", 2)
	mnemonic := strings.ToUpper(fields[0])
	var operandText string
	if len(fields) > 1 {
		operandText = fields[1]
	}
	operands := splitOperands(operandText)

	if strings.HasPrefix(mnemonic, ".") {
		a.directive(file, lineNo, mnemonic, operands)
		return
	}

	a.markInstr()
	a.instruction(file, lineNo, mnemonic, operands)
}

func (a *Assembler) markInstr() {
	if !a.sawFirstInstr {
		a.sawFirstInstr = true
		a.firstInstr = a.addr
	}
}

// stripComment removes a trailing ';' or '#' comment, except a line whose
// trimmed form begins with "#pragma", which is a directive, not a comment.
func stripComment(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "#pragma") {
		return trimmed
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return s
}

// splitLabel reports whether text begins with "name:" and, if so, returns
// the label and the remainder of the line.
func splitLabel(text string) (label, rest string, ok bool) {
	i := strings.IndexByte(text, ':')
	if i <= 0 {
		return "", "", false
	}
	candidate := text[:i]
	if !isIdent(candidate) {
		return "", "", false
	}
	return candidate, text[i+1:], true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// splitOperands splits an operand list on top-level commas, leaving
// parenthesized "offset(reg)" groups and quoted strings intact.
func splitOperands(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	flush := func() {
		t := strings.TrimSpace(cur.String())
		if t != "" {
			out = append(out, t)
		}
		cur.Reset()
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case inQuote:
			cur.WriteRune(r)
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func (a *Assembler) eval(file string, lineNo int, text string) (value int64, undef bool) {
	v, undef, err := evalExpr(text, a.resolver(), true)
	if err != nil {
		a.errf(file, lineNo, "in expression %q: %s", text, err)
		return 0, false
	}
	return v, undef
}

// evalNow requires text to resolve to a concrete value right now: used for
// .org/.space/.set/.equ/shamt, none of which may depend on a later label.
func (a *Assembler) evalNow(file string, lineNo int, text string) (int64, bool) {
	v, undef := a.eval(file, lineNo, text)
	if undef {
		a.errf(file, lineNo, "expression %q depends on a symbol not yet defined", text)
		return 0, false
	}
	return v, true
}

func (a *Assembler) putByte(addr uint32, v byte) {
	a.image[addr] = v
}

func (a *Assembler) putWord(addr uint32, v uint32) {
	a.putByte(addr, byte(v>>24))
	a.putByte(addr+1, byte(v>>16))
	a.putByte(addr+2, byte(v>>8))
	a.putByte(addr+3, byte(v))
}

func (a *Assembler) putHalf(addr uint32, v uint16) {
	a.putByte(addr, byte(v>>8))
	a.putByte(addr+1, byte(v))
}

// emitField resolves expr now if possible and writes the final 32-bit word
// at a.addr; otherwise it writes a zero placeholder and queues a fix-up
// of the given kind, carrying inst (the instruction's already-known
// fields) so finish can re-encode once expr resolves. For fixWord/
// fixHalf/fixByte, inst is unused.
func (a *Assembler) emitField(file string, lineNo int, expr string, kind fixKind, inst decoder.Instruction) {
	addr := a.addr
	v, undef, err := evalExpr(expr, a.resolver(), true)
	if err != nil {
		a.errf(file, lineNo, "in expression %q: %s", expr, err)
		return
	}
	if undef {
		a.fixups = append(a.fixups, fixup{addr: addr, pc: addr, kind: kind, expr: expr, file: file, line: lineNo, inst: inst})
		return
	}
	a.patch(addr, addr, kind, v, inst)
}

func (a *Assembler) patch(addr, pc uint32, kind fixKind, v int64, inst decoder.Instruction) {
	switch kind {
	case fixWord:
		a.putWord(addr, uint32(v))
		return
	case fixHalf:
		a.putHalf(addr, uint16(v))
		return
	case fixByte:
		a.putByte(addr, byte(v))
		return
	case fixImm16:
		inst.Imm = uint16(v)
	case fixHi16:
		inst.Imm = uint16(uint32(v) >> 16)
	case fixLo16:
		inst.Imm = uint16(uint32(v))
	case fixBranch16:
		inst.Imm = uint16((uint32(v) - (pc + 4)) >> 2)
	case fixJump26:
		inst.Target = (uint32(v) >> 2) & 0x03ffffff
	}
	word, ok := decoder.Encode(inst)
	if !ok {
		word = 0
	}
	a.putWord(addr, word)
}

// finish resolves every outstanding fix-up against the final symbol
// table: a pure pass over the fix-up list, run only once every section
// has a fixed size, which single-pass address assignment already
// guarantees by the time Assemble calls this.
func (a *Assembler) finish() error {
	for _, f := range a.fixups {
		v, _, err := evalExpr(f.expr, a.resolver(), false)
		if err != nil {
			a.errf(f.file, f.line, "resolving fix-up %q: %s", f.expr, err)
			continue
		}
		a.patch(f.addr, f.pc, f.kind, v, f.inst)
	}
	if len(a.diags) > 0 {
		return a.diagError()
	}
	return nil
}
