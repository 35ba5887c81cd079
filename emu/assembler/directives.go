package assembler

/*
 * MIPS-I simulator - assembler directive handling.
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

func (a *Assembler) directive(file string, lineNo int, name string, operands []string) {
	switch name {
	case ".TEXT":
		a.section = ".text"
	case ".DATA":
		a.section = ".data"

	case ".ORG":
		if len(operands) != 1 {
			a.errf(file, lineNo, ".org takes exactly one address expression")
			return
		}
		if v, ok := a.evalNow(file, lineNo, operands[0]); ok {
			a.addr = uint32(v)
		}

	case ".WORD":
		for _, op := range operands {
			a.emitField(file, lineNo, op, fixWord, decoder.Instruction{})
			a.addr += 4
		}

	case ".HALF":
		for _, op := range operands {
			a.emitField(file, lineNo, op, fixHalf, decoder.Instruction{})
			a.addr += 2
		}

	case ".BYTE":
		for _, op := range operands {
			a.emitField(file, lineNo, op, fixByte, decoder.Instruction{})
			a.addr++
		}

	case ".ASCII", ".ASCIZ":
		if len(operands) != 1 {
			a.errf(file, lineNo, "%s takes exactly one string literal", name)
			return
		}
		s, ok := unquote(operands[0])
		if !ok {
			a.errf(file, lineNo, "%s expects a quoted string, got %q", name, operands[0])
			return
		}
		for i := 0; i < len(s); i++ {
			a.putByte(a.addr, s[i])
			a.addr++
		}
		if name == ".ASCIZ" {
			a.putByte(a.addr, 0)
			a.addr++
		}

	case ".SPACE", ".SKIP":
		if len(operands) < 1 || len(operands) > 2 {
			a.errf(file, lineNo, "%s takes a length and an optional fill byte", name)
			return
		}
		n, ok := a.evalNow(file, lineNo, operands[0])
		if !ok {
			return
		}
		var fill int64
		if len(operands) == 2 {
			fill, ok = a.evalNow(file, lineNo, operands[1])
			if !ok {
				return
			}
		}
		for i := int64(0); i < n; i++ {
			a.putByte(a.addr, byte(fill))
			a.addr++
		}

	case ".SET", ".EQU":
		if len(operands) != 2 {
			a.errf(file, lineNo, "%s takes a name and a value expression", name)
			return
		}
		v, ok := a.evalNow(file, lineNo, operands[1])
		if !ok {
			return
		}
		if err := a.sym.define(operands[0], v); err != nil {
			a.errf(file, lineNo, "%s", err)
		}

	case ".GLOBL", ".GLOBAL":
		for _, op := range operands {
			a.sym.markGlobal(op)
		}

	case ".INCLUDE":
		if len(operands) != 1 {
			a.errf(file, lineNo, ".include takes exactly one path")
			return
		}
		path, ok := unquote(operands[0])
		if !ok {
			a.errf(file, lineNo, ".include expects a quoted path, got %q", operands[0])
			return
		}
		if a.provider == nil {
			a.errf(file, lineNo, ".include %q: no source provider configured", path)
			return
		}
		content, err := a.provider.Resolve(path)
		if err != nil {
			a.errf(file, lineNo, ".include %q: %s", path, err)
			return
		}
		a.assembleLines(path, strings.Split(string(content), "\n"))

	default:
		a.errf(file, lineNo, "unknown directive %q", name)
	}
}

func unquote(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", false
	}
	inner := tok[1 : len(tok)-1]
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++
			switch inner[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(inner[i])
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), true
}
