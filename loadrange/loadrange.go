package loadrange

/*
 * MIPS-I simulator - load-range/dump-range file formats.
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

// Package loadrange implements the --load-range/--dump-range file
// formats as pure functions over an io.Reader or io.Writer and a
// bus.Space, independently testable without a CLI. Both formats are
// plain text, one word per line.

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mipssim/core/emu/bus"
)

// Load reads one unsigned integer per non-empty line from r (any base
// accepted by strconv.ParseUint's base-0 parsing: decimal, 0x-prefixed
// hex, 0-prefixed octal, 0b-prefixed binary) and writes them
// sequentially as 32-bit words into space starting at base, rounded
// down to a multiple of 4.
func Load(r io.Reader, base uint32, space *bus.Space) error {
	base &^= 3
	addr := base
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 0, 32)
		if err != nil {
			return fmt.Errorf("load-range: line %d: %w", lineNo, err)
		}
		if tr := space.Write(addr, bus.Word, uint32(v), addr, bus.PeripheralBurst); tr != nil {
			return fmt.Errorf("load-range: line %d: %s", lineNo, tr)
		}
		addr += 4
	}
	return scanner.Err()
}

// Dump writes length bytes starting at base (rounded down to a multiple
// of 4, length rounded up) to w as a text hex dump, one word per line in
// ascending address order.
func Dump(w io.Writer, base, length uint32, space *bus.Space) error {
	base &^= 3
	words := (length + 3) / 4
	bw := bufio.NewWriter(w)
	for i := uint32(0); i < words; i++ {
		addr := base + 4*i
		v, tr := space.Read(addr, bus.Word, addr, bus.DebugProbe)
		if tr != nil {
			return fmt.Errorf("dump-range: addr %#x: %s", addr, tr)
		}
		if _, err := fmt.Fprintf(bw, "%08x\n", v); err != nil {
			return err
		}
	}
	return bw.Flush()
}
