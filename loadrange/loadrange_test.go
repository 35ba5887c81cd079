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

import (
	"strings"
	"testing"

	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/memory"
)

func newSpace() (*bus.Space, *memory.RAM) {
	space := bus.New()
	ram := memory.New(0x10000)
	space.Register(0, 0x10000, "ram", ram)
	return space, ram
}

// TestLoadRangeScenario loads a file with lines "0x1","0x2","0x3" at
// 0x1000 and expects words 1,2,3 at 0x1000,0x1004,0x1008.
func TestLoadRangeScenario(t *testing.T) {
	space, ram := newSpace()
	src := strings.NewReader("0x1\n0x2\n0x3\n")
	if err := Load(src, 0x1000, space); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []uint32{1, 2, 3}
	for i, w := range want {
		if got := ram.ReadWord(0x1000+uint32(4*i), bus.DebugProbe); got != w {
			t.Errorf("word %d = %#x, want %#x", i, got, w)
		}
	}
}

func TestLoadRangeSkipsBlankLinesAndRoundsBaseDown(t *testing.T) {
	space, ram := newSpace()
	src := strings.NewReader("10\n\n20\n   \n30\n")
	if err := Load(src, 0x1003, space); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []uint32{10, 20, 30}
	for i, w := range want {
		if got := ram.ReadWord(0x1000+uint32(4*i), bus.DebugProbe); got != w {
			t.Errorf("word %d = %d, want %d", i, got, w)
		}
	}
}

func TestLoadRangeRejectsMalformedLine(t *testing.T) {
	space, _ := newSpace()
	src := strings.NewReader("1\nnot-a-number\n3\n")
	if err := Load(src, 0, space); err == nil {
		t.Fatal("want an error for a malformed line")
	}
}

// TestDumpRangeRoundTrip confirms two words written to RAM come back out
// of Dump as one 8-digit hex word per line with no 0x prefix, in
// ascending address order.
func TestDumpRangeRoundTrip(t *testing.T) {
	space, ram := newSpace()
	ram.WriteWord(0x2000, 0xdeadbeef, bus.CPUAccess)
	ram.WriteWord(0x2004, 0x00c0ffee, bus.CPUAccess)

	var buf strings.Builder
	if err := Dump(&buf, 0x2000, 8, space); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := "deadbeef\n00c0ffee\n"
	if buf.String() != want {
		t.Errorf("dump = %q, want %q", buf.String(), want)
	}
}

func TestDumpRangeRoundsLengthUp(t *testing.T) {
	space, ram := newSpace()
	ram.WriteWord(0x3000, 0x01020304, bus.CPUAccess)

	var buf strings.Builder
	if err := Dump(&buf, 0x3000, 1, space); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if got, want := buf.String(), "01020304\n"; got != want {
		t.Errorf("dump = %q, want %q", got, want)
	}
}
