package memory

/*
 * MIPS-I simulator - RAM backend.
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
	"testing"

	"github.com/mipssim/core/emu/bus"
)

func TestUntouchedPageReadsZero(t *testing.T) {
	m := New(1 << 20)
	if v := m.ReadWord(0x4000, bus.CPUAccess); v != 0 {
		t.Errorf("ReadWord on untouched page = %#x, want 0", v)
	}
}

func TestWriteReadWordRoundTrip(t *testing.T) {
	m := New(1 << 20)
	m.WriteWord(0x1000, 0xcafebabe, bus.CPUAccess)
	if v := m.ReadWord(0x1000, bus.CPUAccess); v != 0xcafebabe {
		t.Errorf("ReadWord = %#x, want 0xcafebabe", v)
	}
}

func TestByteOrderIsBigEndian(t *testing.T) {
	m := New(1 << 20)
	m.WriteWord(0, 0x01020304, bus.CPUAccess)
	want := []uint8{0x01, 0x02, 0x03, 0x04}
	for i, w := range want {
		if got := m.ReadByte(uint32(i), bus.CPUAccess); got != w {
			t.Errorf("byte %d = %#x, want %#x", i, got, w)
		}
	}
}

func TestWriteByteLeavesSiblingsIntact(t *testing.T) {
	m := New(1 << 20)
	m.WriteWord(0, 0x11223344, bus.CPUAccess)
	m.WriteByte(2, 0xff, bus.CPUAccess)
	if v := m.ReadWord(0, bus.CPUAccess); v != 0x1122ff44 {
		t.Errorf("ReadWord after WriteByte = %#x, want 0x1122ff44", v)
	}
}

func TestHalfwordRoundTrip(t *testing.T) {
	m := New(1 << 20)
	m.WriteHalf(8, 0xbeef, bus.CPUAccess)
	if v := m.ReadHalf(8, bus.CPUAccess); v != 0xbeef {
		t.Errorf("ReadHalf = %#x, want 0xbeef", v)
	}
	if v := m.ReadByte(8, bus.CPUAccess); v != 0xbe {
		t.Errorf("high byte of halfword = %#x, want 0xbe", v)
	}
}

func TestWriteRangeAndReadRange(t *testing.T) {
	m := New(1 << 20)
	data := []byte{1, 2, 3, 4, 5, 6, 7}
	m.WriteRange(0x2000, data)
	got := m.ReadRange(0x2000, uint32(len(data)))
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("ReadRange[%d] = %#x, want %#x", i, got[i], data[i])
		}
	}
}

func TestWriteRangeCrossesPageBoundary(t *testing.T) {
	m := New(1 << 20)
	addr := uint32(PageWords*4 - 2)
	data := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	m.WriteRange(addr, data)
	got := m.ReadRange(addr, 4)
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("ReadRange[%d] = %#x, want %#x", i, got[i], data[i])
		}
	}
}

func TestOnSyncFiresAfterWriteRange(t *testing.T) {
	m := New(1 << 20)
	var gotAddr, gotLen uint32
	calls := 0
	m.OnSync(func(addr, length uint32) {
		calls++
		gotAddr, gotLen = addr, length
	})
	m.WriteRange(0x3000, []byte{1, 2, 3})
	if calls != 1 {
		t.Fatalf("OnSync fired %d times, want 1", calls)
	}
	if gotAddr != 0x3000 || gotLen != 3 {
		t.Errorf("OnSync args = (%#x, %d), want (0x3000, 3)", gotAddr, gotLen)
	}
}

func TestOnSyncDoesNotFireOnWordWrite(t *testing.T) {
	m := New(1 << 20)
	calls := 0
	m.OnSync(func(uint32, uint32) { calls++ })
	m.WriteWord(0, 1, bus.CPUAccess)
	if calls != 0 {
		t.Errorf("OnSync fired on WriteWord, want 0 calls")
	}
}
