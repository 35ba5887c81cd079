package bus_test

/*
 * MIPS-I simulator - physical address space.
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
	"github.com/mipssim/core/emu/memory"
	"github.com/mipssim/core/emu/trap"
)

func TestRegisterOverlapPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overlapping range")
		}
	}()
	s := bus.New()
	s.Register(0, 0x1000, "ram1", memory.New(0x1000))
	s.Register(0x800, 0x1800, "ram2", memory.New(0x1000))
}

func TestReadWriteRoundTrip(t *testing.T) {
	s := bus.New()
	ram := memory.New(0x1000)
	s.Register(0, 0x1000, "ram", ram)

	if tr := s.Write(0x100, bus.Word, 0x12345678, 0, bus.CPUAccess); tr != nil {
		t.Fatalf("unexpected trap: %v", tr)
	}
	v, tr := s.Read(0x100, bus.Word, 0, bus.CPUAccess)
	if tr != nil {
		t.Fatalf("unexpected trap: %v", tr)
	}
	if v != 0x12345678 {
		t.Errorf("Read = %#x, want 0x12345678", v)
	}
}

func TestUnmappedReadIsBusError(t *testing.T) {
	s := bus.New()
	s.Register(0, 0x100, "ram", memory.New(0x100))
	_, tr := s.Read(0x200, bus.Word, 0x4000, bus.CPUAccess)
	if tr == nil || tr.Kind != trap.BusError {
		t.Fatalf("want BusError, got %v", tr)
	}
	if tr.Addr != 0x200 || tr.PC != 0x4000 {
		t.Errorf("trap fields = %+v", tr)
	}
}

func TestMisalignedWordAccessFaults(t *testing.T) {
	s := bus.New()
	s.Register(0, 0x100, "ram", memory.New(0x100))
	_, tr := s.Read(0x2, bus.Word, 0, bus.CPUAccess)
	if tr == nil || tr.Kind != trap.UnalignedAccess {
		t.Fatalf("want UnalignedAccess, got %v", tr)
	}
}

func TestMisalignedHalfAccessFaults(t *testing.T) {
	s := bus.New()
	s.Register(0, 0x100, "ram", memory.New(0x100))
	if tr := s.Write(0x3, bus.Half, 1, 0, bus.CPUAccess); tr == nil || tr.Kind != trap.UnalignedAccess {
		t.Fatalf("want UnalignedAccess, got %v", tr)
	}
}

func TestByteAccessNeverMisaligned(t *testing.T) {
	s := bus.New()
	s.Register(0, 0x100, "ram", memory.New(0x100))
	for addr := uint32(0); addr < 4; addr++ {
		if tr := s.Write(addr, bus.Byte, 0xff, 0, bus.CPUAccess); tr != nil {
			t.Errorf("byte write at %d faulted: %v", addr, tr)
		}
	}
}

func TestDisjointRangesBothReachable(t *testing.T) {
	s := bus.New()
	low := memory.New(0x1000)
	high := memory.New(0x1000)
	s.Register(0, 0x1000, "low", low)
	s.Register(0x10000, 0x11000, "high", high)

	s.Write(0x10, bus.Word, 1, 0, bus.CPUAccess)
	s.Write(0x10010, bus.Word, 2, 0, bus.CPUAccess)

	v1, _ := s.Read(0x10, bus.Word, 0, bus.CPUAccess)
	v2, _ := s.Read(0x10010, bus.Word, 0, bus.CPUAccess)
	if v1 != 1 || v2 != 2 {
		t.Errorf("cross-range reads = %d, %d, want 1, 2", v1, v2)
	}
}
