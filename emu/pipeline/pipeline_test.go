package pipeline

/*
 * MIPS-I simulator - five-stage pipelined core.
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
	"github.com/mipssim/core/emu/cache"
	"github.com/mipssim/core/emu/memory"
	"github.com/mipssim/core/emu/register"
	"github.com/mipssim/core/emu/trap"
)

func newMachine(h HazardUnit) (*Core, *register.File, *memory.RAM) {
	reg := register.New()
	space := bus.New()
	ram := memory.New(0x10000)
	space.Register(0, 0x10000, "ram", ram)
	core := New(reg, space, Config{HazardUnit: h})
	return core, reg, ram
}

func asm(ram *memory.RAM, addr uint32, words ...uint32) {
	for i, w := range words {
		ram.WriteWord(addr+uint32(4*i), w, bus.PeripheralBurst)
	}
}

func stepN(t *testing.T, core *Core, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if tr := core.Step(); tr != nil {
			t.Fatalf("step %d: unexpected trap %v", i, tr)
		}
	}
}

const (
	opADDI = uint32(0x08) << 26
	opORI  = uint32(0x0D) << 26
	opLUI  = uint32(0x0F) << 26
	opLW   = uint32(0x23) << 26
	opSW   = uint32(0x2B) << 26
	opBEQ  = uint32(0x04) << 26
	opJAL  = uint32(0x03) << 26
	fnADD  = uint32(0x20)
	fnADDU = uint32(0x21)
	fnJR   = uint32(0x08)
	fnSYS  = uint32(0x0C)
)

func encADDI(rt, rs int, imm uint16) uint32 {
	return opADDI | uint32(rs)<<21 | uint32(rt)<<16 | uint32(imm)
}

func encADD(rd, rs, rt int) uint32 {
	return fnADD | uint32(rs)<<21 | uint32(rt)<<16 | uint32(rd)<<11
}

func encADDU(rd, rs, rt int) uint32 {
	return fnADDU | uint32(rs)<<21 | uint32(rt)<<16 | uint32(rd)<<11
}

func encLW(rt, rs int, off uint16) uint32 {
	return opLW | uint32(rs)<<21 | uint32(rt)<<16 | uint32(off)
}

// TestLoadUseStall runs LW $2,0($0); ADD $3,$2,$2 with forwarding: the
// one case forwarding cannot cover costs exactly one bubble, and the
// sum still sees the loaded value.
func TestLoadUseStall(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	ram.WriteWord(0x100, 21, bus.PeripheralBurst)
	asm(ram, 0,
		encLW(2, 0, 0x100),
		encADD(3, 2, 2),
	)

	// LW flows IF through WB in five cycles; ADD sits out one bubble and
	// commits on the seventh.
	stepN(t, core, 7)
	if core.Stalls != 1 {
		t.Errorf("stalls = %d, want exactly 1", core.Stalls)
	}
	if v := reg.ReadGP(3); v != 42 {
		t.Errorf("$3 = %d, want 42", v)
	}
}

// TestForwardingBackToBack checks the EX/MEM-to-EX path: an ALU result
// consumed by the very next instruction needs no stall at all.
func TestForwardingBackToBack(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	asm(ram, 0,
		encADDI(1, 0, 5),
		encADD(2, 1, 1),
	)

	stepN(t, core, 6)
	if core.Stalls != 0 {
		t.Errorf("stalls = %d, want 0", core.Stalls)
	}
	if v := reg.ReadGP(2); v != 10 {
		t.Errorf("$2 = %d, want 10", v)
	}
}

// TestForwardingPrefersNewerResult writes $1 twice in a row and then
// consumes it: the EX/MEM (newer) value must win over MEM/WB.
func TestForwardingPrefersNewerResult(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	asm(ram, 0,
		encADDI(1, 0, 5),
		encADDI(1, 0, 9),
		encADD(2, 1, 1),
	)

	stepN(t, core, 7)
	if v := reg.ReadGP(2); v != 18 {
		t.Errorf("$2 = %d, want 18 (forwarded from the newer write)", v)
	}
}

// TestBranchFlush takes BEQ $0,$0 and checks the instruction fetched
// behind it is squashed rather than committed.
func TestBranchFlush(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	asm(ram, 0,
		opBEQ|uint32(3), // BEQ $0,$0,+3 words -> target 0x10
		encADDI(1, 0, 1),
		encADDI(1, 0, 1),
		encADDI(1, 0, 1),
		encADDI(2, 0, 2), // 0x10: target
	)

	stepN(t, core, 9)
	if v := reg.ReadGP(1); v != 0 {
		t.Errorf("$1 = %d, want 0 (squashed by flush)", v)
	}
	if v := reg.ReadGP(2); v != 2 {
		t.Errorf("$2 = %d, want 2", v)
	}
	if core.Flushes == 0 {
		t.Error("taken branch recorded no flush")
	}
}

// TestHazardStallMode gets the same answer as forwarding, only slower:
// the consumer waits in IF/ID until the producer has committed.
func TestHazardStallMode(t *testing.T) {
	core, reg, ram := newMachine(HazardStall)
	asm(ram, 0,
		encADDI(1, 0, 5),
		encADD(2, 1, 1),
	)

	stepN(t, core, 9)
	if core.Stalls == 0 {
		t.Error("stall-only hazard unit recorded no stalls")
	}
	if v := reg.ReadGP(2); v != 10 {
		t.Errorf("$2 = %d, want 10", v)
	}
}

// TestJALLinksPastBranch checks JAL's link value: the flushed slot is
// never executed, so the return address is the word right after the
// JAL.
func TestJALLinksPastBranch(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	asm(ram, 0,
		opJAL|uint32(4), // JAL 0x10
		encADDI(1, 0, 1),
		encADDI(1, 0, 1),
		encADDI(1, 0, 1),
		encADDI(2, 0, 2), // 0x10: subroutine body
	)

	stepN(t, core, 9)
	if v := reg.ReadGP(31); v != 4 {
		t.Errorf("$ra = %#x, want 0x4", v)
	}
	if v := reg.ReadGP(1); v != 0 {
		t.Errorf("$1 = %d, want 0 (squashed by flush)", v)
	}
}

// TestOverflowTrapLatchesEPC lets an overflowing ADD reach writeback
// and checks the trap carries the faulting pc into EPC.
func TestOverflowTrapLatchesEPC(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	asm(ram, 0,
		opLUI|uint32(1)<<16|0x7FFF,
		opORI|uint32(1)<<21|uint32(1)<<16|0xFFFF,
		encADD(2, 1, 1),
	)

	var tr *trap.Trap
	for i := 0; i < 10 && tr == nil; i++ {
		tr = core.Step()
	}
	if tr == nil || tr.Kind != trap.Overflow {
		t.Fatalf("want Overflow trap, got %v", tr)
	}
	if tr.PC != 8 {
		t.Errorf("trap PC = %#x, want 0x8", tr.PC)
	}
	if epc := reg.ReadCP0(register.CP0EPC); epc != 8 {
		t.Errorf("EPC = %#x, want 0x8", epc)
	}
	if !core.Halted {
		t.Error("core should halt after a trap reaches writeback")
	}
}

// TestSyscallHalt runs ADDI $2,$0,10; SYSCALL and expects a clean halt
// with no trap once the syscall reaches writeback.
func TestSyscallHalt(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	asm(ram, 0,
		encADDI(2, 0, 10),
		fnSYS,
	)

	for i := 0; i < 12 && !core.Halted; i++ {
		if tr := core.Step(); tr != nil {
			t.Fatalf("unexpected trap: %v", tr)
		}
	}
	if !core.Halted {
		t.Fatal("core did not halt on SYSCALL with $v0 == 10")
	}
	if v := reg.ReadGP(2); v != 10 {
		t.Errorf("$2 = %d, want 10", v)
	}
}

// TestSingleMemPortStallsFetch models the uncached structural hazard:
// with one shared memory port, IF must sit out the cycle where the LW
// occupies MEM, even though no register hazard exists.
func TestSingleMemPortStallsFetch(t *testing.T) {
	reg := register.New()
	space := bus.New()
	ram := memory.New(0x10000)
	space.Register(0, 0x10000, "ram", ram)
	core := New(reg, space, Config{HazardUnit: HazardForward, SingleMemPort: true})

	ram.WriteWord(0x100, 9, bus.PeripheralBurst)
	asm(ram, 0,
		encLW(2, 0, 0x100),
		encADDI(3, 0, 1),
		encADDI(4, 0, 2),
		encADDI(5, 0, 3),
	)

	stepN(t, core, 10)
	if core.Stalls != 1 {
		t.Errorf("stalls = %d, want exactly 1 (the LW's MEM cycle)", core.Stalls)
	}
	if v := reg.ReadGP(2); v != 9 {
		t.Errorf("$2 = %d, want 9", v)
	}
	for i, want := range []uint32{1, 2, 3} {
		if v := reg.ReadGP(3 + i); v != want {
			t.Errorf("$%d = %d, want %d", 3+i, v, want)
		}
	}
}

// TestSingleMemPortIdleWithoutDataAccess checks the port conflict only
// fires for loads and stores: a pure ALU program never stalls IF.
func TestSingleMemPortIdleWithoutDataAccess(t *testing.T) {
	reg := register.New()
	space := bus.New()
	ram := memory.New(0x10000)
	space.Register(0, 0x10000, "ram", ram)
	core := New(reg, space, Config{HazardUnit: HazardForward, SingleMemPort: true})

	asm(ram, 0,
		encADDI(1, 0, 1),
		encADDI(2, 0, 2),
		encADDI(3, 0, 3),
	)

	stepN(t, core, 7)
	if core.Stalls != 0 {
		t.Errorf("stalls = %d, want 0", core.Stalls)
	}
	if v := reg.ReadGP(3); v != 3 {
		t.Errorf("$3 = %d, want 3", v)
	}
}

// TestICacheMissHoldsFetch fronts the fetch path with a real cache:
// every cold fetch misses and costs one IF bubble, but the program
// still commits the same architectural state.
func TestICacheMissHoldsFetch(t *testing.T) {
	reg := register.New()
	space := bus.New()
	ram := memory.New(0x10000)
	ic := cache.New(cache.Config{
		Enabled: true, Sets: 4, WordsPerBlock: 1, Ways: 1,
		Replacement: cache.LRU, Write: cache.WriteBack, ReadTime: 10, BurstTime: 2,
	}, ram, 1)
	space.Register(0, 0x10000, "text", ic)
	core := New(reg, space, Config{
		HazardUnit:   HazardForward,
		ICacheMisses: func() uint64 { return ic.Misses },
	})

	asm(ram, 0,
		encADDI(1, 0, 1),
		encADDI(2, 0, 2),
	)

	stepN(t, core, 10)
	if core.Stalls < 2 {
		t.Errorf("stalls = %d, want at least one per cold fetch", core.Stalls)
	}
	if ic.Misses == 0 {
		t.Error("instruction cache recorded no misses on a cold run")
	}
	if v := reg.ReadGP(1); v != 1 {
		t.Errorf("$1 = %d, want 1", v)
	}
	if v := reg.ReadGP(2); v != 2 {
		t.Errorf("$2 = %d, want 2", v)
	}
}

// TestStalledFetchRefetchesSameWord holds IF/ID for one cycle during a
// load-use stall; the held instruction must come out exactly once.
func TestStalledFetchRefetchesSameWord(t *testing.T) {
	core, reg, ram := newMachine(HazardForward)
	ram.WriteWord(0x100, 1, bus.PeripheralBurst)
	asm(ram, 0,
		encLW(2, 0, 0x100),
		encADDU(3, 2, 0),
		encADDU(4, 3, 0),
	)

	stepN(t, core, 9)
	if v := reg.ReadGP(3); v != 1 {
		t.Errorf("$3 = %d, want 1", v)
	}
	if v := reg.ReadGP(4); v != 1 {
		t.Errorf("$4 = %d, want 1", v)
	}
}
