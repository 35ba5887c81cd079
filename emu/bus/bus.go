package bus

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

// Package bus implements the physical address space: an ordered set of
// disjoint half-open ranges, each bound to a backend (RAM or a memory
// mapped peripheral), looked up in O(log N) per access.

import (
	"sort"

	"github.com/mipssim/core/emu/trap"
)

// Width is the size in bytes of one access.
type Width int

const (
	Byte Width = 1
	Half Width = 2
	Word Width = 4
)

// Source distinguishes who issued an access. Peripherals may use it to
// decide whether a debugger probe should trigger the same side effects
// as a real access (e.g. clearing a receive-ready flag on read).
type Source int

const (
	// CPUAccess is a normal fetch or load/store issued by a core.
	CPUAccess Source = iota
	// PeripheralBurst is a bulk transfer, e.g. a cache line fill/writeback.
	PeripheralBurst
	// DebugProbe is an inspection access (register/memory dump) that
	// must not perturb peripheral state.
	DebugProbe
)

// Backend is satisfied by anything that can be mapped into the address
// space: memory.RAM and every device.Peripheral. Every method receives
// the Source the bus was called with, so a peripheral can tell a debug
// probe apart from a real CPU reference; memory.RAM ignores it.
type Backend interface {
	ReadWord(addr uint32, src Source) uint32
	WriteWord(addr, v uint32, src Source)
	ReadHalf(addr uint32, src Source) uint16
	WriteHalf(addr uint32, v uint16, src Source)
	ReadByte(addr uint32, src Source) uint8
	WriteByte(addr uint32, v uint8, src Source)
}

type mapping struct {
	lo, hi uint32 // half-open [lo, hi)
	name   string
	backend Backend
}

// Space is the machine's physical address space.
type Space struct {
	ranges []mapping
}

// New returns an empty address space.
func New() *Space {
	return &Space{}
}

// Register binds backend to the half-open range [lo, hi). It panics if
// the new range overlaps any already-registered range: disjointness is
// a construction-time programmer error, not a runtime fault, and a
// misconfigured device table should fail loudly and immediately rather
// than defer the error to the first access.
func (s *Space) Register(lo, hi uint32, name string, backend Backend) {
	if hi <= lo {
		panic("bus: empty or inverted range for " + name)
	}
	for _, m := range s.ranges {
		if lo < m.hi && m.lo < hi {
			panic("bus: range for " + name + " overlaps " + m.name)
		}
	}
	s.ranges = append(s.ranges, mapping{lo: lo, hi: hi, name: name, backend: backend})
	sort.Slice(s.ranges, func(i, j int) bool { return s.ranges[i].lo < s.ranges[j].lo })
}

// find returns the mapping containing addr, or nil if the address is
// unmapped.
func (s *Space) find(addr uint32) *mapping {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].hi > addr })
	if i < len(s.ranges) && s.ranges[i].lo <= addr {
		return &s.ranges[i]
	}
	return nil
}

func aligned(addr uint32, w Width) bool {
	return addr%uint32(w) == 0
}

// Read fetches a value of the given width from addr. pc is the
// instruction address attributed to the trap if the access faults.
func (s *Space) Read(addr uint32, w Width, pc uint32, src Source) (uint32, *trap.Trap) {
	if !aligned(addr, w) {
		return 0, trap.NewAddr(trap.UnalignedAccess, pc, addr)
	}
	m := s.find(addr)
	if m == nil {
		return 0, trap.NewAddr(trap.BusError, pc, addr)
	}
	switch w {
	case Byte:
		return uint32(m.backend.ReadByte(addr, src)), nil
	case Half:
		return uint32(m.backend.ReadHalf(addr, src)), nil
	default:
		return m.backend.ReadWord(addr, src), nil
	}
}

// Write stores value, truncated to the given width, at addr.
func (s *Space) Write(addr uint32, w Width, value, pc uint32, src Source) *trap.Trap {
	if !aligned(addr, w) {
		return trap.NewAddr(trap.UnalignedAccess, pc, addr)
	}
	m := s.find(addr)
	if m == nil {
		return trap.NewAddr(trap.BusError, pc, addr)
	}
	switch w {
	case Byte:
		m.backend.WriteByte(addr, uint8(value), src)
	case Half:
		m.backend.WriteHalf(addr, uint16(value), src)
	default:
		m.backend.WriteWord(addr, value, src)
	}
	return nil
}
