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

// Package memory implements the RAM backend: a paged, byte-addressable,
// big-endian word store that allocates pages lazily on first write, so a
// sparse 4GiB address space costs nothing until touched.

import "github.com/mipssim/core/emu/bus"

// PageWords is the number of 32-bit words held by one page. A page is
// allocated the first time any word inside it is written; an untouched
// page reads back as all zero.
const PageWords = 256

// RAM is a demand-paged word store addressed in bytes. It satisfies the
// bus backend contract (ReadWord/WriteWord plus byte and halfword
// helpers) and additionally exposes ReadRange/WriteRange for bulk image
// loading and the load-range/dump-range CLI operations.
type RAM struct {
	pages map[uint32][]uint32
	size  uint32
	sync  []func(addr, length uint32)
}

// New returns an empty RAM backend. size is advisory, the number of
// bytes this backend claims to cover once registered on a bus; it is not
// itself enforced here since paging already bounds real allocation.
func New(size uint32) *RAM {
	return &RAM{pages: make(map[uint32][]uint32), size: size}
}

// Size returns the size given to New.
func (m *RAM) Size() uint32 {
	return m.size
}

func (m *RAM) page(addr uint32, alloc bool) []uint32 {
	pn := addr / (PageWords * 4)
	p, ok := m.pages[pn]
	if !ok {
		if !alloc {
			return nil
		}
		p = make([]uint32, PageWords)
		m.pages[pn] = p
	}
	return p
}

// ReadWord returns the word at addr, which must be a multiple of 4. src
// is ignored: plain RAM has no access-dependent side effects.
func (m *RAM) ReadWord(addr uint32, src bus.Source) uint32 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[(addr/4)%PageWords]
}

// WriteWord stores v at addr, which must be a multiple of 4, allocating
// the backing page on first use.
func (m *RAM) WriteWord(addr, v uint32, src bus.Source) {
	p := m.page(addr, true)
	p[(addr/4)%PageWords] = v
}

// ReadByte returns one byte from the word containing addr, in
// big-endian order (addr&3==0 is the most significant byte).
func (m *RAM) ReadByte(addr uint32, src bus.Source) uint8 {
	w := m.ReadWord(addr&^3, src)
	shift := 24 - 8*(addr&3)
	return uint8(w >> shift)
}

// WriteByte stores v into its containing word without disturbing the
// other three bytes.
func (m *RAM) WriteByte(addr uint32, v uint8, src bus.Source) {
	wa := addr &^ 3
	shift := 24 - 8*(addr&3)
	mask := uint32(0xff) << shift
	w := m.ReadWord(wa, src)
	w = (w &^ mask) | (uint32(v) << shift)
	m.WriteWord(wa, w, src)
}

// ReadHalf returns the big-endian halfword at addr, which must be a
// multiple of 2.
func (m *RAM) ReadHalf(addr uint32, src bus.Source) uint16 {
	return uint16(m.ReadByte(addr, src))<<8 | uint16(m.ReadByte(addr+1, src))
}

// WriteHalf stores the big-endian halfword v at addr, which must be a
// multiple of 2.
func (m *RAM) WriteHalf(addr uint32, v uint16, src bus.Source) {
	m.WriteByte(addr, uint8(v>>8), src)
	m.WriteByte(addr+1, uint8(v), src)
}

// ReadRange copies length bytes starting at addr into a freshly
// allocated slice. Used by dump-range and by disassembly of a loaded
// image.
func (m *RAM) ReadRange(addr, length uint32) []byte {
	out := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		out[i] = m.ReadByte(addr+i, bus.PeripheralBurst)
	}
	return out
}

// WriteRange stores data starting at addr and then runs every callback
// registered with OnSync once for the whole range, so a cache fronting
// this RAM can invalidate lines touched by a bulk load outside the
// normal fetch/load/store path.
func (m *RAM) WriteRange(addr uint32, data []byte) {
	for i, b := range data {
		m.WriteByte(addr+uint32(i), b, bus.PeripheralBurst)
	}
	for _, cb := range m.sync {
		cb(addr, uint32(len(data)))
	}
}

// OnSync registers a callback run by WriteRange after every bulk write.
func (m *RAM) OnSync(cb func(addr, length uint32)) {
	m.sync = append(m.sync, cb)
}

// Snapshot returns a deep copy of every allocated page, for the machine
// facade's Snapshot/Restore pair. Unallocated pages need no copy: they
// already read back as zero.
func (m *RAM) Snapshot() map[uint32][]uint32 {
	out := make(map[uint32][]uint32, len(m.pages))
	for pn, p := range m.pages {
		cp := make([]uint32, len(p))
		copy(cp, p)
		out[pn] = cp
	}
	return out
}

// Restore replaces m's pages with a deep copy of pages, as returned by
// an earlier Snapshot.
func (m *RAM) Restore(pages map[uint32][]uint32) {
	m.pages = make(map[uint32][]uint32, len(pages))
	for pn, p := range pages {
		cp := make([]uint32, len(p))
		copy(cp, p)
		m.pages[pn] = cp
	}
}
