/*
 * MIPS-I simulator - memory-mapped peripheral contract.
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

// Package device holds the memory-mapped peripheral contract and the
// concrete peripherals the machine facade can attach to the bus: a
// serial UART, an LCD, and a dial/LEDs panel. A peripheral sits
// directly in the address space and is read/written by width; every
// device also answers Debug(string) error for inspection tooling.
package device

import "github.com/mipssim/core/emu/bus"

// Peripheral is satisfied by every memory-mapped device the machine
// facade can attach to the bus. Offset is relative to the device's own
// base address. Width-sized access lets one device answer byte, half
// and word probes the same way RAM does, since bus.Space dispatches by
// width before calling into the backend.
type Peripheral interface {
	Read(offset uint32, w bus.Width, src bus.Source) uint32
	Write(offset uint32, w bus.Width, value uint32, src bus.Source)
	Reset()
	Debug(flag string) error
	Size() uint32
}

// Backend adapts a Peripheral to bus.Backend by fixing offset math
// against a base address, so the same Peripheral implementation can be
// Register-ed directly on a bus.Space. The Source reaching each method
// is whatever the bus was called with, so a single registered Backend
// sees both ordinary CPU references and debug probes without Machine
// needing to register more than one mapping per peripheral.
type Backend struct {
	Base uint32
	Dev  Peripheral
}

func (b Backend) ReadWord(addr uint32, src bus.Source) uint32 {
	return b.Dev.Read(addr-b.Base, bus.Word, src)
}
func (b Backend) WriteWord(addr, v uint32, src bus.Source) {
	b.Dev.Write(addr-b.Base, bus.Word, v, src)
}
func (b Backend) ReadHalf(addr uint32, src bus.Source) uint16 {
	return uint16(b.Dev.Read(addr-b.Base, bus.Half, src))
}

func (b Backend) WriteHalf(addr uint32, v uint16, src bus.Source) {
	b.Dev.Write(addr-b.Base, bus.Half, uint32(v), src)
}
func (b Backend) ReadByte(addr uint32, src bus.Source) uint8 {
	return uint8(b.Dev.Read(addr-b.Base, bus.Byte, src))
}

func (b Backend) WriteByte(addr uint32, v uint8, src bus.Source) {
	b.Dev.Write(addr-b.Base, bus.Byte, uint32(v), src)
}
