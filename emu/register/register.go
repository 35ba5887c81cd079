/*
 * MIPS-I simulator - Register file and special registers.
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

// Package register holds the architectural state of a MIPS core: the 32
// general purpose registers, HI/LO, PC, and a small Coprocessor 0 set, and
// publishes a change notification for every mutation.
package register

// Kind identifies which class of register a Change notification refers to.
type Kind int

const (
	GPR Kind = iota
	PC
	HI
	LO
	CP0
)

// CP0 select values this model implements.
const (
	CP0Status   = 12
	CP0Cause    = 13
	CP0EPC      = 14
	CP0BadVAddr = 8
)

// Change describes a single register mutation, delivered to every
// subscriber synchronously and in registration order.
type Change struct {
	Kind  Kind
	Index int
	Old   uint32
	New   uint32
}

// Observer receives change notifications. Observers must not mutate the
// File they are watching from within the callback; see the machine
// facade's cooperative scheduling contract.
type Observer func(Change)

// File is the register file for one core. It is owned by exactly one
// machine.Machine and is never a package-level global, so a single-cycle
// core and a pipelined core can each hold an independent File for
// cross-checking.
type File struct {
	gp  [32]uint32
	pc  uint32
	hi  uint32
	lo  uint32
	cp0 map[int]uint32

	observers []Observer
}

// New returns a File with all registers zeroed.
func New() *File {
	return &File{cp0: make(map[int]uint32)}
}

// Subscribe registers an observer for every future change notification.
func (f *File) Subscribe(o Observer) {
	f.observers = append(f.observers, o)
}

func (f *File) notify(c Change) {
	for _, o := range f.observers {
		o(c)
	}
}

// ReadGP returns general purpose register i. Reads are side-effect-free.
func (f *File) ReadGP(i int) uint32 {
	return f.gp[i&31]
}

// WriteGP writes general purpose register i. Writes to register 0 are
// silently discarded, as MIPS requires $zero to always read as zero, but
// still emit a change notification carrying old==new==0 so every mutation
// attempt is observable.
func (f *File) WriteGP(i int, v uint32) {
	i &= 31
	old := f.gp[i]
	if i != 0 {
		f.gp[i] = v
	} else {
		v = 0
	}
	f.notify(Change{Kind: GPR, Index: i, Old: old, New: v})
}

// ReadPC returns the program counter.
func (f *File) ReadPC() uint32 {
	return f.pc
}

// WritePC sets the program counter.
func (f *File) WritePC(v uint32) {
	old := f.pc
	f.pc = v
	f.notify(Change{Kind: PC, Index: 0, Old: old, New: v})
}

// ReadHI returns the HI multiplier register.
func (f *File) ReadHI() uint32 {
	return f.hi
}

// WriteHI sets the HI multiplier register.
func (f *File) WriteHI(v uint32) {
	old := f.hi
	f.hi = v
	f.notify(Change{Kind: HI, Index: 0, Old: old, New: v})
}

// ReadLO returns the LO multiplier register.
func (f *File) ReadLO() uint32 {
	return f.lo
}

// WriteLO sets the LO multiplier register.
func (f *File) WriteLO(v uint32) {
	old := f.lo
	f.lo = v
	f.notify(Change{Kind: LO, Index: 0, Old: old, New: v})
}

// ReadCP0 returns Coprocessor 0 register sel, or 0 if never written.
func (f *File) ReadCP0(sel int) uint32 {
	return f.cp0[sel]
}

// WriteCP0 sets Coprocessor 0 register sel.
func (f *File) WriteCP0(sel int, v uint32) {
	old := f.cp0[sel]
	f.cp0[sel] = v
	f.notify(Change{Kind: CP0, Index: sel, Old: old, New: v})
}

// Snapshot is a deep copy of a File's architectural state, independent
// of any particular File instance, used by the machine facade's
// Snapshot/Restore pair.
type Snapshot struct {
	GP  [32]uint32
	PC  uint32
	HI  uint32
	LO  uint32
	CP0 map[int]uint32
}

// Snapshot returns a deep copy of f's current state.
func (f *File) Snapshot() Snapshot {
	cp0 := make(map[int]uint32, len(f.cp0))
	for k, v := range f.cp0 {
		cp0[k] = v
	}
	return Snapshot{GP: f.gp, PC: f.pc, HI: f.hi, LO: f.lo, CP0: cp0}
}

// Restore replaces f's state with s, notifying subscribers of every
// register as if freshly written. Intended for use only between cycles,
// per the machine facade's cooperative scheduling contract.
func (f *File) Restore(s Snapshot) {
	for i := range f.gp {
		f.WriteGP(i, s.GP[i])
	}
	f.WritePC(s.PC)
	f.WriteHI(s.HI)
	f.WriteLO(s.LO)
	f.cp0 = make(map[int]uint32)
	for k, v := range s.CP0 {
		f.WriteCP0(k, v)
	}
}

// Reset zeroes every register without removing subscribers, mirroring the
// machine facade's full-state reset on reconfiguration.
func (f *File) Reset() {
	for i := range f.gp {
		f.gp[i] = 0
	}
	f.pc = 0
	f.hi = 0
	f.lo = 0
	f.cp0 = make(map[int]uint32)
}
