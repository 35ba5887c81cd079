package machine

/*
 * MIPS-I simulator - machine snapshot/restore.
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

import "github.com/mipssim/core/emu/register"

// State is a deep copy of a Machine's committed architectural state:
// registers and the text/data RAM backing stores. State only captures
// what every configuration has in common; a pipelined Machine restores
// with its pipeline drained to bubbles at the restored PC, never
// mid-flight.
type State struct {
	Reg       register.Snapshot
	Text      map[uint32][]uint32
	Data      map[uint32][]uint32
	Halted    bool
	pipelined bool
	pc        uint32
}

// Snapshot returns a deep copy of m's current committed state. Dirty
// cache lines are flushed first so Text/Data reflect the architectural
// memory image a restore must reproduce.
func (m *Machine) Snapshot() State {
	m.FlushCaches()
	s := State{
		Reg:       m.Reg.Snapshot(),
		Text:      m.textRAM.Snapshot(),
		Data:      m.dataRAM.Snapshot(),
		Halted:    m.Halted(),
		pipelined: m.pl != nil,
	}
	if m.pl != nil {
		s.pc = m.pl.PC()
	}
	return s
}

// Restore replaces m's committed state with s. Any cached lines are
// invalidated, since they may no longer reflect the restored memory
// image.
func (m *Machine) Restore(s State) {
	m.Reg.Restore(s.Reg)
	m.textRAM.Restore(s.Text)
	m.dataRAM.Restore(s.Data)
	if m.iCache != nil {
		m.iCache.Invalidate()
	}
	if m.dCache != nil {
		m.dCache.Invalidate()
	}
	if m.sc != nil {
		m.sc.Halted = s.Halted
		return
	}
	m.pl.Halted = s.Halted
	if s.pipelined {
		m.pl.SetPC(s.pc)
	} else {
		m.pl.SetPC(s.Reg.PC)
	}
}
