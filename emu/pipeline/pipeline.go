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

// Package pipeline implements the five-stage IF/ID/EX/MEM/WB MIPS-I
// core: the same instruction semantics emu/singlecycle executes,
// restructured into four latches with RAW forwarding, a load-use stall,
// and a control-hazard flush. Branches resolve in EX; a mispredict
// flushes the two younger instructions behind them.

import (
	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/decoder"
	"github.com/mipssim/core/emu/register"
	"github.com/mipssim/core/emu/trap"
	"github.com/mipssim/core/util/trace"
)

// HazardUnit selects how RAW hazards on registers are handled.
type HazardUnit int

const (
	// HazardNone performs no forwarding or stalling; programs relying
	// on correct RAW ordering across adjacent instructions will
	// observe stale operands (for conformance testing only).
	HazardNone HazardUnit = iota
	// HazardStall never forwards; instead it stalls IF/ID until the
	// producing instruction has written back.
	HazardStall
	// HazardForward forwards EX/MEM and MEM/WB results to EX inputs,
	// falling back to a one-cycle load-use stall when the value is not
	// yet available (the result of a load still in MEM).
	HazardForward
)

// Config selects the pipelined core's hazard handling and structural
// behavior.
type Config struct {
	HazardUnit HazardUnit

	// SingleMemPort models one shared instruction/data memory port, the
	// structural hazard of an uncached machine: IF stalls in any cycle
	// where MEM performs a data access. The machine facade sets it when
	// no cache fronts memory.
	SingleMemPort bool

	// ICacheMisses reports the instruction cache's cumulative miss
	// counter. When set, a fetch that misses holds IF for one cycle
	// before the fetched instruction enters decode; with an I-cache in
	// front of memory that is the only reason IF ever stalls
	// structurally. nil means no instruction cache.
	ICacheMisses func() uint64

	// Trace receives per-stage logging; nil traces nothing.
	Trace *trace.Set
}

// latch is the state passed between two pipeline stages. A bubble
// carries no architectural effect; it models a NOP injected by a stall
// or a flush.
type latch struct {
	bubble bool
	pc     uint32
	word   uint32
	inst   decoder.Instruction

	rsVal, rtVal uint32

	aluResult    uint32
	destReg      int
	isLoad       bool
	loadWidth    bus.Width
	loadSigned   bool
	isStore      bool
	storeWidth   bus.Width
	storeVal     uint32
	branchTaken  bool
	branchTarget uint32
	haltOnly     bool

	tr *trap.Trap
}

// Core is one five-stage pipelined MIPS-I core. The architectural PC
// lives in the register file and tracks the fetch stage, so a caller
// that sets the PC after construction (program load, restore) is
// honored by the next fetch.
type Core struct {
	Reg *register.File
	Bus *bus.Space
	Cfg Config

	ifid, idex, exmem, memwb latch

	// ifHold buffers an instruction whose fetch missed the I-cache: it
	// enters IF/ID one cycle late, after the miss penalty's bubble.
	ifHold *latch

	// suppressFetch keeps IF idle while Drain retires the in-flight
	// instructions ahead of an external redirect.
	suppressFetch bool

	Cycles  uint64
	Stalls  uint64
	Flushes uint64
	Halted  bool
}

// New returns a pipelined Core wired to reg and space, with an empty
// pipeline (every latch starts as a bubble).
func New(reg *register.File, space *bus.Space, cfg Config) *Core {
	c := &Core{Reg: reg, Bus: space, Cfg: cfg}
	c.ifid.bubble = true
	c.idex.bubble = true
	c.exmem.bubble = true
	c.memwb.bubble = true
	return c
}

// Step advances every stage by one cycle. It returns the first fault
// observed reaching WB, if any; once a fault is observed the core
// halts, matching the single-cycle core's propagation contract.
func (c *Core) Step() *trap.Trap {
	if c.Halted {
		return nil
	}

	oldIFID, oldIDEX, oldEXMEM, oldMEMWB := c.ifid, c.idex, c.exmem, c.memwb

	if tr := c.writeback(oldMEMWB); tr != nil {
		c.Halted = true
		return tr
	}

	newMEMWB := c.mem(oldEXMEM)

	newEXMEM := c.execute(oldIDEX, oldEXMEM, oldMEMWB)

	stall := c.hazardStall(oldIFID, oldIDEX, oldEXMEM)

	var newIDEX latch
	if stall {
		newIDEX = latch{bubble: true}
		c.Stalls++
	} else {
		newIDEX = c.decode(oldIFID)
	}

	flush := newEXMEM.branchTaken
	if flush {
		c.Flushes++
		c.Reg.WritePC(newEXMEM.branchTarget)
		c.idex = latch{bubble: true}
		c.ifid = latch{bubble: true}
		c.ifHold = nil // the held instruction is on the squashed path
	} else {
		c.idex = newIDEX
		switch {
		case stall:
			c.ifid = oldIFID // IF/ID held, refetch the same instruction next cycle
		case c.memPortBusy(oldEXMEM):
			// Single memory port and MEM is using it this cycle: IF
			// cannot fetch, a bubble enters IF/ID and PC stays put.
			c.ifid = latch{bubble: true}
			c.Stalls++
		case c.ifHold != nil:
			c.ifid = *c.ifHold
			c.ifHold = nil
		case c.suppressFetch:
			c.ifid = latch{bubble: true}
		default:
			c.ifid = c.fetchWithMissStall()
		}
	}

	c.exmem = newEXMEM
	c.memwb = newMEMWB
	c.Cycles++
	return nil
}

// memPortBusy reports the structural hazard of an uncached machine:
// the one memory port serves the data access of the instruction
// entering MEM this cycle, so IF cannot use it.
func (c *Core) memPortBusy(exmem latch) bool {
	if !c.Cfg.SingleMemPort {
		return false
	}
	return !exmem.bubble && exmem.tr == nil && (exmem.isLoad || exmem.isStore)
}

// fetchWithMissStall fetches the next instruction and, when the fetch
// missed the I-cache, holds it in ifHold so the miss costs one IF
// bubble before the instruction reaches decode.
func (c *Core) fetchWithMissStall() latch {
	if c.Cfg.ICacheMisses == nil {
		return c.fetch()
	}
	before := c.Cfg.ICacheMisses()
	f := c.fetch()
	if f.tr == nil && c.Cfg.ICacheMisses() > before {
		c.ifHold = &f
		c.Stalls++
		return latch{bubble: true}
	}
	return f
}

// PC returns the address the fetch stage will read next.
func (c *Core) PC() uint32 { return c.Reg.ReadPC() }

// Drain steps the pipeline with fetch suppressed until every in-flight
// instruction has committed (or one of them faults, which halts the
// core as usual). The machine facade drains before redirecting
// execution at an interrupt, so nothing already fetched is lost and
// the PC afterwards is a precise resume point.
func (c *Core) Drain() *trap.Trap {
	c.suppressFetch = true
	defer func() { c.suppressFetch = false }()
	// Four latches plus a possible hold and stalls; the bound is only a
	// backstop against a latch that never empties.
	for i := 0; i < 16 && !c.Halted && !c.empty(); i++ {
		if tr := c.Step(); tr != nil {
			return tr
		}
	}
	return nil
}

func (c *Core) empty() bool {
	return c.ifid.bubble && c.idex.bubble && c.exmem.bubble && c.memwb.bubble && c.ifHold == nil
}

// SetPC overrides the fetch stage's next address and drains every latch
// to a bubble, used by the machine facade's Restore: a snapshot only
// captures committed architectural state, not in-flight instructions,
// so resuming from one necessarily restarts the pipeline empty at the
// restored PC.
func (c *Core) SetPC(pc uint32) {
	c.Reg.WritePC(pc)
	c.ifid = latch{bubble: true}
	c.idex = latch{bubble: true}
	c.exmem = latch{bubble: true}
	c.memwb = latch{bubble: true}
	c.ifHold = nil
}

func (c *Core) fetch() latch {
	pc := c.Reg.ReadPC()
	word, tr := c.Bus.Read(pc, bus.Word, pc, bus.CPUAccess)
	c.Reg.WritePC(pc + 4)
	if tr != nil {
		return latch{pc: pc, tr: tr}
	}
	c.Cfg.Trace.Logf("fetch", "pc=%08x word=%08x", pc, word)
	return latch{pc: pc, word: word}
}

func (c *Core) decode(in latch) latch {
	if in.bubble || in.tr != nil {
		return in
	}
	out := in
	inst, tr := decoder.Decode(in.word, in.pc)
	if tr != nil {
		out.tr = tr
		return out
	}
	c.Cfg.Trace.Logf("decode", "pc=%08x %s", in.pc, decoder.Disassemble(inst))
	out.inst = inst
	out.rsVal = c.Reg.ReadGP(inst.Rs)
	out.rtVal = c.Reg.ReadGP(inst.Rt)
	out.destReg = destRegOf(inst)
	return out
}

// hazardStall reports whether the instruction waiting in ifid must be
// held back another cycle rather than entering decode this cycle.
// HazardForward only ever stalls for a load still in EX, since that is
// the one case forwarding cannot cover (the loaded value does not
// exist until MEM); everything else is resolved by forwarding in the
// EX stage itself. HazardStall is the naive baseline: it holds back
// the consumer until every earlier in-flight producer has committed.
func (c *Core) hazardStall(ifid, idex, exmem latch) bool {
	if ifid.bubble || ifid.tr != nil {
		return false
	}
	// IF/ID carries only the fetched word; decode it here to learn the
	// consumer's source registers. A word that fails to decode never
	// stalls: decode itself turns it into a fault.
	consumer, tr := decoder.Decode(ifid.word, ifid.pc)
	if tr != nil {
		return false
	}
	switch c.Cfg.HazardUnit {
	case HazardForward:
		return !idex.bubble && idex.tr == nil && isLoadMnemonic(idex.inst.Mnemonic) && conflicts(idex, consumer)
	case HazardStall:
		return conflicts(idex, consumer) || conflicts(exmem, consumer)
	default:
		return false
	}
}

func conflicts(producer latch, consumer decoder.Instruction) bool {
	if producer.bubble || producer.tr != nil || producer.destReg <= 0 {
		return false
	}
	return consumer.Rs == producer.destReg || consumer.Rt == producer.destReg
}

func isLoadMnemonic(m string) bool {
	switch m {
	case "LB", "LBU", "LH", "LHU", "LW":
		return true
	}
	return false
}

func destRegOf(inst decoder.Instruction) int {
	switch inst.Mnemonic {
	case "SB", "SH", "SW", "BEQ", "BNE", "BLEZ", "BGTZ", "BLTZ", "BGEZ", "J", "JR", "SYSCALL", "BREAK", "MTC0", "MTHI", "MTLO":
		return -1
	case "JAL":
		return 31
	case "JALR":
		return inst.Rd
	case "BLTZAL", "BGEZAL":
		return 31
	case "MFC0":
		return inst.Rt
	case "MFHI", "MFLO":
		return inst.Rd
	}
	switch inst.Format {
	case decoder.RFormat:
		return inst.Rd
	default:
		return inst.Rt
	}
}
