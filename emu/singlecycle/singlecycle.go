package singlecycle

/*
 * MIPS-I simulator - single-cycle core.
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

// Package singlecycle implements the non-pipelined MIPS-I core: fetch,
// decode and execute one instruction per Step call, with an optional
// branch delay slot. With the delay slot enabled, a taken branch defers
// its PC change by one instruction; the instruction after the branch
// always executes.

import (
	"fmt"

	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/decoder"
	"github.com/mipssim/core/emu/register"
	"github.com/mipssim/core/emu/trap"
	"github.com/mipssim/core/util/trace"
)

// Config selects the single-cycle core's optional behaviors.
type Config struct {
	DelaySlot bool

	// Trace receives fetch/decode/execute/memory logging; nil traces
	// nothing.
	Trace *trace.Set
}

// Core is one single-cycle MIPS-I core, owning no state of its own
// besides delay-slot bookkeeping: registers and memory are supplied by
// the machine facade so single-cycle and pipelined cores can run the
// same program side by side for cross-checking.
type Core struct {
	Reg    *register.File
	Bus    *bus.Space
	Cfg    Config
	Cycles uint64
	Halted bool

	pending    bool
	pendingPC  uint32
}

// New returns a Core wired to reg and space.
func New(reg *register.File, space *bus.Space, cfg Config) *Core {
	return &Core{Reg: reg, Bus: space, Cfg: cfg}
}

// Step fetches, decodes and executes one instruction. It returns the
// fault, if any; on a fault EPC and Cause are latched and the core is
// marked Halted, matching section 7's trap propagation contract.
func (c *Core) Step() *trap.Trap {
	if c.Halted {
		return nil
	}

	pc := c.Reg.ReadPC()
	word, tr := c.Bus.Read(pc, bus.Word, pc, bus.CPUAccess)
	if tr != nil {
		return c.fault(tr, pc)
	}
	c.Cfg.Trace.Logf("fetch", "pc=%08x word=%08x", pc, word)

	inst, tr := decoder.Decode(word, pc)
	if tr != nil {
		return c.fault(tr, pc)
	}
	c.Cfg.Trace.Logf("decode", "pc=%08x %s", pc, decoder.Disassemble(inst))

	taken, target, tr := c.execute(inst, pc)
	if tr != nil {
		return c.fault(tr, pc)
	}
	c.Cfg.Trace.Logf("execute", "pc=%08x %s taken=%v", pc, inst.Mnemonic, taken)

	var next uint32
	switch {
	case c.pending:
		next = c.pendingPC
		c.pending = false
	case taken && c.Cfg.DelaySlot:
		c.pending = true
		c.pendingPC = target
		next = pc + 4
	case taken:
		next = target
	default:
		next = pc + 4
	}
	c.Reg.WritePC(next)
	c.Cycles++
	return nil
}

// Redirectable reports whether the PC may be redirected externally:
// false while a taken branch still owes its delay slot, since a
// redirect there would lose the pending branch target.
func (c *Core) Redirectable() bool {
	return !c.pending
}

func (c *Core) fault(tr *trap.Trap, pc uint32) *trap.Trap {
	c.Reg.WriteCP0(register.CP0EPC, pc)
	c.Reg.WriteCP0(register.CP0Cause, uint32(tr.Kind))
	c.Halted = true
	return tr
}

// linkAddress returns the return address JAL/JALR/*AL branches store:
// the address following the delay slot when one is configured, the
// address following the branch itself otherwise.
func (c *Core) linkAddress(pc uint32) uint32 {
	if c.Cfg.DelaySlot {
		return pc + 8
	}
	return pc + 4
}

func (c *Core) execute(inst decoder.Instruction, pc uint32) (taken bool, target uint32, tr *trap.Trap) {
	rs := func() uint32 { return c.Reg.ReadGP(inst.Rs) }
	rt := func() uint32 { return c.Reg.ReadGP(inst.Rt) }

	switch inst.Mnemonic {
	case "ADD":
		a, b := int32(rs()), int32(rt())
		sum := a + b
		if overflowAdd(a, b, sum) {
			return false, 0, trap.New(trap.Overflow, pc, "")
		}
		c.Reg.WriteGP(inst.Rd, uint32(sum))
	case "ADDU":
		c.Reg.WriteGP(inst.Rd, rs()+rt())
	case "SUB":
		a, b := int32(rs()), int32(rt())
		diff := a - b
		if overflowSub(a, b, diff) {
			return false, 0, trap.New(trap.Overflow, pc, "")
		}
		c.Reg.WriteGP(inst.Rd, uint32(diff))
	case "SUBU":
		c.Reg.WriteGP(inst.Rd, rs()-rt())
	case "AND":
		c.Reg.WriteGP(inst.Rd, rs()&rt())
	case "OR":
		c.Reg.WriteGP(inst.Rd, rs()|rt())
	case "XOR":
		c.Reg.WriteGP(inst.Rd, rs()^rt())
	case "NOR":
		c.Reg.WriteGP(inst.Rd, ^(rs() | rt()))
	case "SLT":
		c.Reg.WriteGP(inst.Rd, boolTo32(int32(rs()) < int32(rt())))
	case "SLTU":
		c.Reg.WriteGP(inst.Rd, boolTo32(rs() < rt()))
	case "SLL":
		c.Reg.WriteGP(inst.Rd, rt()<<uint(inst.Shamt))
	case "SRL":
		c.Reg.WriteGP(inst.Rd, rt()>>uint(inst.Shamt))
	case "SRA":
		c.Reg.WriteGP(inst.Rd, uint32(int32(rt())>>uint(inst.Shamt)))
	case "SLLV":
		c.Reg.WriteGP(inst.Rd, rt()<<(rs()&0x1f))
	case "SRLV":
		c.Reg.WriteGP(inst.Rd, rt()>>(rs()&0x1f))
	case "SRAV":
		c.Reg.WriteGP(inst.Rd, uint32(int32(rt())>>(rs()&0x1f)))

	case "MULT":
		prod := int64(int32(rs())) * int64(int32(rt()))
		c.Reg.WriteLO(uint32(prod))
		c.Reg.WriteHI(uint32(prod >> 32))
	case "MULTU":
		prod := uint64(rs()) * uint64(rt())
		c.Reg.WriteLO(uint32(prod))
		c.Reg.WriteHI(uint32(prod >> 32))
	case "DIV":
		a, b := int32(rs()), int32(rt())
		if b == 0 {
			c.Reg.WriteLO(0)
			c.Reg.WriteHI(0)
		} else {
			c.Reg.WriteLO(uint32(a / b))
			c.Reg.WriteHI(uint32(a % b))
		}
	case "DIVU":
		a, b := rs(), rt()
		if b == 0 {
			c.Reg.WriteLO(0)
			c.Reg.WriteHI(0)
		} else {
			c.Reg.WriteLO(a / b)
			c.Reg.WriteHI(a % b)
		}
	case "MFHI":
		c.Reg.WriteGP(inst.Rd, c.Reg.ReadHI())
	case "MFLO":
		c.Reg.WriteGP(inst.Rd, c.Reg.ReadLO())
	case "MTHI":
		c.Reg.WriteHI(rs())
	case "MTLO":
		c.Reg.WriteLO(rs())

	case "LB", "LBU", "LH", "LHU", "LW":
		addr := uint32(int32(rs()) + inst.SignExtImm())
		v, tr2 := c.loadValue(inst.Mnemonic, addr, pc)
		if tr2 != nil {
			return false, 0, tr2
		}
		c.Reg.WriteGP(inst.Rt, v)
	case "SB", "SH", "SW":
		addr := uint32(int32(rs()) + inst.SignExtImm())
		if tr2 := c.storeValue(inst.Mnemonic, addr, rt(), pc); tr2 != nil {
			return false, 0, tr2
		}

	case "BEQ":
		return rs() == rt(), branchTarget(pc, inst), nil
	case "BNE":
		return rs() != rt(), branchTarget(pc, inst), nil
	case "BLEZ":
		return int32(rs()) <= 0, branchTarget(pc, inst), nil
	case "BGTZ":
		return int32(rs()) > 0, branchTarget(pc, inst), nil
	case "BLTZ":
		return int32(rs()) < 0, branchTarget(pc, inst), nil
	case "BGEZ":
		return int32(rs()) >= 0, branchTarget(pc, inst), nil
	case "BLTZAL":
		c.Reg.WriteGP(31, c.linkAddress(pc))
		return int32(rs()) < 0, branchTarget(pc, inst), nil
	case "BGEZAL":
		c.Reg.WriteGP(31, c.linkAddress(pc))
		return int32(rs()) >= 0, branchTarget(pc, inst), nil

	case "J":
		return true, jumpTarget(pc, inst.Target), nil
	case "JAL":
		c.Reg.WriteGP(31, c.linkAddress(pc))
		return true, jumpTarget(pc, inst.Target), nil
	case "JR":
		return true, rs(), nil
	case "JALR":
		dest := rs()
		link := inst.Rd
		c.Reg.WriteGP(link, c.linkAddress(pc))
		return true, dest, nil

	case "ADDI":
		a, b := int32(rs()), inst.SignExtImm()
		sum := a + b
		if overflowAdd(a, b, sum) {
			return false, 0, trap.New(trap.Overflow, pc, "")
		}
		c.Reg.WriteGP(inst.Rt, uint32(sum))
	case "ADDIU":
		c.Reg.WriteGP(inst.Rt, uint32(int32(rs())+inst.SignExtImm()))
	case "SLTI":
		c.Reg.WriteGP(inst.Rt, boolTo32(int32(rs()) < inst.SignExtImm()))
	case "SLTIU":
		c.Reg.WriteGP(inst.Rt, boolTo32(rs() < uint32(inst.SignExtImm())))
	case "ANDI":
		c.Reg.WriteGP(inst.Rt, rs()&inst.ZeroExtImm())
	case "ORI":
		c.Reg.WriteGP(inst.Rt, rs()|inst.ZeroExtImm())
	case "XORI":
		c.Reg.WriteGP(inst.Rt, rs()^inst.ZeroExtImm())
	case "LUI":
		c.Reg.WriteGP(inst.Rt, inst.ZeroExtImm()<<16)

	case "SYSCALL":
		if c.Reg.ReadGP(2) == 10 {
			c.Halted = true
		}
	case "BREAK":
		c.Halted = true

	case "MFC0":
		c.Reg.WriteGP(inst.Rt, c.Reg.ReadCP0(inst.Rd))
	case "MTC0":
		c.Reg.WriteCP0(inst.Rd, c.Reg.ReadGP(inst.Rt))

	default:
		return false, 0, trap.New(trap.UnsupportedALU, pc, fmt.Sprintf("unhandled mnemonic %s", inst.Mnemonic))
	}
	return false, 0, nil
}

func (c *Core) loadValue(mnemonic string, addr, pc uint32) (uint32, *trap.Trap) {
	c.Cfg.Trace.Logf("memory", "pc=%08x %s addr=%08x", pc, mnemonic, addr)
	switch mnemonic {
	case "LB":
		v, tr := c.Bus.Read(addr, bus.Byte, pc, bus.CPUAccess)
		return uint32(int32(int8(uint8(v)))), tr
	case "LBU":
		v, tr := c.Bus.Read(addr, bus.Byte, pc, bus.CPUAccess)
		return v, tr
	case "LH":
		v, tr := c.Bus.Read(addr, bus.Half, pc, bus.CPUAccess)
		return uint32(int32(int16(uint16(v)))), tr
	case "LHU":
		v, tr := c.Bus.Read(addr, bus.Half, pc, bus.CPUAccess)
		return v, tr
	default: // LW
		return c.Bus.Read(addr, bus.Word, pc, bus.CPUAccess)
	}
}

func (c *Core) storeValue(mnemonic string, addr, value, pc uint32) *trap.Trap {
	c.Cfg.Trace.Logf("memory", "pc=%08x %s addr=%08x value=%08x", pc, mnemonic, addr, value)
	switch mnemonic {
	case "SB":
		return c.Bus.Write(addr, bus.Byte, value, pc, bus.CPUAccess)
	case "SH":
		return c.Bus.Write(addr, bus.Half, value, pc, bus.CPUAccess)
	default: // SW
		return c.Bus.Write(addr, bus.Word, value, pc, bus.CPUAccess)
	}
}

func branchTarget(pc uint32, inst decoder.Instruction) uint32 {
	return uint32(int32(pc+4) + (inst.SignExtImm() << 2))
}

func jumpTarget(pc uint32, field uint32) uint32 {
	return (pc+4)&0xf0000000 | (field << 2)
}

func overflowAdd(a, b, sum int32) bool {
	return (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0)
}

func overflowSub(a, b, diff int32) bool {
	return (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0)
}

func boolTo32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
