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
	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/decoder"
	"github.com/mipssim/core/emu/register"
	"github.com/mipssim/core/emu/trap"
)

// execute is the EX stage. It reads idex (the instruction that just
// left decode) and resolves its operands against exmem and memwb (the
// instructions one and two cycles ahead of it, respectively) before
// computing the ALU result, memory address, or branch outcome.
// Forwarding checks exmem before memwb: the more recent producer wins.
func (c *Core) execute(idex, exmem, memwb latch) latch {
	if idex.bubble {
		return latch{bubble: true}
	}
	if idex.tr != nil {
		return idex
	}

	inst := idex.inst
	pc := idex.pc

	rs := c.operand(inst.Rs, idex.rsVal, exmem, memwb)
	rt := c.operand(inst.Rt, idex.rtVal, exmem, memwb)

	out := latch{pc: pc, inst: inst, destReg: idex.destReg}

	switch inst.Mnemonic {
	case "ADD":
		a, b := int32(rs), int32(rt)
		sum := a + b
		if overflowAdd(a, b, sum) {
			out.tr = trap.New(trap.Overflow, pc, "")
			return out
		}
		out.aluResult = uint32(sum)
	case "ADDU":
		out.aluResult = rs + rt
	case "SUB":
		a, b := int32(rs), int32(rt)
		diff := a - b
		if overflowSub(a, b, diff) {
			out.tr = trap.New(trap.Overflow, pc, "")
			return out
		}
		out.aluResult = uint32(diff)
	case "SUBU":
		out.aluResult = rs - rt
	case "AND":
		out.aluResult = rs & rt
	case "OR":
		out.aluResult = rs | rt
	case "XOR":
		out.aluResult = rs ^ rt
	case "NOR":
		out.aluResult = ^(rs | rt)
	case "SLT":
		out.aluResult = boolTo32(int32(rs) < int32(rt))
	case "SLTU":
		out.aluResult = boolTo32(rs < rt)
	case "SLL":
		out.aluResult = rt << uint(inst.Shamt)
	case "SRL":
		out.aluResult = rt >> uint(inst.Shamt)
	case "SRA":
		out.aluResult = uint32(int32(rt) >> uint(inst.Shamt))
	case "SLLV":
		out.aluResult = rt << (rs & 0x1f)
	case "SRLV":
		out.aluResult = rt >> (rs & 0x1f)
	case "SRAV":
		out.aluResult = uint32(int32(rt) >> (rs & 0x1f))

	case "MULT":
		prod := int64(int32(rs)) * int64(int32(rt))
		c.Reg.WriteLO(uint32(prod))
		c.Reg.WriteHI(uint32(prod >> 32))
	case "MULTU":
		prod := uint64(rs) * uint64(rt)
		c.Reg.WriteLO(uint32(prod))
		c.Reg.WriteHI(uint32(prod >> 32))
	case "DIV":
		a, b := int32(rs), int32(rt)
		if b == 0 {
			c.Reg.WriteLO(0)
			c.Reg.WriteHI(0)
		} else {
			c.Reg.WriteLO(uint32(a / b))
			c.Reg.WriteHI(uint32(a % b))
		}
	case "DIVU":
		if rt == 0 {
			c.Reg.WriteLO(0)
			c.Reg.WriteHI(0)
		} else {
			c.Reg.WriteLO(rs / rt)
			c.Reg.WriteHI(rs % rt)
		}
	case "MFHI":
		out.aluResult = c.Reg.ReadHI()
	case "MFLO":
		out.aluResult = c.Reg.ReadLO()
	case "MTHI":
		c.Reg.WriteHI(rs)
	case "MTLO":
		c.Reg.WriteLO(rs)

	case "LB", "LBU", "LH", "LHU", "LW":
		out.aluResult = uint32(int32(rs) + inst.SignExtImm())
		out.isLoad = true
		out.loadWidth, out.loadSigned = loadShape(inst.Mnemonic)
	case "SB", "SH", "SW":
		out.aluResult = uint32(int32(rs) + inst.SignExtImm())
		out.isStore = true
		out.storeWidth = storeWidth(inst.Mnemonic)
		out.storeVal = rt

	case "BEQ":
		out.branchTaken, out.branchTarget = rs == rt, branchTarget(pc, inst)
	case "BNE":
		out.branchTaken, out.branchTarget = rs != rt, branchTarget(pc, inst)
	case "BLEZ":
		out.branchTaken, out.branchTarget = int32(rs) <= 0, branchTarget(pc, inst)
	case "BGTZ":
		out.branchTaken, out.branchTarget = int32(rs) > 0, branchTarget(pc, inst)
	case "BLTZ":
		out.branchTaken, out.branchTarget = int32(rs) < 0, branchTarget(pc, inst)
	case "BGEZ":
		out.branchTaken, out.branchTarget = int32(rs) >= 0, branchTarget(pc, inst)
	case "BLTZAL":
		out.branchTaken, out.branchTarget = int32(rs) < 0, branchTarget(pc, inst)
		out.aluResult = pc + 4
	case "BGEZAL":
		out.branchTaken, out.branchTarget = int32(rs) >= 0, branchTarget(pc, inst)
		out.aluResult = pc + 4

	case "J":
		out.branchTaken, out.branchTarget = true, jumpTarget(pc, inst.Target)
	case "JAL":
		out.branchTaken, out.branchTarget = true, jumpTarget(pc, inst.Target)
		out.aluResult = pc + 4
	case "JR":
		out.branchTaken, out.branchTarget = true, rs
	case "JALR":
		out.branchTaken, out.branchTarget = true, rs
		out.aluResult = pc + 4

	case "ADDI":
		a, b := int32(rs), inst.SignExtImm()
		sum := a + b
		if overflowAdd(a, b, sum) {
			out.tr = trap.New(trap.Overflow, pc, "")
			return out
		}
		out.aluResult = uint32(sum)
	case "ADDIU":
		out.aluResult = uint32(int32(rs) + inst.SignExtImm())
	case "SLTI":
		out.aluResult = boolTo32(int32(rs) < inst.SignExtImm())
	case "SLTIU":
		out.aluResult = boolTo32(rs < uint32(inst.SignExtImm()))
	case "ANDI":
		out.aluResult = rs & inst.ZeroExtImm()
	case "ORI":
		out.aluResult = rs | inst.ZeroExtImm()
	case "XORI":
		out.aluResult = rs ^ inst.ZeroExtImm()
	case "LUI":
		out.aluResult = inst.ZeroExtImm() << 16

	case "SYSCALL":
		if c.operand(2, c.Reg.ReadGP(2), exmem, memwb) == 10 {
			out.haltOnly = true
		}
	case "BREAK":
		out.haltOnly = true

	case "MFC0":
		out.aluResult = c.Reg.ReadCP0(inst.Rd)
	case "MTC0":
		c.Reg.WriteCP0(inst.Rd, rt)

	default:
		out.tr = trap.New(trap.UnsupportedALU, pc, "unhandled mnemonic "+inst.Mnemonic)
	}
	c.Cfg.Trace.Logf("execute", "pc=%08x %s result=%08x taken=%v", pc, inst.Mnemonic, out.aluResult, out.branchTaken)
	return out
}

// operand resolves a register number to its value, forwarding from
// exmem then memwb when HazardForward is configured. HazardNone and
// HazardStall both read the value decode already latched: HazardStall
// is correct because it stalled until the producer committed, HazardNone
// is deliberately incorrect in the presence of a hazard.
func (c *Core) operand(regNum int, decoded uint32, exmem, memwb latch) uint32 {
	if regNum == 0 {
		return 0
	}
	if c.Cfg.HazardUnit != HazardForward {
		return decoded
	}
	if !exmem.bubble && exmem.tr == nil && exmem.destReg == regNum && !exmem.isLoad {
		return exmem.aluResult
	}
	if !memwb.bubble && memwb.tr == nil && memwb.destReg == regNum {
		return memwb.aluResult
	}
	return decoded
}

func loadShape(mnemonic string) (bus.Width, bool) {
	switch mnemonic {
	case "LB":
		return bus.Byte, true
	case "LBU":
		return bus.Byte, false
	case "LH":
		return bus.Half, true
	case "LHU":
		return bus.Half, false
	default: // LW
		return bus.Word, false
	}
}

func storeWidth(mnemonic string) bus.Width {
	switch mnemonic {
	case "SB":
		return bus.Byte
	case "SH":
		return bus.Half
	default: // SW
		return bus.Word
	}
}

// mem is the MEM stage. Non-memory instructions pass their EX/MEM
// latch through unchanged into MEM/WB; loads replace aluResult with
// the value read from the bus so later forwarding and writeback need
// only ever look at aluResult.
func (c *Core) mem(exmem latch) latch {
	if exmem.bubble || exmem.tr != nil {
		return exmem
	}
	out := exmem
	if exmem.isStore {
		c.Cfg.Trace.Logf("memory", "pc=%08x %s addr=%08x value=%08x", exmem.pc, exmem.inst.Mnemonic, exmem.aluResult, exmem.storeVal)
		if tr := c.Bus.Write(exmem.aluResult, exmem.storeWidth, exmem.storeVal, exmem.pc, bus.CPUAccess); tr != nil {
			out.tr = tr
		}
		return out
	}
	if exmem.isLoad {
		c.Cfg.Trace.Logf("memory", "pc=%08x %s addr=%08x", exmem.pc, exmem.inst.Mnemonic, exmem.aluResult)
		v, tr := c.Bus.Read(exmem.aluResult, exmem.loadWidth, exmem.pc, bus.CPUAccess)
		if tr != nil {
			out.tr = tr
			return out
		}
		if exmem.loadSigned {
			v = signExtend(v, exmem.loadWidth)
		}
		out.aluResult = v
	}
	return out
}

func signExtend(v uint32, w bus.Width) uint32 {
	switch w {
	case bus.Byte:
		return uint32(int32(int8(uint8(v))))
	case bus.Half:
		return uint32(int32(int16(uint16(v))))
	default:
		return v
	}
}

// writeback is the WB stage. It commits the final register write (if
// any) and reports a fault that reached this stage without having
// performed any of its own architectural effects, matching the
// single-cycle core's all-or-nothing trap semantics.
func (c *Core) writeback(memwb latch) *trap.Trap {
	if memwb.bubble {
		return nil
	}
	if memwb.haltOnly {
		c.Halted = true
		return nil
	}
	if memwb.tr != nil {
		c.Reg.WriteCP0(register.CP0EPC, memwb.pc)
		c.Reg.WriteCP0(register.CP0Cause, uint32(memwb.tr.Kind))
		return memwb.tr
	}
	if memwb.destReg > 0 {
		c.Cfg.Trace.Logf("writeback", "pc=%08x %s $%d=%08x", memwb.pc, memwb.inst.Mnemonic, memwb.destReg, memwb.aluResult)
		c.Reg.WriteGP(memwb.destReg, memwb.aluResult)
	}
	return nil
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
