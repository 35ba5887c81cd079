package machine

/*
 * MIPS-I simulator - machine facade.
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

// Package machine owns the whole simulated system: register file,
// address space, RAM, optional instruction/data caches, exactly one
// core (single-cycle or pipelined), and the attached peripherals. It is
// the single constructor/lifecycle owner a CLI collaborator drives with
// Step/Run rather than talking to the cores or the bus directly.
import (
	"fmt"

	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/cache"
	"github.com/mipssim/core/emu/device"
	"github.com/mipssim/core/emu/memory"
	"github.com/mipssim/core/emu/pipeline"
	"github.com/mipssim/core/emu/register"
	"github.com/mipssim/core/emu/singlecycle"
	"github.com/mipssim/core/emu/trap"
	"github.com/mipssim/core/util/trace"
)

// Address map. A single bus.Space carries three disjoint ranges: text
// (instruction fetch, optionally I-cached), data (loads/stores,
// optionally D-cached) and an MMIO window peripherals attach into. The
// split lets an I-cache and a D-cache coexist as two independent
// cache.Cache instances fronting two independent memory.RAM instances,
// without either emu/singlecycle or emu/pipeline needing to know about
// more than the one bus.Space they already hold.
const (
	TextBase = 0x00400000
	DataBase = 0x10000000
	MMIOBase = 0xffff0000
	MMIOTop  = 0xffffffff

	defaultTextSize = 0x00100000
	defaultDataSize = 0x00100000

	// IntVector is where execution resumes when a peripheral interrupt
	// is taken: EPC holds the interrupted PC, Cause carries the pending
	// bit, and the handler lives early in the text segment.
	IntVector = TextBase + 0x180
)

// CP0 Status/Cause bits for the peripheral interrupt line.
const (
	StatusIE   = 1 << 0  // global interrupt enable
	CauseIPExt = 1 << 10 // external (peripheral) interrupt pending
)

// interruptSource is implemented by peripherals (Serial, Dial) that can
// raise an interrupt. Pending is polled between cycles, never during
// one, so a stage never observes the line changing mid-cycle.
type interruptSource interface {
	Pending() bool
}

// Config selects the cores, caches and timing a Machine is built with.
type Config struct {
	Pipelined  bool
	DelaySlot  bool
	HazardUnit pipeline.HazardUnit

	ICache cache.Config
	DCache cache.Config

	// TextSize and DataSize override the default 1MiB windows reserved
	// for each segment. Zero selects the default.
	TextSize uint32
	DataSize uint32

	MemReadTime  int64
	MemWriteTime int64
	MemBurstTime int64

	ResetAtAssembly bool
	OSEmuEnable     bool

	// Trace receives per-subsystem debug logging; nil disables tracing.
	Trace *trace.Set

	// Seed drives cache replacement PRNGs. Tests pin it for
	// reproducibility; a CLI derives it from wall-clock time.
	Seed uint32
}

func (c Config) textSize() uint32 {
	if c.TextSize == 0 {
		return defaultTextSize
	}
	return c.TextSize
}

func (c Config) dataSize() uint32 {
	if c.DataSize == 0 {
		return defaultDataSize
	}
	return c.DataSize
}

// Machine is one complete simulated system. It is the sole owner of
// every piece of mutable architectural state; external collaborators
// (a CLI, a test) only ever call into a Machine, never construct a core
// or a bus.Space on their own.
type Machine struct {
	Cfg Config
	Reg *register.File
	Bus *bus.Space

	textRAM *memory.RAM
	dataRAM *memory.RAM
	iCache  *cache.Cache
	dCache  *cache.Cache

	sc *singlecycle.Core
	pl *pipeline.Core

	peripherals []attached

	haltAddr uint32
	haltSet  bool

	Trace *trace.Set
}

type attached struct {
	name string
	addr uint32
	dev  device.Peripheral
}

// New builds a Machine from cfg, draining any peripherals a prior
// configparser.LoadConfigFile call queued via emu/device's registry.
func New(cfg Config) *Machine {
	m := &Machine{Cfg: cfg, Trace: cfg.Trace}
	m.Reg = register.New()
	m.Bus = bus.New()

	m.textRAM = memory.New(cfg.textSize())
	m.dataRAM = memory.New(cfg.dataSize())

	var textBackend, dataBackend bus.Backend = m.textRAM, m.dataRAM
	if cfg.ICache.Enabled {
		m.iCache = cache.New(cfg.ICache, m.textRAM, cfg.Seed|1)
		textBackend = m.iCache
		m.textRAM.OnSync(func(addr, length uint32) { m.iCache.InvalidateRange(addr, length) })
	}
	if cfg.DCache.Enabled {
		m.dCache = cache.New(cfg.DCache, m.dataRAM, cfg.Seed|2)
		dataBackend = m.dCache
		m.dataRAM.OnSync(func(addr, length uint32) { m.dCache.InvalidateRange(addr, length) })
	}

	m.Bus.Register(TextBase, TextBase+cfg.textSize(), "text", textBackend)
	m.Bus.Register(DataBase, DataBase+cfg.dataSize(), "data", dataBackend)

	for _, a := range device.Drain() {
		m.attach(fmt.Sprintf("device@%#x", a.Addr), a.Addr, a.Dev)
	}

	if cfg.Pipelined {
		plCfg := pipeline.Config{
			HazardUnit: cfg.HazardUnit,
			Trace:      cfg.Trace,
			// One memory port is shared by IF and MEM unless a cache
			// decouples them; with caches IF only ever stalls on an
			// I-cache miss.
			SingleMemPort: !cfg.ICache.Enabled && !cfg.DCache.Enabled,
		}
		if m.iCache != nil {
			ic := m.iCache
			plCfg.ICacheMisses = func() uint64 { return ic.Misses }
		}
		m.pl = pipeline.New(m.Reg, m.Bus, plCfg)
	} else {
		m.sc = singlecycle.New(m.Reg, m.Bus, singlecycle.Config{DelaySlot: cfg.DelaySlot, Trace: cfg.Trace})
	}
	return m
}

// attach registers one peripheral on the bus at addr and records it so
// Debug/Peripherals can find it again by name.
func (m *Machine) attach(name string, addr uint32, dev device.Peripheral) {
	m.Bus.Register(addr, addr+dev.Size(), name, device.Backend{Base: addr, Dev: dev})
	m.peripherals = append(m.peripherals, attached{name: name, addr: addr, dev: dev})
}

// Attach registers an already-constructed peripheral at addr, for a
// caller (a CLI wiring a serial console to a telnet listener) that
// needs a handle to the concrete device rather than going through the
// config file's registry.
func (m *Machine) Attach(name string, addr uint32, dev device.Peripheral) {
	m.attach(name, addr, dev)
}

// Peripheral returns the device registered under name, or nil.
func (m *Machine) Peripheral(name string) device.Peripheral {
	for _, a := range m.peripherals {
		if a.name == name {
			return a.dev
		}
	}
	return nil
}

// SetHaltSymbol arms a halt-on-fetch check at addr, typically the
// assembler's "_halt" symbol when the program defines one. Neither core
// has any notion of named symbols; that belongs at the facade, which is
// the only layer that still has the assembler's symbol table in hand.
func (m *Machine) SetHaltSymbol(addr uint32) {
	m.haltAddr = addr
	m.haltSet = true
}

// Halted reports whether the active core has stopped, either from a
// trap, from a halt-symbol hit, or because the caller forced it.
func (m *Machine) Halted() bool {
	if m.sc != nil {
		return m.sc.Halted
	}
	return m.pl.Halted
}

// Cycles returns the active core's cycle count.
func (m *Machine) Cycles() uint64 {
	if m.sc != nil {
		return m.sc.Cycles
	}
	return m.pl.Cycles
}

// Step advances the simulation by one cycle. If a halt symbol is armed
// and the program counter has reached it, Step halts the core without
// executing a fetch and returns no trap, exactly like a program that
// trapped cleanly at the same address would read to an inspector.
// Peripheral interrupt lines are sampled first, so an external event
// delivered between cycles is visible to the CPU on this fetch
// boundary.
func (m *Machine) Step() *trap.Trap {
	if m.Halted() {
		return nil
	}
	if tr := m.pollInterrupts(); tr != nil {
		return tr
	}
	if m.Halted() {
		return nil
	}
	if m.haltSet && m.Reg.ReadPC() == m.haltAddr {
		m.forceHalt()
		return nil
	}
	if m.sc != nil {
		return m.sc.Step()
	}
	return m.pl.Step()
}

// pollInterrupts mirrors the attached peripherals' pending lines into
// CP0 Cause and, when Status has interrupts enabled, takes the
// interrupt: EPC latches the interrupted PC, interrupts are masked, and
// execution vectors to IntVector. Software that never sets StatusIE can
// still poll the Cause bit. Taking the interrupt waits for a precise
// boundary: the single-cycle core finishes an owed delay slot first,
// and the pipelined core drains its in-flight instructions (a fault
// surfaced while draining is returned like any other trap).
func (m *Machine) pollInterrupts() *trap.Trap {
	pending := false
	for _, a := range m.peripherals {
		if src, ok := a.dev.(interruptSource); ok && src.Pending() {
			pending = true
			break
		}
	}

	cause := m.Reg.ReadCP0(register.CP0Cause)
	newCause := cause &^ uint32(CauseIPExt)
	if pending {
		newCause |= CauseIPExt
	}
	if newCause != cause {
		m.Reg.WriteCP0(register.CP0Cause, newCause)
	}

	status := m.Reg.ReadCP0(register.CP0Status)
	if !pending || status&StatusIE == 0 {
		return nil
	}
	if m.sc != nil && !m.sc.Redirectable() {
		return nil
	}
	if m.pl != nil {
		if tr := m.pl.Drain(); tr != nil {
			return tr
		}
		if m.pl.Halted {
			return nil
		}
	}
	m.Reg.WriteCP0(register.CP0EPC, m.Reg.ReadPC())
	m.Reg.WriteCP0(register.CP0Status, status&^uint32(StatusIE))
	if m.sc != nil {
		m.Reg.WritePC(IntVector)
	} else {
		m.pl.SetPC(IntVector)
	}
	return nil
}

func (m *Machine) forceHalt() {
	if m.sc != nil {
		m.sc.Halted = true
		return
	}
	m.pl.Halted = true
}

// Run steps the machine up to budget cycles, stopping early on halt, on
// a trap, or when cancel is signalled. cancel is polled only between
// cycles, never mid-cycle, so observers always see the machine at a
// cycle boundary. It returns the number of cycles actually executed and
// the trap that stopped it, if any.
func (m *Machine) Run(budget int, cancel <-chan struct{}) (int, *trap.Trap) {
	executed := 0
	for executed < budget {
		select {
		case <-cancel:
			return executed, nil
		default:
		}
		if m.Halted() {
			return executed, nil
		}
		if tr := m.Step(); tr != nil {
			return executed + 1, tr
		}
		executed++
	}
	return executed, nil
}

// Reset returns the machine to its power-on register state: registers
// zeroed, caches invalidated, peripherals reset, cores un-halted with
// empty state. Memory contents survive, so a host that assembles a new
// program into an already-running machine (ResetAtAssembly) starts it
// clean without rebuilding the whole Machine.
func (m *Machine) Reset() {
	m.Reg.Reset()
	if m.iCache != nil {
		m.iCache.Invalidate()
	}
	if m.dCache != nil {
		m.dCache.Invalidate()
	}
	for _, a := range m.peripherals {
		a.dev.Reset()
	}
	if m.sc != nil {
		m.sc.Halted = false
		return
	}
	m.pl.Halted = false
	m.pl.SetPC(0)
}

// FlushCaches writes every dirty cache line back to memory, so a dump
// or snapshot sees the architectural memory image.
func (m *Machine) FlushCaches() {
	if m.iCache != nil {
		m.iCache.Flush()
	}
	if m.dCache != nil {
		m.dCache.Flush()
	}
}

// ICache and DCache expose the configured caches for statistics
// reporting (--dump-cache-stats); either may be nil.
func (m *Machine) ICache() *cache.Cache { return m.iCache }
func (m *Machine) DCache() *cache.Cache { return m.dCache }

// TextRAM and DataRAM expose the backing stores directly, for
// load-range/dump-range and for debugger probes that must bypass
// whichever cache fronts a segment.
func (m *Machine) TextRAM() *memory.RAM { return m.textRAM }
func (m *Machine) DataRAM() *memory.RAM { return m.dataRAM }
