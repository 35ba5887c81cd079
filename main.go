/*
 * MIPS-I simulator - Main process.
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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/mipssim/core/config/configparser"
	"github.com/mipssim/core/emu/assembler"
	"github.com/mipssim/core/emu/assembler/source"
	"github.com/mipssim/core/emu/cache"
	"github.com/mipssim/core/emu/device"
	"github.com/mipssim/core/emu/machine"
	"github.com/mipssim/core/emu/pipeline"
	"github.com/mipssim/core/emu/register"
	"github.com/mipssim/core/loadrange"
	"github.com/mipssim/core/telnet"
	"github.com/mipssim/core/util/hex"
	"github.com/mipssim/core/util/logger"
	"github.com/mipssim/core/util/trace"
)

var Logger *slog.Logger

func main() {
	os.Exit(run())
}

func run() int {
	optAsm := getopt.BoolLong("asm", 'a', "Input file is assembly source")
	optPipelined := getopt.BoolLong("pipelined", 'p', "Use the five-stage pipelined core")
	optNoDelaySlot := getopt.BoolLong("no-delay-slot", 0, "Disable the branch delay slot")
	optHazard := getopt.StringLong("hazard-unit", 0, "forward", "Hazard handling: none, stall or forward")

	optTraceFetch := getopt.BoolLong("trace-fetch", 0, "Trace instruction fetch")
	optTraceDecode := getopt.BoolLong("trace-decode", 0, "Trace instruction decode")
	optTraceExecute := getopt.BoolLong("trace-execute", 0, "Trace execute stage")
	optTraceMemory := getopt.BoolLong("trace-memory", 0, "Trace data memory access")
	optTraceWriteback := getopt.BoolLong("trace-writeback", 0, "Trace register writeback")
	optTracePC := getopt.BoolLong("trace-pc", 0, "Trace program counter changes")
	optTraceHI := getopt.BoolLong("trace-hi", 0, "Trace HI register changes")
	optTraceLO := getopt.BoolLong("trace-lo", 0, "Trace LO register changes")
	optTraceGP := getopt.ListLong("trace-gp", 0, "Trace one general register (may repeat)", "REG")

	optDumpRegisters := getopt.BoolLong("dump-registers", 0, "Dump registers at end of run")
	optDumpCacheStats := getopt.BoolLong("dump-cache-stats", 0, "Dump cache statistics at end of run")
	optDumpCycles := getopt.BoolLong("dump-cycles", 0, "Dump cycle count at end of run")
	optDumpRange := getopt.ListLong("dump-range", 0, "Dump memory: START,LENGTH,FNAME (may repeat)", "SPEC")
	optLoadRange := getopt.ListLong("load-range", 0, "Load words from file: START,FNAME (may repeat)", "SPEC")

	optExpectFail := getopt.BoolLong("expect-fail", 0, "Exit 0 only if the run traps")
	optFailMatch := getopt.StringLong("fail-match", 0, "", "Letters from I, A, O, J the trap kind must match")

	optICache := getopt.StringLong("i-cache", 0, "", "Instruction cache: POLICY,SETS,WORDS,ASSOC[,WRITE]")
	optDCache := getopt.StringLong("d-cache", 0, "", "Data cache: POLICY,SETS,WORDS,ASSOC[,WRITE]")
	optReadTime := getopt.IntLong("read-time", 0, 10, "Memory read latency in cycles")
	optWriteTime := getopt.IntLong("write-time", 0, 10, "Memory write latency in cycles")
	optBurstTime := getopt.IntLong("burst-time", 0, 1, "Per-word burst latency in cycles")

	optCycleLimit := getopt.IntLong("cycle-limit", 0, 100000000, "Cycle budget before giving up")
	optConsolePort := getopt.StringLong("console-port", 0, "", "Telnet port for the serial console")
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		return 0
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	anyTrace := *optTraceFetch || *optTraceDecode || *optTraceExecute || *optTraceMemory ||
		*optTraceWriteback || *optTracePC || *optTraceHI || *optTraceLO || len(*optTraceGP) > 0
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &anyTrace))
	slog.SetDefault(Logger)

	args := getopt.Args()
	if len(args) != 1 {
		Logger.Error("Please specify exactly one input file")
		getopt.Usage()
		return 1
	}
	input := args[0]

	traceSet := trace.New(Logger)
	for flag, tag := range map[*bool]string{
		optTraceFetch:     "fetch",
		optTraceDecode:    "decode",
		optTraceExecute:   "execute",
		optTraceMemory:    "memory",
		optTraceWriteback: "writeback",
		optTracePC:        "pc",
		optTraceHI:        "hi",
		optTraceLO:        "lo",
	} {
		if *flag {
			traceSet.Enable(tag)
		}
	}
	for _, reg := range *optTraceGP {
		n, err := strconv.Atoi(reg)
		if err != nil || n < 0 || n > 31 {
			Logger.Error("Invalid --trace-gp register: " + reg)
			return 1
		}
		traceSet.Enable(fmt.Sprintf("gp:%d", n))
	}

	cfg := machine.Config{
		Pipelined:    *optPipelined,
		DelaySlot:    !*optNoDelaySlot,
		MemReadTime:  int64(*optReadTime),
		MemWriteTime: int64(*optWriteTime),
		MemBurstTime: int64(*optBurstTime),
		Trace:        traceSet,
		Seed:         uint32(time.Now().UnixNano()),
	}
	switch *optHazard {
	case "none":
		cfg.HazardUnit = pipeline.HazardNone
	case "stall":
		cfg.HazardUnit = pipeline.HazardStall
	case "forward":
		cfg.HazardUnit = pipeline.HazardForward
	default:
		Logger.Error("Invalid --hazard-unit: " + *optHazard)
		return 1
	}

	var err error
	if *optICache != "" {
		cfg.ICache, err = parseCacheFlag(*optICache, cfg.MemReadTime, cfg.MemWriteTime, cfg.MemBurstTime)
		if err != nil {
			Logger.Error("Invalid --i-cache: " + err.Error())
			return 1
		}
	}
	if *optDCache != "" {
		cfg.DCache, err = parseCacheFlag(*optDCache, cfg.MemReadTime, cfg.MemWriteTime, cfg.MemBurstTime)
		if err != nil {
			Logger.Error("Invalid --d-cache: " + err.Error())
			return 1
		}
	}

	if *optConfig != "" {
		registerConfigHandlers(&cfg)
		if err := configparser.LoadConfigFile(*optConfig); err != nil {
			Logger.Error(err.Error())
			return 1
		}
	}

	m := machine.New(cfg)
	watchRegisters(m, traceSet)

	// Console wiring: the serial device feeds the machine bytes typed at
	// a telnet client, and everything the program transmits goes back
	// out to the same client.
	if *optConsolePort != "" {
		serial := device.NewSerial()
		m.Attach("serial", machine.MMIOBase, serial)
		server, err := telnet.Start(*optConsolePort, serial.Receive)
		if err != nil {
			Logger.Error(err.Error())
			return 1
		}
		defer server.Stop()
		serial.Transmit = func(b uint8) { server.Send([]byte{b}) }
	}

	if err := loadProgram(m, input, *optAsm); err != nil {
		Logger.Error(err.Error())
		return 1
	}

	for _, spec := range *optLoadRange {
		if err := loadRangeSpec(m, spec); err != nil {
			Logger.Error(err.Error())
			return 1
		}
	}

	// Interruptible run: SIGINT/SIGTERM cancels between cycles and
	// leaves the machine inspectable for the dump flags below.
	cancel := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		close(cancel)
	}()

	executed, tr := m.Run(*optCycleLimit, cancel)
	signal.Stop(sigChan)
	if tr != nil {
		Logger.Info("Trap: " + tr.Error())
	}
	Logger.Info(fmt.Sprintf("Run finished after %d cycles", executed))

	if *optDumpRegisters {
		dumpRegisters(m)
	}
	if *optDumpCacheStats {
		dumpCacheStats(m)
	}
	if *optDumpCycles {
		fmt.Printf("cycles: %d\n", m.Cycles())
	}
	for _, spec := range *optDumpRange {
		if err := dumpRangeSpec(m, spec); err != nil {
			Logger.Error(err.Error())
			return 1
		}
	}

	exp := machine.Expectation{ExpectFail: *optExpectFail}
	if *optFailMatch != "" {
		letters := make([]string, 0, len(*optFailMatch))
		for _, r := range strings.ToUpper(*optFailMatch) {
			letters = append(letters, string(r))
		}
		exp.FailMatch = machine.NewFailMatch(letters...)
	}
	return exp.ExitCode(tr)
}

// registerConfigHandlers exposes the machine options a configuration
// file may set, alongside whatever peripherals registered themselves at
// package init.
func registerConfigHandlers(cfg *machine.Config) {
	configparser.RegisterSwitch("pipelined", func(uint32, string, []configparser.Option) error {
		cfg.Pipelined = true
		return nil
	})
	configparser.RegisterSwitch("nodelayslot", func(uint32, string, []configparser.Option) error {
		cfg.DelaySlot = false
		return nil
	})
	configparser.RegisterSwitch("resetatassembly", func(uint32, string, []configparser.Option) error {
		cfg.ResetAtAssembly = true
		return nil
	})
	configparser.RegisterSwitch("osemu", func(uint32, string, []configparser.Option) error {
		cfg.OSEmuEnable = true
		return nil
	})
	configparser.RegisterOption("hazard", func(_ uint32, value string, _ []configparser.Option) error {
		switch value {
		case "none":
			cfg.HazardUnit = pipeline.HazardNone
		case "stall":
			cfg.HazardUnit = pipeline.HazardStall
		case "forward":
			cfg.HazardUnit = pipeline.HazardForward
		default:
			return fmt.Errorf("unknown hazard unit %q", value)
		}
		return nil
	})
	configparser.RegisterOption("icache", func(_ uint32, value string, _ []configparser.Option) error {
		c, err := parseCacheFlag(value, cfg.MemReadTime, cfg.MemWriteTime, cfg.MemBurstTime)
		if err != nil {
			return err
		}
		cfg.ICache = c
		return nil
	})
	configparser.RegisterOption("dcache", func(_ uint32, value string, _ []configparser.Option) error {
		c, err := parseCacheFlag(value, cfg.MemReadTime, cfg.MemWriteTime, cfg.MemBurstTime)
		if err != nil {
			return err
		}
		cfg.DCache = c
		return nil
	})
	configparser.RegisterOption("readtime", timeOption(&cfg.MemReadTime))
	configparser.RegisterOption("writetime", timeOption(&cfg.MemWriteTime))
	configparser.RegisterOption("bursttime", timeOption(&cfg.MemBurstTime))
}

func timeOption(dst *int64) func(uint32, string, []configparser.Option) error {
	return func(_ uint32, value string, _ []configparser.Option) error {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// parseCacheFlag parses "POLICY,SETS,WORDS,ASSOC[,WRITE]" as used by
// --i-cache/--d-cache and the icache/dcache configuration lines. The
// machine-level memory timings become the cache's burst cost inputs.
func parseCacheFlag(s string, readTime, writeTime, burstTime int64) (cache.Config, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return cache.Config{}, fmt.Errorf("want POLICY,SETS,WORDS,ASSOC[,WRITE], got %q", s)
	}
	cfg := cache.Config{Enabled: true, ReadTime: readTime, WriteTime: writeTime, BurstTime: burstTime}

	switch strings.ToUpper(parts[0]) {
	case "RAND":
		cfg.Replacement = cache.RAND
	case "LRU":
		cfg.Replacement = cache.LRU
	case "LFU":
		cfg.Replacement = cache.LFU
	default:
		return cache.Config{}, fmt.Errorf("unknown replacement policy %q", parts[0])
	}

	dims := []*int{&cfg.Sets, &cfg.WordsPerBlock, &cfg.Ways}
	for i, dst := range dims {
		n, err := strconv.Atoi(parts[i+1])
		if err != nil || n <= 0 || n&(n-1) != 0 {
			return cache.Config{}, fmt.Errorf("%q is not a power-of-two size", parts[i+1])
		}
		*dst = n
	}

	cfg.Write = cache.WriteBack
	if len(parts) == 5 {
		switch strings.ToUpper(parts[4]) {
		case "WB":
			cfg.Write = cache.WriteBack
		case "WTNA":
			cfg.Write = cache.WriteThroughNoAlloc
		case "WTA":
			cfg.Write = cache.WriteThroughAlloc
		default:
			return cache.Config{}, fmt.Errorf("unknown write policy %q", parts[4])
		}
	}
	return cfg, nil
}

// loadProgram populates the machine's memory from the input file:
// either assembly source run through the integrated assembler, or a raw
// big-endian word image placed at the base of the text segment.
func loadProgram(m *machine.Machine, path string, asm bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !asm {
		m.TextRAM().WriteRange(machine.TextBase, data)
		m.Reg.WritePC(machine.TextBase)
		return nil
	}

	prog, err := assembler.New(source.OSProvider{}).Assemble(path, string(data))
	if err != nil {
		return err
	}
	if m.Cfg.ResetAtAssembly {
		m.Reset()
	}
	if err := prog.WriteTo(m.Bus); err != nil {
		return err
	}
	m.Reg.WritePC(prog.Entry)
	if halt, ok := prog.Symbols["_halt"]; ok {
		m.SetHaltSymbol(uint32(halt))
	}
	for _, p := range prog.Pragmas {
		Logger.Info(fmt.Sprintf("%s:%d: #pragma %s", p.File, p.Line, p.Text))
	}
	return nil
}

// watchRegisters wires the pc/hi/lo/gp:N trace tags to the register
// file's change notifications.
func watchRegisters(m *machine.Machine, set *trace.Set) {
	m.Reg.Subscribe(func(ch register.Change) {
		switch ch.Kind {
		case register.PC:
			set.Logf("pc", "pc %08x -> %08x", ch.Old, ch.New)
		case register.HI:
			set.Logf("hi", "hi %08x -> %08x", ch.Old, ch.New)
		case register.LO:
			set.Logf("lo", "lo %08x -> %08x", ch.Old, ch.New)
		case register.GPR:
			set.Logf(fmt.Sprintf("gp:%d", ch.Index), "$%d %08x -> %08x", ch.Index, ch.Old, ch.New)
		}
	})
}

func loadRangeSpec(m *machine.Machine, spec string) error {
	parts := strings.SplitN(spec, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("load-range: want START,FNAME, got %q", spec)
	}
	start, err := strconv.ParseUint(parts[0], 0, 32)
	if err != nil {
		return fmt.Errorf("load-range: bad start address %q", parts[0])
	}
	f, err := os.Open(parts[1])
	if err != nil {
		return err
	}
	defer f.Close()
	return loadrange.Load(f, uint32(start), m.Bus)
}

func dumpRangeSpec(m *machine.Machine, spec string) error {
	parts := strings.SplitN(spec, ",", 3)
	if len(parts) != 3 {
		return fmt.Errorf("dump-range: want START,LENGTH,FNAME, got %q", spec)
	}
	start, err := strconv.ParseUint(parts[0], 0, 32)
	if err != nil {
		return fmt.Errorf("dump-range: bad start address %q", parts[0])
	}
	length, err := strconv.ParseUint(parts[1], 0, 32)
	if err != nil {
		return fmt.Errorf("dump-range: bad length %q", parts[1])
	}
	m.FlushCaches()
	f, err := os.Create(parts[2])
	if err != nil {
		return err
	}
	defer f.Close()
	return loadrange.Dump(f, uint32(start), uint32(length), m.Bus)
}

// dumpRegisters prints the final register file, eight GPRs per row.
func dumpRegisters(m *machine.Machine) {
	var str strings.Builder
	for row := 0; row < 4; row++ {
		words := make([]uint32, 8)
		for col := range words {
			words[col] = m.Reg.ReadGP(row*8 + col)
		}
		fmt.Fprintf(&str, "$%-2d ", row*8)
		hex.FormatWord(&str, words)
		str.WriteByte('\n')
	}
	str.WriteString("pc  ")
	hex.FormatWord(&str, []uint32{m.Reg.ReadPC()})
	str.WriteString(" hi ")
	hex.FormatWord(&str, []uint32{m.Reg.ReadHI()})
	str.WriteString(" lo ")
	hex.FormatWord(&str, []uint32{m.Reg.ReadLO()})
	str.WriteByte('\n')
	fmt.Print(str.String())
}

func dumpCacheStats(m *machine.Machine) {
	printStats := func(name string, c *cache.Cache) {
		if c == nil {
			fmt.Printf("%s: disabled\n", name)
			return
		}
		fmt.Printf("%s: hits=%d misses=%d mem-reads=%d mem-writes=%d stall-cycles=%d speedup=%.2f\n",
			name, c.Hits, c.Misses, c.MemReads, c.MemWrites, c.StallCycles, c.SpeedImprovement())
	}
	printStats("i-cache", m.ICache())
	printStats("d-cache", m.DCache())
}
