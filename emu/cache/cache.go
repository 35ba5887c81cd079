package cache

/*
 * MIPS-I simulator - set-associative L1 cache.
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

// Package cache implements a configurable set-associative L1 cache
// fronting a memory.RAM, with selectable replacement and write policies
// and per-instance hit/miss/traffic statistics.

import "github.com/mipssim/core/emu/bus"

// Replacement selects the victim-selection policy.
type Replacement int

const (
	RAND Replacement = iota
	LRU
	LFU
)

// WritePolicy selects how writes are propagated to memory.
type WritePolicy int

const (
	WriteBack WritePolicy = iota
	WriteThroughNoAlloc
	WriteThroughAlloc
)

// Config describes one cache instance. Sets and WordsPerBlock must be
// positive; the address decomposition below divides by them and does
// not require powers of two.
type Config struct {
	Enabled       bool
	Sets          int
	WordsPerBlock int
	Ways          int
	Replacement   Replacement
	Write         WritePolicy
	ReadTime      int64 // cycles to start a read burst
	WriteTime     int64 // cycles to start a write burst
	BurstTime     int64 // cycles per additional word in a burst
}

type line struct {
	valid   bool
	dirty   bool
	tag     uint32
	words   []uint32
	lastUse uint64 // LRU tick
	uses    uint64 // LFU counter
}

// Backend is the memory this cache fronts: word-addressed, burst reads
// and writes sized WordsPerBlock.
type Backend interface {
	ReadWord(addr uint32, src bus.Source) uint32
	WriteWord(addr, v uint32, src bus.Source)
}

// Cache is one L1 cache instance (instruction or data; an instance
// exists per side, never as a package singleton, since both must
// coexist and be independently configured).
type Cache struct {
	cfg  Config
	sets [][]line
	mem  Backend
	tick uint64

	Hits, Misses        uint64
	MemReads, MemWrites uint64
	StallCycles         uint64
	rng                 uint32
}

// New builds a cache of the given configuration fronting mem. seed
// drives the RAND replacement policy's PRNG. The cache does not derive
// the seed from the cycle count; the machine facade passes its
// Config.Seed, so RAND runs repeat only when that seed repeats.
func New(cfg Config, mem Backend, seed uint32) *Cache {
	c := &Cache{cfg: cfg, mem: mem, rng: seed | 1}
	c.sets = make([][]line, cfg.Sets)
	for i := range c.sets {
		c.sets[i] = make([]line, cfg.Ways)
		for w := range c.sets[i] {
			c.sets[i][w].words = make([]uint32, cfg.WordsPerBlock)
		}
	}
	return c
}

func (c *Cache) decompose(addr uint32) (offset, set int, tag uint32) {
	w := uint32(c.cfg.WordsPerBlock)
	s := uint32(c.cfg.Sets)
	offset = int((addr / 4) % w)
	set = int((addr / (4 * w)) % s)
	tag = addr / (4 * w * s)
	return
}

func (c *Cache) blockBase(set int, tag uint32) uint32 {
	w := uint32(c.cfg.WordsPerBlock)
	s := uint32(c.cfg.Sets)
	return (tag*s + uint32(set)) * w * 4
}

// burstCost prices a memory burst of the given word count: the
// direction's start latency plus one burst step per additional word.
func (c *Cache) burstCost(start int64, words int) uint64 {
	if words <= 0 {
		return 0
	}
	return uint64(start + int64(words-1)*c.cfg.BurstTime)
}

func (c *Cache) nextRand(n int) int {
	c.rng ^= c.rng << 13
	c.rng ^= c.rng >> 17
	c.rng ^= c.rng << 5
	return int(c.rng) % n
}

// victim picks a way to evict from set, by configured policy. Ties
// break toward the lowest way index.
func (c *Cache) victim(set int) int {
	lines := c.sets[set]
	for i, l := range lines {
		if !l.valid {
			return i
		}
	}
	switch c.cfg.Replacement {
	case LRU:
		best := 0
		for i := 1; i < len(lines); i++ {
			if lines[i].lastUse < lines[best].lastUse {
				best = i
			}
		}
		return best
	case LFU:
		best := 0
		for i := 1; i < len(lines); i++ {
			if lines[i].uses < lines[best].uses {
				best = i
			}
		}
		return best
	default: // RAND
		if n := len(lines); n > 1 {
			return c.nextRand(n)
		}
		return 0
	}
}

func (c *Cache) fill(set, way int, tag uint32) {
	l := &c.sets[set][way]
	base := c.blockBase(set, tag)
	for i := 0; i < c.cfg.WordsPerBlock; i++ {
		l.words[i] = c.mem.ReadWord(base+uint32(4*i), bus.PeripheralBurst)
	}
	l.valid = true
	l.dirty = false
	l.tag = tag
	l.lastUse = c.tick
	l.uses = 0
	c.MemReads++
	c.StallCycles += c.burstCost(c.cfg.ReadTime, c.cfg.WordsPerBlock)
}

func (c *Cache) writeBack(set, way int) {
	l := &c.sets[set][way]
	if !l.valid || !l.dirty {
		return
	}
	base := c.blockBase(set, l.tag)
	for i, w := range l.words {
		c.mem.WriteWord(base+uint32(4*i), w, bus.PeripheralBurst)
	}
	l.dirty = false
	c.MemWrites++
	c.StallCycles += c.burstCost(c.cfg.WriteTime, c.cfg.WordsPerBlock)
}

func (c *Cache) touch(set, way int) {
	c.tick++
	c.sets[set][way].lastUse = c.tick
	c.sets[set][way].uses++
}

func (c *Cache) lookup(set int, tag uint32) int {
	for i, l := range c.sets[set] {
		if l.valid && l.tag == tag {
			return i
		}
	}
	return -1
}

// Read returns the word at addr, applying the configured replacement
// policy on a miss. A DebugProbe read returns the cached word on a hit
// and reads memory directly on a miss, without touching statistics or
// replacement metadata, so an inspector never perturbs the cache.
func (c *Cache) Read(addr uint32, src bus.Source) uint32 {
	offset, set, tag := c.decompose(addr)
	if src == bus.DebugProbe {
		if way := c.lookup(set, tag); way >= 0 {
			return c.sets[set][way].words[offset]
		}
		return c.mem.ReadWord(addr, bus.DebugProbe)
	}
	if way := c.lookup(set, tag); way >= 0 {
		c.touch(set, way)
		c.Hits++
		return c.sets[set][way].words[offset]
	}
	c.Misses++
	way := c.victim(set)
	if c.cfg.Write == WriteBack {
		c.writeBack(set, way)
	}
	c.fill(set, way, tag)
	c.touch(set, way)
	return c.sets[set][way].words[offset]
}

// Write stores value at addr per the configured write policy. src is
// ignored: unlike Read, a DebugProbe write is counted like any other.
func (c *Cache) Write(addr, value uint32, src bus.Source) {
	offset, set, tag := c.decompose(addr)
	way := c.lookup(set, tag)
	hit := way >= 0

	switch c.cfg.Write {
	case WriteBack:
		if !hit {
			c.Misses++
			way = c.victim(set)
			c.writeBack(set, way)
			c.fill(set, way, tag)
		} else {
			c.Hits++
		}
		c.sets[set][way].words[offset] = value
		c.sets[set][way].dirty = true
		c.touch(set, way)

	case WriteThroughNoAlloc:
		c.mem.WriteWord(addr, value, bus.PeripheralBurst)
		c.MemWrites++
		c.StallCycles += c.burstCost(c.cfg.WriteTime, 1)
		if hit {
			c.Hits++
			c.sets[set][way].words[offset] = value
			c.touch(set, way)
		} else {
			c.Misses++
		}

	case WriteThroughAlloc:
		if !hit {
			c.Misses++
			way = c.victim(set)
			c.fill(set, way, tag)
		} else {
			c.Hits++
		}
		c.sets[set][way].words[offset] = value
		c.mem.WriteWord(addr, value, bus.PeripheralBurst)
		c.MemWrites++
		c.StallCycles += c.burstCost(c.cfg.WriteTime, 1)
		c.touch(set, way)
	}
}

// ReadWord, WriteWord, ReadByte, WriteByte, ReadHalf and WriteHalf let
// a *Cache stand in directly for a bus.Backend, so emu/machine can
// register an instruction or data cache on the bus in front of RAM.
// Sub-word accesses go through the same block fetch/fill path as
// Read/Write, narrowed to the requested byte or half within the word.
func (c *Cache) ReadWord(addr uint32, src bus.Source) uint32 {
	return c.Read(addr, src)
}

func (c *Cache) WriteWord(addr, v uint32, src bus.Source) {
	c.Write(addr, v, src)
}

func (c *Cache) ReadByte(addr uint32, src bus.Source) uint8 {
	w := c.Read(addr-addr%4, src)
	shift := 24 - 8*(addr%4)
	return uint8(w >> shift)
}

func (c *Cache) WriteByte(addr uint32, v uint8, src bus.Source) {
	base := addr - addr%4
	shift := 24 - 8*(addr%4)
	w := c.Read(base, src)
	w = (w &^ (0xff << shift)) | uint32(v)<<shift
	c.Write(base, w, src)
}

func (c *Cache) ReadHalf(addr uint32, src bus.Source) uint16 {
	base := addr - addr%4
	shift := 16 - 8*(addr%4)
	w := c.Read(base, src)
	return uint16(w >> shift)
}

func (c *Cache) WriteHalf(addr uint32, v uint16, src bus.Source) {
	base := addr - addr%4
	shift := 16 - 8*(addr%4)
	w := c.Read(base, src)
	w = (w &^ (0xffff << shift)) | uint32(v)<<shift
	c.Write(base, w, src)
}

// Flush writes every dirty line back to memory. After Flush, no dirty
// lines remain and memory equals the pre-flush cached view.
func (c *Cache) Flush() {
	for s := range c.sets {
		for w := range c.sets[s] {
			c.writeBack(s, w)
		}
	}
}

// Invalidate drops every cached line without writing dirty data back,
// so a subsequent access re-fetches from memory. The machine facade
// calls it on Reset and Restore; memory.RAM.OnSync is wired to
// InvalidateRange instead, which drops only the lines a bulk
// WriteRange touched.
func (c *Cache) Invalidate() {
	for s := range c.sets {
		for w := range c.sets[s] {
			c.sets[s][w].valid = false
			c.sets[s][w].dirty = false
		}
	}
}

// InvalidateRange drops cached lines whose block overlaps
// [addr, addr+length). Used when only part of memory changed, so an
// unrelated line already in the cache survives.
func (c *Cache) InvalidateRange(addr, length uint32) {
	if length == 0 {
		return
	}
	blockBytes := uint32(c.cfg.WordsPerBlock) * 4
	lo, hi := addr, addr+length
	for s := range c.sets {
		for w := range c.sets[s] {
			l := &c.sets[s][w]
			if !l.valid {
				continue
			}
			base := c.blockBase(s, l.tag)
			if base < hi && base+blockBytes > lo {
				l.valid = false
				l.dirty = false
			}
		}
	}
}

// SpeedImprovement reports the emulated ratio of a no-cache baseline's
// cycle cost (one burst per access) versus this cache's actual cost.
func (c *Cache) SpeedImprovement() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 1
	}
	baseline := total * uint64(c.cfg.ReadTime)
	actual := c.Hits + c.StallCycles
	if actual == 0 {
		return 1
	}
	return float64(baseline) / float64(actual)
}
