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

import (
	"testing"

	"github.com/mipssim/core/emu/bus"
	"github.com/mipssim/core/emu/memory"
)

func lruConfig() Config {
	return Config{
		Enabled: true, Sets: 1, WordsPerBlock: 1, Ways: 2,
		Replacement: LRU, Write: WriteBack, ReadTime: 10, BurstTime: 2,
	}
}

// TestLRUScenario walks the access sequence 0,4,0,8,4 against a 2-way,
// 1-set, 1-word-block cache: misses on accesses 1,2,4,5 and a hit on 3,
// with the least recently used way evicted each time.
func TestLRUScenario(t *testing.T) {
	m := memory.New(0x1000)
	c := New(lruConfig(), m, 1)

	addrs := []uint32{0, 4, 0, 8, 4}
	wantMiss := []bool{true, true, false, true, true}

	for i, a := range addrs {
		before := c.Misses
		c.Read(a, bus.CPUAccess)
		gotMiss := c.Misses != before
		if gotMiss != wantMiss[i] {
			t.Errorf("access %d (addr %d): miss=%v, want %v", i+1, a, gotMiss, wantMiss[i])
		}
	}
	if c.Hits != 1 || c.Misses != 4 {
		t.Errorf("hits=%d misses=%d, want 1 hit and 4 misses", c.Hits, c.Misses)
	}
}

func TestHitsPlusMissesEqualsTotalAccesses(t *testing.T) {
	m := memory.New(0x1000)
	c := New(Config{Enabled: true, Sets: 4, WordsPerBlock: 2, Ways: 2, Replacement: LRU, Write: WriteBack, ReadTime: 10, BurstTime: 2}, m, 1)

	addrs := []uint32{0, 4, 8, 0, 16, 4, 32, 8}
	for _, a := range addrs {
		c.Read(a, bus.CPUAccess)
	}
	if c.Hits+c.Misses != uint64(len(addrs)) {
		t.Errorf("hits+misses = %d, want %d", c.Hits+c.Misses, len(addrs))
	}
	if c.MemReads > c.Misses {
		t.Errorf("mem_reads (%d) > misses (%d)", c.MemReads, c.Misses)
	}
}

func TestWriteBackFlushLeavesNoDirtyLines(t *testing.T) {
	m := memory.New(0x1000)
	c := New(Config{Enabled: true, Sets: 1, WordsPerBlock: 1, Ways: 1, Replacement: LRU, Write: WriteBack, ReadTime: 10, BurstTime: 2}, m, 1)

	c.Write(0x40, 0xdeadbeef, bus.CPUAccess)
	if m.ReadWord(0x40, bus.CPUAccess) == 0xdeadbeef {
		t.Fatalf("write-back cache should not write through to memory before flush")
	}
	c.Flush()
	if got := m.ReadWord(0x40, bus.CPUAccess); got != 0xdeadbeef {
		t.Errorf("memory after flush = %#x, want 0xdeadbeef", got)
	}
	for s := range c.sets {
		for w := range c.sets[s] {
			if c.sets[s][w].dirty {
				t.Errorf("line set=%d way=%d still dirty after flush", s, w)
			}
		}
	}
}

func TestWriteThroughNoAllocDoesNotFillOnMiss(t *testing.T) {
	m := memory.New(0x1000)
	c := New(Config{Enabled: true, Sets: 1, WordsPerBlock: 1, Ways: 1, Replacement: LRU, Write: WriteThroughNoAlloc, ReadTime: 10, BurstTime: 2}, m, 1)

	c.Write(0x80, 7, bus.CPUAccess)
	if got := m.ReadWord(0x80, bus.CPUAccess); got != 7 {
		t.Fatalf("write-through should reach memory immediately, got %#x", got)
	}
	if c.sets[0][0].valid {
		t.Errorf("write-through-no-alloc should not allocate a line on a write miss")
	}
}

func TestWriteThroughAllocFillsOnMiss(t *testing.T) {
	m := memory.New(0x1000)
	m.WriteWord(0x80, 0x11111111, bus.CPUAccess)
	c := New(Config{Enabled: true, Sets: 1, WordsPerBlock: 1, Ways: 1, Replacement: LRU, Write: WriteThroughAlloc, ReadTime: 10, BurstTime: 2}, m, 1)

	c.Write(0x80, 0x22222222, bus.CPUAccess)
	if !c.sets[0][0].valid {
		t.Fatalf("write-through-alloc should allocate a line on a write miss")
	}
	if got := m.ReadWord(0x80, bus.CPUAccess); got != 0x22222222 {
		t.Errorf("memory = %#x, want 0x22222222", got)
	}
}

func TestRandomReplacementEvictsWithinSet(t *testing.T) {
	m := memory.New(0x1000)
	c := New(Config{Enabled: true, Sets: 1, WordsPerBlock: 1, Ways: 2, Replacement: RAND, Write: WriteBack, ReadTime: 10, BurstTime: 2}, m, 7)

	for _, a := range []uint32{0, 4, 8, 12, 16} {
		c.Read(a, bus.CPUAccess)
	}
	resident := 0
	for _, l := range c.sets[0] {
		if l.valid {
			resident++
		}
	}
	if resident != 2 {
		t.Errorf("resident lines = %d, want 2 (a 2-way set never holds more than its ways)", resident)
	}
}
