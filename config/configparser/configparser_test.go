/*
 * MIPS-I simulator - configuration file parser test set.
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

package configparser

import (
	"strings"
	"testing"
)

type capture struct {
	addr  uint32
	value string
	opts  []Option
	calls int
}

func (c *capture) handler() func(uint32, string, []Option) error {
	return func(addr uint32, value string, opts []Option) error {
		c.addr = addr
		c.value = value
		c.opts = opts
		c.calls++
		return nil
	}
}

func TestModelLine(t *testing.T) {
	var got capture
	RegisterModel("serial", TypeModel, got.handler())
	defer Unregister("serial")

	err := Load(strings.NewReader("serial ffff0000 port=2700\n"))
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("handler called %d times, want 1", got.calls)
	}
	if got.addr != 0xffff0000 {
		t.Errorf("base address %#x, want 0xffff0000", got.addr)
	}
	if len(got.opts) != 1 || got.opts[0].Name != "port" || got.opts[0].EqualOpt != "2700" {
		t.Errorf("options %+v, want one port=2700", got.opts)
	}
}

func TestModelRequiresAddress(t *testing.T) {
	var got capture
	RegisterModel("lcd", TypeModel, got.handler())
	defer Unregister("lcd")

	if err := Load(strings.NewReader("lcd nowhere\n")); err == nil {
		t.Error("model line without hex address did not fail")
	}
	if got.calls != 0 {
		t.Errorf("handler called %d times on a bad line", got.calls)
	}
}

func TestOptionValue(t *testing.T) {
	var got capture
	RegisterOption("readtime", got.handler())
	defer Unregister("readtime")

	if err := Load(strings.NewReader("readtime 10\n")); err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.value != "10" {
		t.Errorf("value %q, want \"10\"", got.value)
	}
}

func TestOptionCommaTuple(t *testing.T) {
	var got capture
	RegisterOption("icache", got.handler())
	defer Unregister("icache")

	if err := Load(strings.NewReader("icache lru,64,4,2,wb\n")); err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.value != "lru,64,4,2,wb" {
		t.Errorf("value %q, want the whole tuple", got.value)
	}
	if got.addr != NoAddr {
		t.Errorf("tuple operand should carry NoAddr, got %#x", got.addr)
	}
}

func TestSwitchLine(t *testing.T) {
	var got capture
	RegisterSwitch("pipelined", got.handler())
	defer Unregister("pipelined")

	if err := Load(strings.NewReader("pipelined\n")); err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("handler called %d times, want 1", got.calls)
	}

	if err := Load(strings.NewReader("pipelined yes\n")); err == nil {
		t.Error("switch with an operand did not fail")
	}
}

func TestCommentsAndBlankLines(t *testing.T) {
	var got capture
	RegisterSwitch("delayslot", got.handler())
	defer Unregister("delayslot")

	text := "# full comment line\n\n   \ndelayslot # trailing comment\n"
	if err := Load(strings.NewReader(text)); err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.calls != 1 {
		t.Errorf("handler called %d times, want 1", got.calls)
	}
}

func TestUnknownName(t *testing.T) {
	if err := Load(strings.NewReader("flux 99\n")); err == nil {
		t.Error("unregistered name did not fail")
	}
}

func TestCaseInsensitive(t *testing.T) {
	var got capture
	RegisterOption("HAZARD", got.handler())
	defer Unregister("hazard")

	if err := Load(strings.NewReader("HaZaRd forward\n")); err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.value != "forward" {
		t.Errorf("value %q, want \"forward\"", got.value)
	}
}

func TestQuotedOptionValue(t *testing.T) {
	var got capture
	RegisterModel("serial", TypeModel, got.handler())
	defer Unregister("serial")

	err := Load(strings.NewReader("serial ffff0000 banner=\"hello there\"\n"))
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if len(got.opts) != 1 || got.opts[0].EqualOpt != "hello there" {
		t.Errorf("options %+v, want banner=\"hello there\"", got.opts)
	}
}

func TestOptionCommaList(t *testing.T) {
	var got capture
	RegisterModel("dial", TypeModel, got.handler())
	defer Unregister("dial")

	err := Load(strings.NewReader("dial ffff0100 irq=on,latch,fast\n"))
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if len(got.opts) != 1 {
		t.Fatalf("got %d options, want 1", len(got.opts))
	}
	opt := got.opts[0]
	if opt.EqualOpt != "on" || len(opt.Value) != 2 || opt.Value[0] != "latch" || opt.Value[1] != "fast" {
		t.Errorf("option %+v, want irq=on with latch,fast", opt)
	}
}

func TestLastLineWithoutNewline(t *testing.T) {
	var got capture
	RegisterSwitch("osemu", got.handler())
	defer Unregister("osemu")

	if err := Load(strings.NewReader("osemu")); err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.calls != 1 {
		t.Errorf("handler called %d times, want 1", got.calls)
	}
}
