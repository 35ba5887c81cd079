package device

/*
 * MIPS-I simulator - dial/LEDs panel peripheral tests.
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
)

func TestDialTurnSetsPosition(t *testing.T) {
	d := NewDial()
	d.Turn(42)
	if v := d.Read(DialPosition, bus.Word, bus.CPUAccess); v != 42 {
		t.Errorf("Read position = %d, want 42", v)
	}
}

func TestDialReadClearsTurnedFlag(t *testing.T) {
	d := NewDial()
	d.Turn(1)
	d.IRQEnable = true
	d.Read(DialPosition, bus.Word, bus.CPUAccess)
	if d.Pending() {
		t.Errorf("Pending still true after CPU read")
	}
}

func TestDialDebugProbeDoesNotClearTurnedFlag(t *testing.T) {
	d := NewDial()
	d.Turn(1)
	d.IRQEnable = true
	d.Read(DialPosition, bus.Word, bus.DebugProbe)
	if !d.Pending() {
		t.Errorf("debug probe read cleared the turned flag")
	}
}

func TestDialLEDsWriteReadBack(t *testing.T) {
	d := NewDial()
	d.Write(DialLEDs, bus.Word, 0xff, bus.CPUAccess)
	if v := d.Read(DialLEDs, bus.Word, bus.CPUAccess); v != 0xff {
		t.Errorf("Read leds = %#x, want 0xff", v)
	}
	if d.LEDs() != 0xff {
		t.Errorf("LEDs() = %#x, want 0xff", d.LEDs())
	}
}

func TestDialResetClearsLEDsNotPosition(t *testing.T) {
	d := NewDial()
	d.Turn(7)
	d.Write(DialLEDs, bus.Word, 0x1, bus.CPUAccess)
	d.Reset()
	if d.LEDs() != 0 {
		t.Errorf("LEDs not cleared by Reset")
	}
	if v := d.Read(DialPosition, bus.Word, bus.CPUAccess); v != 7 {
		t.Errorf("position changed by Reset: %d", v)
	}
}
