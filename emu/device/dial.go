package device

/*
 * MIPS-I simulator - dial/LEDs panel peripheral.
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
	"fmt"
	"sync"

	"github.com/mipssim/core/config/configparser"
	"github.com/mipssim/core/emu/bus"
)

// Dial register offsets: POSITION reads the position set externally by
// Turn, and a CPU write to it sets IRQEnable (any non-zero value
// enables); LEDS is a read/write word the CPU uses to light output LEDs.
const (
	DialPosition = 0x0
	DialLEDs     = 0x4
	DialSize     = 0x8
)

// Dial is the simplest panel peripheral: one external input register
// and one CPU-writable output register, with an optional interrupt
// pending on every external turn.
type Dial struct {
	mu       sync.Mutex
	position uint32
	leds     uint32
	turned   bool

	// IRQEnable gates whether an unacknowledged turn contributes a
	// pending interrupt.
	IRQEnable bool
}

// NewDial returns a Dial at position 0 with all LEDs off.
func NewDial() *Dial {
	return &Dial{}
}

// Turn sets the external dial position and marks a pending turn event.
func (d *Dial) Turn(position uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = position
	d.turned = true
}

// LEDs reports the last value written to the output register, for a
// host UI to render.
func (d *Dial) LEDs() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leds
}

// Pending reports an unacknowledged turn while interrupts are enabled.
func (d *Dial) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.turned && d.IRQEnable
}

func (d *Dial) Read(offset uint32, w bus.Width, src bus.Source) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch offset &^ 3 {
	case DialPosition:
		v := d.position
		if src != bus.DebugProbe {
			d.turned = false
		}
		return v
	case DialLEDs:
		return d.leds
	default:
		return 0
	}
}

func (d *Dial) Write(offset uint32, w bus.Width, value uint32, src bus.Source) {
	if src == bus.DebugProbe {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch offset &^ 3 {
	case DialLEDs:
		d.leds = value
	case DialPosition:
		d.IRQEnable = value != 0
	}
}

// Reset turns all LEDs off and clears the pending-turn flag; the dial's
// own position survives, matching a physical knob's state being
// external to the simulated machine.
func (d *Dial) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leds = 0
	d.turned = false
}

// Debug supports "leds" (print the current output mask).
func (d *Dial) Debug(flag string) error {
	if flag != "leds" {
		return fmt.Errorf("dial: unknown debug flag %q", flag)
	}
	fmt.Printf("dial: leds=%#08x position=%#08x\n", d.LEDs(), d.position)
	return nil
}

func (d *Dial) Size() uint32 { return DialSize }

func init() {
	configparser.RegisterModel("dial", configparser.TypeModel, func(addr uint32, _ string, _ []configparser.Option) error {
		queue(addr, NewDial())
		return nil
	})
}
