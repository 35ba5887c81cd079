package device

/*
 * MIPS-I simulator - serial console peripheral.
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

// Serial register offsets. Two words: a status word, whose writes set
// IRQEnable from the SerialRxReady bit, and a data word that reads pop
// the receive buffer and writes start a transmission.
const (
	SerialStatus = 0x0
	SerialData   = 0x4
	SerialSize   = 0x8
)

// Status bits.
const (
	SerialRxReady = 1 << 0
	SerialTxBusy  = 1 << 1
)

// Serial is a one-byte-deep UART console with a ready/data register
// pair: an external client (the telnet package) feeds it received bytes
// with Receive, and every byte written to SerialData is handed to
// Transmit.
type Serial struct {
	mu      sync.Mutex
	rxReady bool
	rxByte  uint8

	// IRQEnable gates whether a received byte contributes a pending
	// interrupt (polled by machine.Machine via Pending).
	IRQEnable bool

	// Transmit receives one outgoing byte at a time. nil discards
	// output, matching an unattached console.
	Transmit func(b uint8)
}

// NewSerial returns an idle serial device with no attached transmit sink.
func NewSerial() *Serial {
	return &Serial{}
}

// Receive delivers one byte from the external client into the receive
// buffer, overwriting any byte not yet read. There is no FIFO; a
// program that cannot keep up loses characters, like real single-buffer
// hardware.
func (s *Serial) Receive(b uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxByte = b
	s.rxReady = true
}

// Pending reports whether a received byte is waiting and interrupts are
// enabled, satisfying the interrupt-source contract machine.Machine
// polls between cycles.
func (s *Serial) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rxReady && s.IRQEnable
}

func (s *Serial) Read(offset uint32, w bus.Width, src bus.Source) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch offset &^ 3 {
	case SerialStatus:
		// TxBusy is never set; transmit completes synchronously.
		v := uint32(0)
		if s.rxReady {
			v |= SerialRxReady
		}
		return v
	case SerialData:
		v := uint32(s.rxByte)
		if src != bus.DebugProbe {
			s.rxReady = false
		}
		return v
	default:
		return 0
	}
}

func (s *Serial) Write(offset uint32, w bus.Width, value uint32, src bus.Source) {
	if src == bus.DebugProbe {
		return
	}
	switch offset &^ 3 {
	case SerialData:
		if s.Transmit != nil {
			s.Transmit(uint8(value))
		}
	case SerialStatus:
		s.mu.Lock()
		s.IRQEnable = value&SerialRxReady != 0
		s.mu.Unlock()
	}
}

// Reset clears the receive buffer. The transmit sink and interrupt
// enable survive a reset, matching how a real UART's line configuration
// is independent of its data path.
func (s *Serial) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxReady = false
	s.rxByte = 0
}

// Debug reports the device's current buffered state for the CLI's
// --trace/--dump tooling. The only recognized flag is "status".
func (s *Serial) Debug(flag string) error {
	if flag != "status" {
		return fmt.Errorf("serial: unknown debug flag %q", flag)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("serial: rxReady=%v rxByte=%#02x irqEnable=%v\n", s.rxReady, s.rxByte, s.IRQEnable)
	return nil
}

func (s *Serial) Size() uint32 { return SerialSize }

// init registers the serial model with the configuration registry so a
// config file can attach one by name.
func init() {
	configparser.RegisterModel("serial", configparser.TypeModel, func(addr uint32, _ string, _ []configparser.Option) error {
		queue(addr, NewSerial())
		return nil
	})
}
