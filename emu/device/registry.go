package device

/*
 * MIPS-I simulator - peripheral attachment registry.
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

// Attachment is one peripheral a configuration file asked to be placed
// at a given base address, queued by a model's configparser.RegisterModel
// callback for machine.Machine to drain and register on its bus. The
// queue is drained (and so effectively owned) by whichever Machine
// loads the configuration, never a permanent process-wide table.
type Attachment struct {
	Addr uint32
	Dev  Peripheral
}

var pending []Attachment

// queue appends an attachment built by a model's create callback.
func queue(addr uint32, dev Peripheral) {
	pending = append(pending, Attachment{Addr: addr, Dev: dev})
}

// Drain returns every attachment queued since the last Drain and clears
// the queue.
func Drain() []Attachment {
	a := pending
	pending = nil
	return a
}
