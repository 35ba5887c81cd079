package device

/*
 * MIPS-I simulator - character LCD peripheral.
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
	"strconv"
	"strings"
	"sync"

	"github.com/mipssim/core/config/configparser"
	"github.com/mipssim/core/emu/bus"
)

// LCDCols and LCDRows size the default character buffer; a 16x2 module is
// the common classroom target board for this kind of simulator.
const (
	LCDCols = 16
	LCDRows = 2
)

// LCD register offsets. CMD selects row/column on write (row from bits 8
// and up, column from the low bits, each taken modulo the display size)
// and clears the buffer
// when written as 0xffffffff; CHAR writes one character at the cursor
// and advances it, wrapping to the next row.
const (
	LCDCmd  = 0x0
	LCDChar = 0x4
	LCDSize = 0x8
)

const lcdClear = 0xffffffff

// LCD is a small character-buffer display, standing in for the
// memory-mapped output module a teaching board exposes.
type LCD struct {
	mu   sync.Mutex
	buf  [LCDRows][LCDCols]byte
	row  int
	col  int
}

// NewLCD returns an LCD with a space-filled buffer and the cursor at
// (0, 0).
func NewLCD() *LCD {
	l := &LCD{}
	l.clear()
	return l
}

func (l *LCD) clear() {
	for r := range l.buf {
		for c := range l.buf[r] {
			l.buf[r][c] = ' '
		}
	}
	l.row, l.col = 0, 0
}

func (l *LCD) Read(offset uint32, w bus.Width, src bus.Source) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch offset &^ 3 {
	case LCDCmd:
		return uint32(l.row)<<8 | uint32(l.col)
	case LCDChar:
		return uint32(l.buf[l.row][l.col])
	default:
		return 0
	}
}

func (l *LCD) Write(offset uint32, w bus.Width, value uint32, src bus.Source) {
	if src == bus.DebugProbe {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	switch offset &^ 3 {
	case LCDCmd:
		if value == lcdClear {
			l.clear()
			return
		}
		l.row = int(value>>8) % LCDRows
		l.col = int(value) % LCDCols
	case LCDChar:
		l.buf[l.row][l.col] = byte(value)
		l.col++
		if l.col >= LCDCols {
			l.col = 0
			l.row = (l.row + 1) % LCDRows
		}
	}
}

// Reset clears the buffer and homes the cursor.
func (l *LCD) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
}

// Text returns the buffer's current contents, one string per row,
// trailing spaces intact.
func (l *LCD) Text() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := make([]string, LCDRows)
	for r := range l.buf {
		rows[r] = string(l.buf[r][:])
	}
	return rows
}

// Debug supports "dump" (print the buffer to stdout) and "row=N" (print
// a single row).
func (l *LCD) Debug(flag string) error {
	if flag == "dump" {
		for i, row := range l.Text() {
			fmt.Printf("lcd row %d: %q\n", i, row)
		}
		return nil
	}
	if n, ok := strings.CutPrefix(flag, "row="); ok {
		idx, err := strconv.Atoi(n)
		if err != nil || idx < 0 || idx >= LCDRows {
			return fmt.Errorf("lcd: invalid row %q", n)
		}
		fmt.Printf("lcd row %d: %q\n", idx, l.Text()[idx])
		return nil
	}
	return fmt.Errorf("lcd: unknown debug flag %q", flag)
}

func (l *LCD) Size() uint32 { return LCDSize }

func init() {
	configparser.RegisterModel("lcd", configparser.TypeModel, func(addr uint32, _ string, _ []configparser.Option) error {
		queue(addr, NewLCD())
		return nil
	})
}
