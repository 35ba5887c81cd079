package assembler

/*
 * MIPS-I simulator - assembler symbol table.
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

import "fmt"

// symtab resolves labels and .set/.equ constants to values. A label's
// value is the address it was defined at; a .set/.equ value is whatever
// expression it was assigned.
type symtab struct {
	values map[string]int64
	global map[string]bool
}

func newSymtab() *symtab {
	return &symtab{values: make(map[string]int64), global: make(map[string]bool)}
}

// define records name = value, rejecting any second definition of the
// same name, whatever its value: a symbol may be defined only once.
func (s *symtab) define(name string, value int64) error {
	if old, ok := s.values[name]; ok {
		return fmt.Errorf("symbol %q redefined (was %d, now %d)", name, old, value)
	}
	s.values[name] = value
	return nil
}

func (s *symtab) markGlobal(name string) {
	s.global[name] = true
}

func (s *symtab) lookup(name string) (int64, bool) {
	v, ok := s.values[name]
	return v, ok
}
