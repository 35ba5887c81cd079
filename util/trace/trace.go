/*
 * MIPS-I simulator - per-subsystem trace masks.
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

// Package trace provides mask-gated per-subsystem debug logging keyed
// by open-ended tags: fetch, decode, execute, memory, writeback, pc,
// hi, lo, and gp:<reg> for one specific register. A Set is owned by the
// machine facade, not a package global, so two machines running side by
// side can carry independent trace configuration. A nil *Set is valid
// and traces nothing, so cores call into it unconditionally.
package trace

import (
	"fmt"
	"log/slog"
)

// Set holds the enabled subsystem tags for one machine.
type Set struct {
	enabled map[string]bool
	log     *slog.Logger
}

// New returns a Set with every tag disabled, logging through log. A nil
// log discards every traced message.
func New(log *slog.Logger) *Set {
	return &Set{enabled: make(map[string]bool), log: log}
}

// Enable turns a tag on. General registers are traced one at a time:
// "gp:5" enables tracing writes to $5 only.
func (s *Set) Enable(tag string) {
	s.enabled[tag] = true
}

// Disable turns a tag off.
func (s *Set) Disable(tag string) {
	delete(s.enabled, tag)
}

// On reports whether tag is currently enabled.
func (s *Set) On(tag string) bool {
	return s != nil && s.enabled[tag]
}

// GP reports whether general-purpose register i is individually traced.
func (s *Set) GP(i int) bool {
	return s != nil && s.enabled[fmt.Sprintf("gp:%d", i)]
}

// Logf emits msg at debug level through the underlying logger, gated on
// tag, with zero-allocation-friendly early return when the tag is off.
func (s *Set) Logf(tag, msg string, args ...any) {
	if !s.On(tag) || s.log == nil {
		return
	}
	s.log.Debug(fmt.Sprintf(msg, args...))
}
