package machine

/*
 * MIPS-I simulator - run expectation / exit code helper.
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

import "github.com/mipssim/core/emu/trap"

// Expectation implements the --expect-fail/--fail-match exit code
// rules, kept out of the CLI collaborator so it stays a thin
// argument-parsing wrapper rather than re-deriving trap classification
// on its own.
type Expectation struct {
	// ExpectFail requires a run to end in a trap of any kind.
	ExpectFail bool
	// FailMatch, when non-empty, requires the trap's FailMatchLetter to
	// be a member (one of "I", "A", "O", "J"). A non-empty FailMatch
	// implies ExpectFail.
	FailMatch map[string]bool
}

// NewFailMatch builds a FailMatch set from the --fail-match letters
// given on the command line.
func NewFailMatch(letters ...string) map[string]bool {
	m := make(map[string]bool, len(letters))
	for _, l := range letters {
		m[l] = true
	}
	return m
}

// ExitCode reports the process exit code for a run that ended with tr
// (nil if it ran to halt/budget without faulting).
func (e Expectation) ExitCode(tr *trap.Trap) int {
	if len(e.FailMatch) > 0 {
		if tr != nil && e.FailMatch[tr.Kind.FailMatchLetter()] {
			return 0
		}
		return 1
	}
	if e.ExpectFail {
		if tr != nil {
			return 0
		}
		return 1
	}
	if tr != nil {
		return 1
	}
	return 0
}
