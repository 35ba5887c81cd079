package source

/*
 * MIPS-I simulator - assembler source file abstraction.
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

// Package source abstracts how the assembler resolves a .include path to
// bytes, so tests can supply an in-memory filesystem instead of touching
// disk.

import "os"

// Provider resolves a path named by .include to its contents.
type Provider interface {
	Resolve(path string) ([]byte, error)
}

// OSProvider resolves paths against the real filesystem.
type OSProvider struct{}

func (OSProvider) Resolve(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Map is a Provider backed by an in-memory set of named sources, used by
// assembler tests to exercise .include without a filesystem.
type Map map[string]string

func (m Map) Resolve(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(s), nil
}
