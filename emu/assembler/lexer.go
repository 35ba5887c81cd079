package assembler

/*
 * MIPS-I simulator - assembler lexer.
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
	"unicode"
)

// tokKind identifies one lexical token inside an operand/expression.
type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokOp
	tokString
	tokChar
)

type token struct {
	kind tokKind
	text string
	num  int64
}

// lexer tokenizes one source line's worth of text: an operand list, a
// directive argument list, or a bare expression. Whitespace and commas
// split tokens; commas are themselves returned as tokens so callers can
// tell operand boundaries from expression text.
type lexer struct {
	src []rune
	pos int
}

func newLexer(s string) *lexer {
	return &lexer{src: []rune(s)}
}

func (l *lexer) peekByte() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

// next returns the next token, or tokEOF at end of input.
func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ","}, nil
	case c == '"':
		return l.lexString()
	case c == '\'':
		return l.lexChar()
	case unicode.IsDigit(c):
		return l.lexNumber()
	case c == '$' || c == '.' || c == '_' || unicode.IsLetter(c):
		return l.lexIdent()
	case strings.ContainsRune("+-*/%&|^~<>", c):
		return l.lexOp()
	default:
		return token{}, fmt.Errorf("unexpected character %q", c)
	}
}

func (l *lexer) lexOp() (token, error) {
	start := l.pos
	c := l.src[l.pos]
	l.pos++
	if (c == '<' || c == '>') && l.pos < len(l.src) && l.src[l.pos] == c {
		l.pos++
	}
	return token{kind: tokOp, text: string(l.src[start:l.pos])}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '$' || c == '.' {
			l.pos++
			continue
		}
		break
	}
	return token{kind: tokIdent, text: string(l.src[start:l.pos])}, nil
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if unicode.IsDigit(c) || unicode.IsLetter(c) {
			l.pos++
			continue
		}
		break
	}
	text := string(l.src[start:l.pos])
	n, err := parseNumber(text)
	if err != nil {
		return token{}, err
	}
	return token{kind: tokNumber, text: text, num: n}, nil
}

func (l *lexer) lexChar() (token, error) {
	l.pos++ // opening quote
	if l.pos >= len(l.src) {
		return token{}, fmt.Errorf("unterminated character literal")
	}
	c := l.src[l.pos]
	if c == '\\' {
		l.pos++
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("unterminated character literal")
		}
		c = unescape(l.src[l.pos])
	}
	l.pos++
	if l.pos >= len(l.src) || l.src[l.pos] != '\'' {
		return token{}, fmt.Errorf("unterminated character literal")
	}
	l.pos++
	return token{kind: tokChar, num: int64(c)}, nil
}

func (l *lexer) lexString() (token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("unterminated string literal")
		}
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return token{kind: tokString, text: sb.String()}, nil
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.src) {
				return token{}, fmt.Errorf("unterminated string literal")
			}
			sb.WriteRune(unescape(l.src[l.pos]))
			l.pos++
			continue
		}
		sb.WriteRune(c)
		l.pos++
	}
}

func unescape(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

// parseNumber accepts decimal, 0x hex, 0b binary and 0o/0 octal literals.
func parseNumber(text string) (int64, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "0x"):
		v, err := strconv.ParseUint(lower[2:], 16, 64)
		return int64(v), err
	case strings.HasPrefix(lower, "0b"):
		v, err := strconv.ParseUint(lower[2:], 2, 64)
		return int64(v), err
	case strings.HasPrefix(lower, "0o"):
		v, err := strconv.ParseUint(lower[2:], 8, 64)
		return int64(v), err
	case len(lower) > 1 && lower[0] == '0':
		v, err := strconv.ParseUint(lower[1:], 8, 64)
		return int64(v), err
	default:
		v, err := strconv.ParseInt(lower, 10, 64)
		return v, err
	}
}

// splitFields splits s on top-level whitespace, keeping a quoted string
// (for .ascii/.asciz) as a single field.
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '"' {
			inQuote = !inQuote
			cur.WriteRune(c)
			continue
		}
		if !inQuote && unicode.IsSpace(c) {
			flush()
			continue
		}
		cur.WriteRune(c)
	}
	flush()
	return fields
}
