package assembler

/*
 * MIPS-I simulator - assembler expression evaluator.
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

// symResolver looks up a label or .equ/.set constant's value. ok is false
// for an undefined symbol; during pass 1 undefined forward references are
// tolerated (see exprEval.pass1), during pass 2 they are an error.
type symResolver func(name string) (value int64, ok bool)

// precedence table, lowest to highest, following C/MIPS-assembler
// convention: logical-or-ish bitwise ops bind loosest, multiplicative
// tightest. Unary -, ~, + bind tighter than any binary operator.
var binPrec = map[string]int{
	"|":  1,
	"^":  2,
	"&":  3,
	"<<": 4, ">>": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

// exprEval evaluates one expression from a token stream using precedence
// climbing. pass1 relaxes undefined-symbol errors to a zero value so that
// pass 1 can size every directive/instruction before every label exists.
type exprEval struct {
	toks    []token
	pos     int
	resolve symResolver
	pass1   bool
	undef   bool // set if pass1 had to guess an undefined symbol as zero
}

func newExprEval(toks []token, resolve symResolver, pass1 bool) *exprEval {
	return &exprEval{toks: toks, resolve: resolve, pass1: pass1}
}

func (e *exprEval) peek() token {
	if e.pos >= len(e.toks) {
		return token{kind: tokEOF}
	}
	return e.toks[e.pos]
}

func (e *exprEval) advance() token {
	t := e.peek()
	e.pos++
	return t
}

// eval parses a full expression and returns its value. It does not check
// that the whole token stream was consumed; evalExpr does that.
func (e *exprEval) eval() (int64, error) {
	v, err := e.parseBin(0)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (e *exprEval) parseBin(minPrec int) (int64, error) {
	lhs, err := e.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		t := e.peek()
		if t.kind != tokOp {
			break
		}
		prec, ok := binPrec[t.text]
		if !ok || prec < minPrec {
			break
		}
		e.advance()
		rhs, err := e.parseBin(prec + 1)
		if err != nil {
			return 0, err
		}
		lhs, err = applyBin(t.text, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
	return lhs, nil
}

func applyBin(op string, a, b int64) (int64, error) {
	switch op {
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "<<":
		return a << uint(b), nil
	case ">>":
		return a >> uint(b), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a % b, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}
}

func (e *exprEval) parseUnary() (int64, error) {
	t := e.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "~" || t.text == "+") {
		e.advance()
		v, err := e.parseUnary()
		if err != nil {
			return 0, err
		}
		switch t.text {
		case "-":
			return -v, nil
		case "~":
			return ^v, nil
		default:
			return v, nil
		}
	}
	return e.parsePrimary()
}

func (e *exprEval) parsePrimary() (int64, error) {
	t := e.advance()
	switch t.kind {
	case tokNumber, tokChar:
		return t.num, nil
	case tokLParen:
		v, err := e.parseBin(0)
		if err != nil {
			return 0, err
		}
		if e.advance().kind != tokRParen {
			return 0, fmt.Errorf("expected )")
		}
		return v, nil
	case tokIdent:
		if t.text == "." {
			v, _ := e.resolve(".")
			return v, nil
		}
		v, ok := e.resolve(t.text)
		if !ok {
			if e.pass1 {
				e.undef = true
				return 0, nil
			}
			return 0, fmt.Errorf("undefined symbol %q", t.text)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected token %q in expression", t.text)
	}
}

// evalExpr tokenizes text and evaluates it as one expression, consuming
// every token. resolve answers symbol lookups; pass1 tolerates undefined
// symbols by treating them as zero and reporting undef.
func evalExpr(text string, resolve symResolver, pass1 bool) (value int64, undef bool, err error) {
	l := newLexer(text)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return 0, false, err
		}
		if t.kind == tokEOF {
			break
		}
		toks = append(toks, t)
	}
	ev := newExprEval(toks, resolve, pass1)
	v, err := ev.eval()
	if err != nil {
		return 0, false, err
	}
	if ev.pos != len(ev.toks) {
		return 0, false, fmt.Errorf("unexpected trailing tokens in expression %q", text)
	}
	return v, ev.undef, nil
}
