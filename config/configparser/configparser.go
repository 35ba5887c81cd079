/*
 * MIPS-I simulator - configuration file parser
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

// Package configparser reads a line-oriented machine configuration file.
// A line names either a peripheral model placed at a base address
// ("serial ffff0000 port=2700"), an option carrying one value
// ("readtime 10", "icache lru,64,4,2,wb"), or a bare switch
// ("pipelined"). The parser knows no model or option by itself:
// peripherals and the CLI register handlers under a name via
// RegisterModel/RegisterOption/RegisterSwitch, and each parsed line is
// dispatched to whatever registered under its first word.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// NoAddr is passed to an option handler whose line carried a plain
// value rather than a hex base address.
const NoAddr uint32 = 0xffffffff

// Option is one "name", "name=value" or "name=value,extra,..." group
// following the first operand of a line.
type Option struct {
	Name     string   // Option name.
	EqualOpt string   // Value of string after =.
	Value    []string // Comma list following the value.
}

// Line types a name can register as.
const (
	TypeModel  = 1 + iota // Peripheral at a base address.
	TypeOption            // Option taking one value operand.
	TypeSwitch            // Bare flag, no operands.
)

// first operand of a line: a hex base address or a plain word.
type firstOperand struct {
	addr   uint32 // Parsed base address if isAddr.
	isAddr bool
	value  string // Raw text of the operand.
}

// Current option line being parsed.
type optionLine struct {
	line string
	pos  int
}

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <model> <whitespace> <address> *(<option>) |
 *           <option-name> <whitespace> <operand> |
 *           <switch-name>
 * <model> := <string>
 * <address> ::= <hexnumber>
 * <option> ::= <string> ['=' <quoteopt>] *(',' <string>)
 * <quoteopt> ::= <string> | '"' *(<letter> | <whitespace>) '"'
 * <string> ::= *(<letter> | <number>)
 */

type handlerDef struct {
	create func(addr uint32, value string, opts []Option) error
	ty     int
}

var handlers = map[string]handlerDef{}

var lineNumber int

// Return type registered under name, or 0 if none.
func getType(name string) int {
	h, ok := handlers[name]
	if !ok {
		return 0
	}
	return h.ty
}

// RegisterModel binds a peripheral create function to a model name.
// Should be called from init functions.
func RegisterModel(name string, ty int, fn func(uint32, string, []Option) error) {
	handlers[strings.ToUpper(name)] = handlerDef{create: fn, ty: ty}
}

// RegisterSwitch binds a bare flag name. Should be called from init
// functions or CLI setup.
func RegisterSwitch(name string, fn func(uint32, string, []Option) error) {
	handlers[strings.ToUpper(name)] = handlerDef{create: fn, ty: TypeSwitch}
}

// RegisterOption binds an option name taking one value operand.
func RegisterOption(name string, fn func(uint32, string, []Option) error) {
	handlers[strings.ToUpper(name)] = handlerDef{create: fn, ty: TypeOption}
}

// Unregister removes a registered name, letting one CLI invocation's
// handlers be torn down before another registers its own.
func Unregister(name string) {
	delete(handlers, strings.ToUpper(name))
}

func createModel(name string, first *firstOperand, options []Option) error {
	h := handlers[strings.ToUpper(name)]
	return h.create(first.addr, first.value, options)
}

func createOption(name string, first *firstOperand, options []Option) error {
	h := handlers[strings.ToUpper(name)]
	if first.isAddr {
		return h.create(first.addr, first.value, options)
	}
	return h.create(NoAddr, first.value, options)
}

func createSwitch(name string) error {
	h := handlers[strings.ToUpper(name)]
	return h.create(NoAddr, "", nil)
}

// LoadConfigFile reads and dispatches every line of the named file.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return Load(file)
}

// Load reads and dispatches every line from r. The first failing line
// stops the load.
func Load(r io.Reader) error {
	lineNumber = 0
	reader := bufio.NewReader(r)
	for {
		var err error

		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		err = line.parseLine()
		if err != nil {
			return err
		}
	}
	return nil
}

// Parse one line from file.
func (line *optionLine) parseLine() error {
	name := line.parseName()
	if name == "" {
		return nil
	}
	switch getType(name) {
	case TypeModel:
		// Get base address.
		first := line.parseFirst()
		if first == nil || !first.isAddr {
			return fmt.Errorf("device %s requires base address, line: %d", name, lineNumber)
		}
		// Get any remaining options.
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createModel(name, first, options)

	case TypeOption:
		first := line.parseFirst()
		if first == nil {
			return fmt.Errorf("option %s not followed by value, line: %d", name, lineNumber)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createOption(name, first, options)

	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return fmt.Errorf("switch %s followed by operands, line: %d", name, lineNumber)
		}
		return createSwitch(name)

	default:
		return fmt.Errorf("nothing registered under %s, line: %d", name, lineNumber)
	}
}

// Skip forward over line until none whitespace character found.
func (line *optionLine) skipSpace() {
	for {
		if line.pos >= len(line.line) {
			return
		}
		if unicode.IsSpace(rune(line.line[line.pos])) {
			line.pos++
			continue
		}
		return
	}
}

// Check if at end of line.
func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	if line.line[line.pos] == '#' {
		return true
	}
	return false
}

// Return next letter or digit in line. 0 if EOL or space.
func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || inQuote {
		return by
	}
	return 0
}

// Peek at next character.
func (line *optionLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// parseName grabs the leading word of a line, upper-cased for handler
// lookup. Empty if the line is blank or a comment.
func (line *optionLine) parseName() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}

	name := ""
	for {
		if line.isEOL() {
			break
		}
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) {
			name += string([]byte{by})
			line.pos++
			continue
		}
		break
	}
	return strings.ToUpper(name)
}

// parseFirst grabs the operand after the name, including any comma
// tuple ("lru,64,4,2,wb"); a plain string of hex digits also parses as
// a 32-bit base address.
func (line *optionLine) parseFirst() *firstOperand {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	value := ""
	for {
		if line.isEOL() {
			break
		}
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || by == ',' {
			value += string([]byte{by})
			line.pos++
			continue
		}
		break
	}

	first := firstOperand{value: value}
	addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(value), "0x"), 16, 32)
	if err == nil {
		first.addr = uint32(addr)
		first.isAddr = true
	}
	return &first
}

// Parse string that is "string" or just string.
func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	// If quote, set we are in quoted string
	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext(true)
	}

	for {
		by := line.getNext(inQuote)
		// If processing a quoted string "" gets replaced by single quote
		if by == '"' && inQuote {
			by = line.getNext(inQuote)
			if by != '"' {
				// Hit end of string.
				return value, true
			}
		}

		space := unicode.IsSpace(rune(by))
		// Space or comma terminates a non-quoted string.
		if !inQuote && (space || by == 0 || by == ',') {
			return value, true
		}

		value += string(by)
		// If we hit end of line, stop processing.
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// Parse option name.
func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}

	// First character must be alphanumeric.
	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) && !unicode.IsNumber(rune(by)) {
		return "", fmt.Errorf("invalid option encountered line: %d [%d]", lineNumber, line.pos)
	}
	value := ""

	// Grab until not letter or number.
	for {
		value += string([]byte{by})
		by = line.getNext(false)
		if by == 0 {
			break
		}
	}

	return value, nil
}

// Parse one option group for a line.
func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()

	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}

	if line.isEOL() {
		return &option, nil
	}

	// Check if equals option.
	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, fmt.Errorf("invalid quoted string line: %d [%d]", lineNumber, line.pos)
		}
		option.EqualOpt = v
	}

	line.skipSpace()

	// Grab all , options
	for !line.isEOL() && line.line[line.pos] == ',' {
		line.pos++ // Skip comma
		line.skipSpace()
		v, err := line.getName()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, v)
		}
		line.skipSpace()
	}

	return &option, nil
}

// Collect all options for line.
func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
	}
	return options, nil
}
