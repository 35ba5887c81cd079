/*
 * MIPS-I simulator - telnet console server.
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

// Package telnet serves the serial console to an ordinary telnet
// client: the server negotiates a raw character-at-a-time session,
// strips protocol sequences from the inbound stream, and hands the
// remaining data bytes to the attached sink one at a time.
package telnet

import (
	"net"
)

// Telnet protocol constants.
const (
	tnIAC  byte = 255 // protocol delim
	tnDONT byte = 254 // dont
	tnDO   byte = 253 // do
	tnWONT byte = 252 // wont
	tnWILL byte = 251 // will
	tnSB   byte = 250 // Sub negotiations begin
	tnBRK  byte = 243 // break
	tnSE   byte = 240 // Sub negotiations end

	// Telnet line states.

	tnStateData int = 1 + iota // normal
	tnStateIAC                 // IAC seen
	tnStateWILL                // WILL seen
	tnStateDO                  // DO seen
	tnStateDONT                // DONT seen
	tnStateWONT                // WONT seen
	tnStateSKIP                // skip next cmd
	tnStateSB                  // Start of SB
	tnStateSE                  // Waiting for SE

	// Telnet options.
	tnOptionBinary byte = 0  // Binary data transfer
	tnOptionEcho   byte = 1  // Echo
	tnOptionSGA    byte = 3  // Send Go Ahead
	tnOptionLINE   byte = 34 // line mode

	// Telnet flags.
	tnFlagDo   uint8 = 0x01 // Do received
	tnFlagDont uint8 = 0x02 // Don't received
	tnFlagWill uint8 = 0x04 // Will received
	tnFlagWont uint8 = 0x08 // Wont received
)

// initString asks the client for a raw binary character session: the
// server echoes nothing and the client sends every keystroke as typed.
var initString = []byte{
	tnIAC, tnWONT, tnOptionLINE,
	tnIAC, tnWILL, tnOptionEcho,
	tnIAC, tnWILL, tnOptionSGA,
	tnIAC, tnWILL, tnOptionBinary,
}

// tnState tracks the protocol state of one connected console client.
type tnState struct {
	optionState [256]uint8 // Negotiation state per option
	state       int        // Current line state
	conn        net.Conn   // Client connection.
	sink        func(byte) // Where stripped data bytes go.
}

func newClient(conn net.Conn, sink func(byte)) *tnState {
	return &tnState{conn: conn, state: tnStateData, sink: sink}
}

// send writes simulator output to the client, doubling any data byte
// that collides with IAC.
func (state *tnState) send(data []byte) {
	out := make([]byte, 0, len(data))
	for _, by := range data {
		if by == tnIAC {
			out = append(out, tnIAC)
		}
		out = append(out, by)
	}
	_, _ = state.conn.Write(out)
}

// Send a negotiation response and record what we sent.
func (state *tnState) sendOption(setState, option byte) {
	data := []byte{tnIAC, setState, option}
	_, _ = state.conn.Write(data)
	switch setState {
	case tnWILL:
		state.optionState[option] |= tnFlagWill
	case tnWONT:
		state.optionState[option] |= tnFlagWont
	case tnDO:
		state.optionState[option] |= tnFlagDo
	case tnDONT:
		state.optionState[option] |= tnFlagDont
	}
}

// Handle DO response.
func (state *tnState) handleDO(input byte) {
	switch input {
	case tnOptionEcho, tnOptionSGA, tnOptionBinary:
		// We offered these in initString; a DO just confirms them.
		state.optionState[input] |= tnFlagDo
	default:
		if (state.optionState[input] & tnFlagWont) == 0 {
			state.sendOption(tnWONT, input)
		}
	}
}

// Handle WILL response.
func (state *tnState) handleWILL(input byte) {
	switch input {
	case tnOptionBinary, tnOptionSGA:
		if (state.optionState[input] & tnFlagDo) == 0 {
			state.sendOption(tnDO, input)
		}
	default:
		if (state.optionState[input] & tnFlagDont) == 0 {
			state.sendOption(tnDONT, input)
		}
	}
}

// run reads the connection until it closes, stripping telnet protocol
// and feeding data bytes to the sink.
func (state *tnState) run() {
	defer state.conn.Close()

	_, _ = state.conn.Write(initString)
	buffer := make([]byte, 1024)
	for {
		num, err := state.conn.Read(buffer)
		if err != nil {
			return
		}
		for i := 0; i < num; i++ {
			input := buffer[i]
			switch state.state {
			case tnStateData: // normal
				if input == tnIAC {
					state.state = tnStateIAC
				} else {
					state.sink(input)
				}

			case tnStateIAC: // IAC seen
				switch input {
				case tnIAC:
					// Doubled IAC is a literal data byte.
					state.sink(input)
					state.state = tnStateData
				case tnBRK:
					state.state = tnStateData
				case tnWILL:
					state.state = tnStateWILL
				case tnWONT:
					state.state = tnStateWONT
				case tnDO:
					state.state = tnStateDO
				case tnDONT:
					state.state = tnStateDONT
				case tnSB:
					state.state = tnStateSB
				default:
					state.state = tnStateSKIP
				}

			case tnStateWILL: // WILL seen
				state.handleWILL(input)
				state.state = tnStateData

			case tnStateWONT: // WONT seen
				if (state.optionState[input] & tnFlagWont) == 0 {
					state.sendOption(tnWONT, input)
				}
				state.state = tnStateData

			case tnStateDO: // DO seen
				state.handleDO(input)
				state.state = tnStateData

			case tnStateDONT:
				state.state = tnStateData

			case tnStateSKIP: // skip next cmd
				state.state = tnStateData

			case tnStateSB: // inside subnegotiation, wait for IAC SE
				if input == tnIAC {
					state.state = tnStateSE
				}

			case tnStateSE:
				if input == tnSE {
					state.state = tnStateData
				} else if input != tnIAC {
					state.state = tnStateSB
				}
			}
		}
	}
}
