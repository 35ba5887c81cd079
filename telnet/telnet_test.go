/*
 * MIPS-I simulator - telnet console server test set.
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

package telnet

import (
	"net"
	"sync"
	"testing"
	"time"
)

// runClient feeds input through a pipe into a client state machine and
// returns the data bytes that reached the sink once the connection
// closes.
func runClient(t *testing.T, input []byte) []byte {
	t.Helper()

	server, client := net.Pipe()
	var mu sync.Mutex
	var got []byte
	state := newClient(server, func(b byte) {
		mu.Lock()
		got = append(got, b)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		state.run()
		close(done)
	}()

	// Drain everything the server writes (negotiation traffic) so its
	// writes never block the pipe.
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	if _, err := client.Write(input); err != nil {
		t.Fatalf("writing client input: %v", err)
	}
	client.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client state machine did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	return got
}

func TestPlainDataReachesSink(t *testing.T) {
	got := runClient(t, []byte("hi"))
	if string(got) != "hi" {
		t.Errorf("sink got %q, want \"hi\"", got)
	}
}

func TestNegotiationIsStripped(t *testing.T) {
	input := []byte{
		tnIAC, tnDO, tnOptionEcho,
		'a',
		tnIAC, tnWILL, tnOptionSGA,
		'b',
	}
	got := runClient(t, input)
	if string(got) != "ab" {
		t.Errorf("sink got %q, want \"ab\"", got)
	}
}

func TestDoubledIACIsLiteral(t *testing.T) {
	got := runClient(t, []byte{'x', tnIAC, tnIAC, 'y'})
	want := []byte{'x', tnIAC, 'y'}
	if string(got) != string(want) {
		t.Errorf("sink got %v, want %v", got, want)
	}
}

func TestSubnegotiationIsSkipped(t *testing.T) {
	input := []byte{
		'a',
		tnIAC, tnSB, 24, 0, 'v', 't', tnIAC, tnSE,
		'b',
	}
	got := runClient(t, input)
	if string(got) != "ab" {
		t.Errorf("sink got %q, want \"ab\"", got)
	}
}

func TestSendDoublesIAC(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	state := newClient(server, func(byte) {})

	var got []byte
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 16)
		n, _ := client.Read(buf)
		got = buf[:n]
		close(done)
	}()

	state.send([]byte{'a', tnIAC, 'b'})
	<-done

	want := []byte{'a', tnIAC, tnIAC, 'b'}
	if string(got) != string(want) {
		t.Errorf("client read %v, want %v", got, want)
	}
}
