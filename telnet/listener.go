/*
 * MIPS-I simulator - telnet console server, listener.
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
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Server owns one listening port and at most one connected console
// client. Bytes typed by the client are delivered to the sink; Send
// writes simulator output back to the client.
type Server struct {
	wg         sync.WaitGroup
	listener   net.Listener
	shutdown   chan struct{}
	connection chan net.Conn
	sink       func(byte)
	port       string

	mu     sync.Mutex
	client *tnState
}

// Start listens on port and delivers every data byte a client types to
// sink. sink is called from the connection's reader goroutine, so it
// must be safe to call concurrently with the simulation.
func Start(port string, sink func(byte)) (*Server, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	s := &Server{
		listener:   listener,
		shutdown:   make(chan struct{}),
		connection: make(chan net.Conn),
		sink:       sink,
		port:       port,
	}

	host, lport, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		panic(err)
	}
	if host == "::" {
		host = "localhost"
	}
	slog.Info("Console server started on " + host + ":" + lport)

	s.wg.Add(2)
	go s.acceptConnections()
	go s.handleConnections()
	return s, nil
}

// Send writes simulator output bytes to the connected client, if any.
// Output with no client attached is discarded, same as an unplugged
// terminal.
func (s *Server) Send(data []byte) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil {
		client.send(data)
	}
}

// Stop shuts the listener down and waits up to a second for the accept
// and dispatch goroutines to exit. An attached client connection is
// neither closed nor waited for.
func (s *Server) Stop() {
	slog.Info("Shutdown console port: " + s.port)

	close(s.shutdown)
	s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("Timed out waiting for console connection to finish on port: " + s.port)
	}
}

// Accept a connection.
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				continue
			}
			s.connection <- conn
		}
	}
}

// Start processing for a new connection. Only one console client may be
// attached; later connections are turned away.
func (s *Server) handleConnections() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		case conn := <-s.connection:
			s.mu.Lock()
			busy := s.client != nil
			if !busy {
				s.client = newClient(conn, s.sink)
			}
			s.mu.Unlock()

			if busy {
				fmt.Fprintf(conn, "console busy\r\n")
				conn.Close()
				continue
			}
			go func() {
				s.client.run()
				s.mu.Lock()
				s.client = nil
				s.mu.Unlock()
			}()
		}
	}
}
