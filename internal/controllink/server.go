// Package controllink implements VRROP's teleop channel: a UDP-only
// service, independent of ServerCore's data plane, that parses
// ControlMessage datagrams and dispatches them to a callback. There is
// no acknowledgment or retry; the caller is expected to send at a duty
// cycle of at least 10 Hz and accept silent loss (spec §4.8).
package controllink

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

const defaultReconnectBackoff = time.Second
const udpReadBufferSize = 32

// Server receives ControlMessage datagrams and dispatches each decoded
// message to OnMessage. Decode errors are logged and the datagram
// dropped; they never terminate the server.
type Server struct {
	clock     timeutil.Clock
	backoff   time.Duration
	onMessage func(wire.ControlMessage)
}

// Option configures a Server at construction.
type Option func(*Server)

// WithClock overrides the clock used for the listener's restart backoff.
func WithClock(clock timeutil.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithReconnectBackoff overrides the delay after a transient listener
// failure before rebinding.
func WithReconnectBackoff(d time.Duration) Option {
	return func(s *Server) { s.backoff = d }
}

// WithOnMessage registers the callback invoked with every decoded
// ControlMessage.
func WithOnMessage(fn func(wire.ControlMessage)) Option {
	return func(s *Server) { s.onMessage = fn }
}

// New constructs a Server.
func New(opts ...Option) *Server {
	s := &Server{clock: timeutil.RealClock{}, backoff: defaultReconnectBackoff}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads datagrams from an already-bound socket until ctx is
// cancelled or the socket errors.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, udpReadBufferSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, err := wire.DecodeControlMessage(buf[:n])
		if err != nil {
			log.Printf("controllink: malformed datagram from %s: %v", addr, err)
			continue
		}

		if s.onMessage != nil {
			s.onMessage(msg)
		}
	}
}

// listen binds addr and runs Serve until ctx is cancelled or the socket
// errors. Meant to run under supervise.
func (s *Server) listen(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return s.Serve(ctx, conn)
}

// Run binds addr and serves until ctx is cancelled, rebinding after a
// backoff if the listener fails.
func (s *Server) Run(ctx context.Context, addr string) {
	supervise(ctx, s.clock, "controllink listen", s.backoff, func(ctx context.Context) error {
		return s.listen(ctx, addr)
	})
}
