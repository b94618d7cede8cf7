package servercore

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/vrrop/vrrop/internal/wire"
)

type udpClient struct {
	addr     *net.UDPAddr
	lastSeen time.Time
}

func (s *ServerCore) touchClient(addr *net.UDPAddr) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[addr.String()] = udpClient{addr: addr, lastSeen: s.clock.Now()}
}

// evictStaleClients drops every client not seen in the last 5 seconds
// and returns the addresses of those that remain.
func (s *ServerCore) evictStaleClients() []*net.UDPAddr {
	now := s.clock.Now()
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	live := make([]*net.UDPAddr, 0, len(s.clients))
	for key, c := range s.clients {
		if now.Sub(c.lastSeen) > udpClientTimeout {
			delete(s.clients, key)
			continue
		}
		live = append(live, c.addr)
	}
	return live
}

// ServeUDP runs the data-plane UDP loop on an already-bound socket:
// concurrently it receives datagrams (Ping replies with Pong, any
// message updates the client table) and forwards broadcast odometry to
// every client seen within the last 5 seconds. It returns when ctx is
// cancelled or the socket errors.
func (s *ServerCore) ServeUDP(ctx context.Context, conn *net.UDPConn) error {
	sub, unsubscribe := s.odometry.subscribe()
	defer unsubscribe()

	recvErrs := make(chan error, 1)
	go s.recvUDP(conn, recvErrs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-recvErrs:
			return err
		case odom, ok := <-sub:
			if !ok {
				return nil
			}
			s.fanOutOdometry(conn, odom)
		}
	}
}

func (s *ServerCore) fanOutOdometry(conn *net.UDPConn, odom wire.Odometry) {
	live := s.evictStaleClients()
	if len(live) == 0 {
		return
	}

	payload := wire.EncodeUDPServerMessage(wire.UDPServerMessage{
		Kind:     wire.UDPServerOdometry,
		Odometry: odom,
	})

	for _, addr := range live {
		if _, err := conn.WriteToUDP(payload, addr); err != nil {
			log.Printf("servercore: write odometry to %s: %v", addr, err)
		}
	}
}

func (s *ServerCore) recvUDP(conn *net.UDPConn, errs chan<- error) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			errs <- err
			return
		}
		s.touchClient(addr)

		msg, err := wire.DecodeUDPClientMessage(buf[:n])
		if err != nil {
			log.Printf("servercore: malformed udp datagram from %s: %v", addr, err)
			continue
		}

		if msg.Kind == wire.UDPClientPing {
			s.replyPong(conn, addr, msg.Ping)
		}
	}
}

func (s *ServerCore) replyPong(conn *net.UDPConn, addr *net.UDPAddr, ping wire.PingMessage) {
	pong := wire.UDPServerMessage{
		Kind: wire.UDPServerPong,
		Pong: wire.PongMessage{
			ClientTimeUnixNanos: ping.ClientTimeUnixNanos,
			ServerTimeUnixNanos: s.clock.Now().UnixNano(),
		},
	}
	payload := wire.EncodeUDPServerMessage(pong)
	if _, err := conn.WriteToUDP(payload, addr); err != nil {
		log.Printf("servercore: write pong to %s: %v", addr, err)
	}
}

// serveUDPListener binds addr and runs ServeUDP until ctx is cancelled
// or the socket errors. Meant to run under supervise.
func (s *ServerCore) serveUDPListener(ctx context.Context, addr string) error {
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

	return s.ServeUDP(ctx, conn)
}
