package clientcore

import (
	"context"
	"log"
	"net"

	"github.com/vrrop/vrrop/internal/wire"
)

const udpReadBufferSize = 2048

// runUDPReceiver parses each datagram as a UDPServerMessage. Odometry
// samples are handed to on_odometry; Pong replies update the clock
// offset estimate. It returns on the first socket read error.
func (c *Client) runUDPReceiver(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, udpReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, err := wire.DecodeUDPServerMessage(buf[:n])
		if err != nil {
			log.Printf("clientcore: malformed udp server message: %v", err)
			continue
		}

		switch msg.Kind {
		case wire.UDPServerOdometry:
			latency := c.latencyFor(msg.Odometry.StampUnixNanos)
			c.recordOdometryStats(msg.Odometry.StampUnixNanos, uint32(n), latency)
			if c.onOdometry != nil {
				c.onOdometry(msg.Odometry)
			}
		case wire.UDPServerPong:
			c.handlePong(msg.Pong)
		}
	}
}

// handlePong re-estimates the clock offset from one Ping/Pong round
// trip: rtt = t1 - t0, offset = s - (t1 - rtt/2).
func (c *Client) handlePong(pong wire.PongMessage) {
	t0 := pong.ClientTimeUnixNanos
	t1 := c.clock.Now().UnixNano()
	s := pong.ServerTimeUnixNanos

	rtt := t1 - t0
	offset := s - (t1 - rtt/2)
	c.offset.update(offset)
}

// runPinger sends a Ping with the current client wall-clock every
// PingInterval.
func (c *Client) runPinger(ctx context.Context, conn *net.UDPConn) error {
	ticker := c.clock.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			ping := wire.EncodeUDPClientMessage(wire.UDPClientMessage{
				Kind: wire.UDPClientPing,
				Ping: wire.PingMessage{ClientTimeUnixNanos: c.clock.Now().UnixNano()},
			})
			if _, err := conn.Write(ping); err != nil {
				return err
			}
		}
	}
}
