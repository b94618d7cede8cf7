package controllink

import (
	"net"

	"github.com/vrrop/vrrop/internal/wire"
)

// Client sends ControlMessage datagrams to one server. There is no
// acknowledgment, retry, or connection state beyond the bound socket;
// Send is fire-and-forget.
type Client struct {
	conn *net.UDPConn
}

// Dial binds an ephemeral UDP socket connected to addr.
func Dial(addr string) (*Client, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Send transmits one ControlMessage.
func (c *Client) Send(msg wire.ControlMessage) error {
	_, err := c.conn.Write(wire.EncodeControlMessage(msg))
	return err
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
