package clientcore

import (
	"context"
	"log"

	"github.com/coder/websocket"

	"github.com/vrrop/vrrop/internal/wire"
)

// runWSReader decodes each incoming binary message as an
// EncodedImagesMessage, inflates it on the codec pool, and invokes
// on_images. It returns on the first read or decode-level connection
// error.
func (c *Client) runWSReader(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		encoded, err := wire.DecodeEncodedImagesMessage(data)
		if err != nil {
			log.Printf("clientcore: malformed images message: %v", err)
			continue
		}

		msg, err := c.codecPool.DecodeImages(encoded)
		if err != nil {
			log.Printf("clientcore: decode images frame: %v", err)
			continue
		}

		c.recordImageStats(msg.Odometry.StampUnixNanos, uint32(len(data)), c.latencyFor(msg.Odometry.StampUnixNanos))

		if c.onImages != nil {
			c.onImages(msg)
		}
	}
}

// runCommandSender drains the outbound Command queue and writes each one
// as a binary WebSocket message.
func (c *Client) runCommandSender(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.outbound:
			payload := wire.EncodeCommand(cmd)
			if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
				return err
			}
		}
	}
}
