package clientcore

import (
	"context"
	"log"
	"net"

	"github.com/coder/websocket"
)

// Run connects to the target and stays connected until ctx is cancelled,
// reconnecting with Client's configured backoff after any failure.
func (c *Client) Run(ctx context.Context) {
	supervise(ctx, c.clock, "clientcore connect", c.backoff, c.runOnce)
}

// runOnce binds one UDP socket and one WebSocket to the target, runs all
// four sub-tasks concurrently, and returns when any of them errors or ctx
// is cancelled.
func (c *Client) runOnce(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", c.target)
	if err != nil {
		return err
	}
	udpConn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return err
	}
	defer udpConn.Close()

	wsConn, _, err := websocket.Dial(ctx, "ws://"+c.target, nil)
	if err != nil {
		return err
	}
	defer wsConn.CloseNow()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 4)
	go func() { errs <- c.runWSReader(runCtx, wsConn) }()
	go func() { errs <- c.runCommandSender(runCtx, wsConn) }()
	go func() { errs <- c.runUDPReceiver(runCtx, udpConn) }()
	go func() { errs <- c.runPinger(runCtx, udpConn) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		if err != nil {
			log.Printf("clientcore: connection to %s failed: %v", c.target, err)
		}
		return err
	}
}
