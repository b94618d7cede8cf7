package servercore

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/vrrop/vrrop/internal/wire"
)

// ServeWS upgrades one HTTP request to a WebSocket subscriber: it
// forwards every broadcast images frame as a binary message and
// dispatches every inbound message to the on_command callback as a
// Command. The two directions run concurrently; an error on either one
// closes this connection without affecting other clients.
func (s *ServerCore) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("servercore: websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sessionID := s.recordConnect(r.RemoteAddr)
	defer s.recordDisconnect(sessionID, "connection closed")

	sub, unsubscribe := s.images.subscribe()
	defer unsubscribe()

	readErrs := make(chan error, 1)
	go s.readCommands(ctx, conn, readErrs)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case err := <-readErrs:
			if err != nil {
				conn.Close(websocket.StatusProtocolError, "read error")
			}
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			payload := wire.EncodeEncodedImagesMessage(msg)
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageBinary, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// readCommands blocks reading inbound WebSocket messages until the
// connection errors or closes, dispatching each one as a Command.
func (s *ServerCore) readCommands(ctx context.Context, conn *websocket.Conn, errs chan<- error) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			errs <- err
			return
		}
		cmd, err := wire.DecodeCommand(data)
		if err != nil {
			log.Printf("servercore: malformed command: %v", err)
			continue
		}
		if s.onCommand != nil {
			s.onCommand(cmd)
		}
	}
}

// serveHTTPListener binds addr and serves WebSocket upgrades until ctx
// is cancelled or the listener errors. It is meant to be run under
// supervise so a transient bind/accept failure restarts the listener
// after a backoff.
func (s *ServerCore) serveHTTPListener(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: http.HandlerFunc(s.ServeWS)}
	serveErrs := make(chan error, 1)
	go func() { serveErrs <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		_ = srv.Close()
		<-serveErrs
		return nil
	case err := <-serveErrs:
		return err
	}
}
