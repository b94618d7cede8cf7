package servercore

import "context"

// Run starts the supervised WebSocket listener on httpAddr and the
// supervised UDP loop on udpAddr, and blocks until ctx is cancelled.
// Both loops restart independently on transient failure (spec
// resilience rule); a panic in either underlying handler still
// propagates, since supervise does not recover.
func (s *ServerCore) Run(ctx context.Context, httpAddr, udpAddr string) {
	done := make(chan struct{}, 2)

	go func() {
		supervise(ctx, s.clock, "websocket", s.backoff, func(ctx context.Context) error {
			return s.serveHTTPListener(ctx, httpAddr)
		})
		done <- struct{}{}
	}()

	go func() {
		supervise(ctx, s.clock, "udp", s.backoff, func(ctx context.Context) error {
			return s.serveUDPListener(ctx, udpAddr)
		})
		done <- struct{}{}
	}()

	<-ctx.Done()
	<-done
	<-done
}
