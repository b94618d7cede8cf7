package servercore

import (
	"log"

	"github.com/vrrop/vrrop/internal/codec"
	"github.com/vrrop/vrrop/internal/wire"
)

// PublishRawImages encodes one raw frame on pool and publishes the
// result, running the encode on its own goroutine so a slow codec call
// never blocks the capture subsystem that called this. Encode errors are
// logged and the frame is dropped, matching PublishImages' own
// drop-on-sanitization-failure behavior.
func (s *ServerCore) PublishRawImages(pool *codec.Pool, msg wire.ImagesMessage, jpegQuality int) {
	go func() {
		encoded, err := pool.EncodeImages(msg, jpegQuality)
		if err != nil {
			log.Printf("servercore: encode images frame: %v", err)
			return
		}
		s.PublishImages(encoded)
	}()
}
