package codec

import (
	"fmt"

	"github.com/vrrop/vrrop/internal/wire"
)

// Pool bounds how many encode/decode calls run at once, modeling the
// "blocking worker pool" ServerCore and ClientCore each dispatch onto
// rather than running codec work inline on a hot network loop.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a Pool that admits at most workers concurrent
// encode/decode calls; additional callers block until a slot frees up.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: make(chan struct{}, workers)}
}

func (p *Pool) acquire() { p.sem <- struct{}{} }
func (p *Pool) release() { <-p.sem }

// EncodeImages JPEG/PNG-compresses one correlated frame, blocking until
// a pool slot is free.
func (p *Pool) EncodeImages(msg wire.ImagesMessage, jpegQuality int) (wire.EncodedImagesMessage, error) {
	p.acquire()
	defer p.release()

	colorJPEG, err := EncodeColorImage(msg.Color, jpegQuality)
	if err != nil {
		return wire.EncodedImagesMessage{}, fmt.Errorf("codec: encode color: %w", err)
	}
	depthPNG, err := EncodeDepthImage(msg.Depth)
	if err != nil {
		return wire.EncodedImagesMessage{}, fmt.Errorf("codec: encode depth: %w", err)
	}

	return wire.EncodedImagesMessage{
		Odometry:        msg.Odometry,
		ColorIntrinsics: msg.Color.Intrinsics,
		DepthIntrinsics: msg.Depth.Intrinsics,
		DepthUnit:       msg.DepthUnit,
		ColorJPEG:       colorJPEG,
		DepthPNG:        depthPNG,
	}, nil
}

// DecodeImages inflates one wire frame back into raw pixel buffers,
// blocking until a pool slot is free.
func (p *Pool) DecodeImages(msg wire.EncodedImagesMessage) (wire.ImagesMessage, error) {
	p.acquire()
	defer p.release()

	color, err := DecodeColorImage(msg.ColorJPEG, msg.ColorIntrinsics)
	if err != nil {
		return wire.ImagesMessage{}, fmt.Errorf("codec: decode color: %w", err)
	}
	depth, err := DecodeDepthImage(msg.DepthPNG, msg.DepthIntrinsics)
	if err != nil {
		return wire.ImagesMessage{}, fmt.Errorf("codec: decode depth: %w", err)
	}

	return wire.ImagesMessage{
		Odometry:  msg.Odometry,
		Color:     color,
		Depth:     depth,
		DepthUnit: msg.DepthUnit,
	}, nil
}
