// Package codec implements VRROP's image wire compression: JPEG for
// color frames, PNG for 16-bit depth frames, run through a bounded
// worker pool so encode/decode never blocks more than a fixed number of
// frames at a time.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/vrrop/vrrop/internal/wire"
)

// rgbImage adapts a row-major 8-bit RGB pixel buffer to image.Image
// without a copy, so jpeg.Encode can read directly from wire.ColorImage's
// own buffer.
type rgbImage struct {
	pix           []byte
	width, height int
}

func (m *rgbImage) ColorModel() color.Model { return color.RGBAModel }
func (m *rgbImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }
func (m *rgbImage) At(x, y int) color.Color {
	i := (y*m.width + x) * 3
	return color.RGBA{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2], A: 255}
}

// EncodeColorImage JPEG-compresses a color frame at the given quality
// (expected in [1,100]; see Config.JPEGQualityOrDefault).
func EncodeColorImage(img wire.ColorImage, quality int) ([]byte, error) {
	w, h := int(img.Intrinsics.Width), int(img.Intrinsics.Height)
	if len(img.Pixels) != w*h*3 {
		return nil, fmt.Errorf("codec: color pixel buffer length %d does not match %dx%d", len(img.Pixels), w, h)
	}

	var buf bytes.Buffer
	src := &rgbImage{pix: img.Pixels, width: w, height: h}
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("codec: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeColorImage inflates a JPEG frame back into a row-major RGB
// buffer. intrinsics is carried through from the encoded message
// unchanged; it is not re-derived from the decoded image dimensions.
func DecodeColorImage(data []byte, intrinsics wire.CameraIntrinsics) (wire.ColorImage, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return wire.ColorImage{}, fmt.Errorf("codec: jpeg decode: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			pixels[i] = uint8(r >> 8)
			pixels[i+1] = uint8(g >> 8)
			pixels[i+2] = uint8(b >> 8)
		}
	}
	return wire.ColorImage{Intrinsics: intrinsics, Pixels: pixels}, nil
}

// EncodeDepthImage PNG-compresses a 16-bit depth frame as a Gray16
// image, losslessly.
func EncodeDepthImage(img wire.DepthImage) ([]byte, error) {
	w, h := int(img.Intrinsics.Width), int(img.Intrinsics.Height)
	if len(img.Pixels) != w*h {
		return nil, fmt.Errorf("codec: depth pixel buffer length %d does not match %dx%d", len(img.Pixels), w, h)
	}

	gray := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := img.Pixels[y*w+x]
			off := gray.PixOffset(x, y)
			gray.Pix[off] = uint8(v >> 8)
			gray.Pix[off+1] = uint8(v)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("codec: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDepthImage inflates a PNG frame back into a row-major uint16
// depth buffer. The PNG must be 16-bit grayscale, which is the only
// format EncodeDepthImage ever produces.
func DecodeDepthImage(data []byte, intrinsics wire.CameraIntrinsics) (wire.DepthImage, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return wire.DepthImage{}, fmt.Errorf("codec: png decode: %w", err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		return wire.DepthImage{}, fmt.Errorf("codec: depth PNG is not 16-bit grayscale")
	}

	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := gray.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			pixels[y*w+x] = uint16(gray.Pix[off])<<8 | uint16(gray.Pix[off+1])
		}
	}
	return wire.DepthImage{Intrinsics: intrinsics, Pixels: pixels}, nil
}
