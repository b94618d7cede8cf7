// Package framer implements the byte-stuffed, CRC-protected message framing
// used on the serial link between the on-robot controller and its motor
// subsystem: COBS(payload || CRC16_XMODEM_LE(payload)) || 0x00.
//
// The terminating zero is the unambiguous frame delimiter; COBS guarantees
// no zero appears inside the encoded body. Framer is synchronous and
// single-threaded by design, matching the serial link it sits on.
package framer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/snksoft/crc"
)

// DefaultBufferSize is the frame buffer size used when no Option overrides
// it, including CRC and COBS overhead.
const DefaultBufferSize = 256

var crcTable = crc.NewTable(crc.XMODEM)

// ErrBufferOverflow is returned when a payload to send, or a frame being
// received, exceeds the configured buffer size.
var ErrBufferOverflow = errors.New("framer: buffer overflow")

// ErrInvalidMessage is returned on COBS decode failure, a frame shorter
// than the 2-byte CRC trailer, or a CRC mismatch.
var ErrInvalidMessage = errors.New("framer: invalid message")

// IOError wraps an underlying read/write failure from the transport.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("framer: io error: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// Framer exchanges short binary messages over a byte-oriented stream that
// may start mid-frame and may drop bytes.
type Framer struct {
	r          *bufio.Reader
	w          io.Writer
	bufferSize int
	synced     bool
}

// Option configures a Framer at construction.
type Option func(*Framer)

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) Option {
	return func(f *Framer) { f.bufferSize = n }
}

// New wraps rw as a Framer. The Framer starts synced, trusting that rw
// begins at a frame boundary; call Resync to force the next Recv to hunt
// for a delimiter first (e.g. after reopening a serial device mid-stream).
func New(rw io.ReadWriter, opts ...Option) *Framer {
	f := &Framer{
		r:          bufio.NewReader(rw),
		w:          rw,
		bufferSize: DefaultBufferSize,
		synced:     true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Synced reports whether the next Recv will accumulate a frame directly,
// or must first hunt for a delimiter.
func (f *Framer) Synced() bool { return f.synced }

// Resync clears synced, so the next Recv discards bytes up to and
// including a 0x00 before accumulating a frame.
func (f *Framer) Resync() { f.synced = false }

func crc16(data []byte) uint16 {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, data)
	return crcTable.CRC16(c)
}

// Send encodes payload as COBS(payload||CRC16_LE(payload))||0x00 and writes
// it in a single call. It fails with ErrBufferOverflow, without writing any
// bytes, if payload plus its CRC and COBS/delimiter overhead would exceed
// the configured buffer size.
func (f *Framer) Send(payload []byte) error {
	if len(payload)+2 > f.bufferSize {
		return ErrBufferOverflow
	}

	body := make([]byte, len(payload)+2)
	copy(body, payload)
	binary.LittleEndian.PutUint16(body[len(payload):], crc16(payload))

	encoded := cobsEncode(body)
	if len(encoded)+1 > f.bufferSize {
		return ErrBufferOverflow
	}

	frame := make([]byte, len(encoded)+1)
	copy(frame, encoded)
	frame[len(encoded)] = 0x00

	if _, err := f.w.Write(frame); err != nil {
		return &IOError{Err: err}
	}
	return nil
}

// Recv reads the next frame into out, returning the number of payload
// bytes written. If not synced, it first discards bytes up to and
// including a 0x00 delimiter. It then accumulates bytes up to and
// including the next 0x00, COBS-decodes, and verifies the trailing CRC.
//
// On decode failure, short frame, CRC mismatch, or a frame exceeding the
// buffer size, synced remains true (the terminator was consumed) and the
// next Recv starts a fresh frame. On an underlying read error, synced is
// cleared so the next Recv re-hunts for a delimiter.
func (f *Framer) Recv(out []byte) (int, error) {
	if !f.synced {
		if err := f.huntDelimiter(); err != nil {
			return 0, err
		}
		f.synced = true
	}

	raw, err := f.accumulateFrame()
	if err != nil {
		return 0, err
	}

	decoded, err := cobsDecode(raw)
	if err != nil {
		return 0, ErrInvalidMessage
	}
	if len(decoded) < 2 {
		return 0, ErrInvalidMessage
	}

	payload := decoded[:len(decoded)-2]
	wantCRC := binary.LittleEndian.Uint16(decoded[len(decoded)-2:])
	if crc16(payload) != wantCRC {
		return 0, ErrInvalidMessage
	}
	if len(payload) > len(out) {
		return 0, ErrBufferOverflow
	}
	return copy(out, payload), nil
}

func (f *Framer) huntDelimiter() error {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			f.synced = false
			return &IOError{Err: err}
		}
		if b == 0x00 {
			return nil
		}
	}
}

// accumulateFrame reads bytes up to and including the next 0x00, returning
// the bytes before it. If the accumulated length exceeds the buffer size,
// it keeps discarding bytes until the terminator so synced can remain
// true, then reports ErrBufferOverflow.
func (f *Framer) accumulateFrame() ([]byte, error) {
	buf := make([]byte, 0, f.bufferSize)
	overflowed := false
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			f.synced = false
			return nil, &IOError{Err: err}
		}
		if b == 0x00 {
			if overflowed {
				return nil, ErrBufferOverflow
			}
			return buf, nil
		}
		if len(buf) >= f.bufferSize {
			overflowed = true
			continue
		}
		buf = append(buf, b)
	}
}
