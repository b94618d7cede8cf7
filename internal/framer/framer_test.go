package framer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// loopback is an io.ReadWriter backed by two independent buffers, so a
// Framer's writes never feed back into its own reads.
type loopback struct {
	toPeer *bytes.Buffer
}

func newLoopback() *loopback { return &loopback{toPeer: new(bytes.Buffer)} }

func (l *loopback) Write(p []byte) (int, error) { return l.toPeer.Write(p) }
func (l *loopback) Read(p []byte) (int, error)  { return l.toPeer.Read(p) }

func TestSendRecvRoundTrip(t *testing.T) {
	// Property 1: for all payloads p with |p| <= MAX, recv(send(p)) == p.
	link := newLoopback()
	f := New(link)

	payloads := [][]byte{
		{0xAA, 0xBB, 0xCC},
		{},
		{0x00, 0x00, 0x01},
		bytes.Repeat([]byte{0x2A}, 64),
	}

	for _, p := range payloads {
		require.NoError(t, f.Send(p))
		out := make([]byte, DefaultBufferSize)
		n, err := f.Recv(out)
		require.NoError(t, err)
		require.Equal(t, p, out[:n])
	}
}

func TestSendHappyPathHasNoInnerZeroAndSingleTerminator(t *testing.T) {
	// S1: send [0xAA, 0xBB, 0xCC]; the written bytes contain no inner 0x00
	// and end with a single 0x00; recv produces [0xAA, 0xBB, 0xCC].
	link := newLoopback()
	f := New(link)

	require.NoError(t, f.Send([]byte{0xAA, 0xBB, 0xCC}))
	written := link.toPeer.Bytes()
	require.NotEmpty(t, written)
	require.Equal(t, byte(0x00), written[len(written)-1])
	require.NotContains(t, written[:len(written)-1], byte(0x00))

	out := make([]byte, 16)
	n, err := f.Recv(out)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, out[:n])
}

func TestSendOverflowWritesNoBytes(t *testing.T) {
	// S2: attempt to send a payload of size MAX+1; send returns
	// BufferOverflow; no bytes written.
	link := newLoopback()
	f := New(link, WithBufferSize(8))

	err := f.Send(bytes.Repeat([]byte{0x01}, 8))
	require.ErrorIs(t, err, ErrBufferOverflow)
	require.Zero(t, link.toPeer.Len())
}

func TestRecvResyncsPastGarbage(t *testing.T) {
	// Property 2: given 128 non-zero garbage bytes, then a resync
	// delimiter, then a valid frame of [0x01, 0x02, 0x03], the first
	// post-sync recv returns [0x01, 0x02, 0x03].
	garbage := make([]byte, 128)
	for i := range garbage {
		garbage[i] = byte((i*7+3)%255 + 1) // deterministic, never 0x00
	}

	link := newLoopback()
	link.toPeer.Write(garbage)
	link.toPeer.WriteByte(0x00) // stray terminator: marks where to resync

	f := New(link)
	require.NoError(t, f.Send([]byte{0x01, 0x02, 0x03}))
	f.Resync()

	out := make([]byte, 16)
	n, err := f.Recv(out)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, out[:n])
}

func TestRecvRejectsBitFlippedFrame(t *testing.T) {
	// Property 3: flipping any one bit in the wire frame (outside the
	// terminator) causes recv to return InvalidMessage.
	link := newLoopback()
	f := New(link)
	require.NoError(t, f.Send([]byte{0x10, 0x20, 0x30, 0x40}))

	frame := link.toPeer.Bytes()
	flipped := make([]byte, len(frame))
	copy(flipped, frame)
	flipped[0] ^= 0x01 // first byte is part of the COBS-encoded body, never the terminator

	corrupted := newLoopback()
	corrupted.toPeer.Write(flipped)
	cf := New(corrupted)

	out := make([]byte, 16)
	_, err := cf.Recv(out)
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestRecvIOErrorClearsSynced(t *testing.T) {
	link := newLoopback()
	f := New(link)

	out := make([]byte, 16)
	_, err := f.Recv(out) // empty buffer: immediate EOF
	require.Error(t, err)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.False(t, f.Synced())
}

func TestSendOverflowIncludingCOBSOverhead(t *testing.T) {
	link := newLoopback()
	f := New(link, WithBufferSize(5))

	// Payload fits the raw length check (len+2 = 4 <= 5) but the
	// COBS-encoded 4-byte body is always 5 bytes, and the terminator
	// pushes the total to 6, over the buffer.
	err := f.Send([]byte{0x00, 0x00})
	require.ErrorIs(t, err, ErrBufferOverflow)
}
