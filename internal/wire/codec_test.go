package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func sampleOdometry() Odometry {
	return Odometry{
		StampUnixNanos: 1_700_000_000_123_456_789,
		Translation:    r3.Vec{X: 1.5, Y: -2.25, Z: 0.125},
		Rotation:       quat.Number{Real: 1, Imag: 0, Jmag: 0, Kmag: 0},
	}
}

func TestEncodedImagesMessageRoundTrip(t *testing.T) {
	want := EncodedImagesMessage{
		Odometry:        sampleOdometry(),
		ColorIntrinsics: CameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Cx: 320, Cy: 240},
		DepthIntrinsics: CameraIntrinsics{Width: 320, Height: 240, Fx: 250, Fy: 250, Cx: 160, Cy: 120},
		DepthUnit:       0.001,
		ColorJPEG:       []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01},
		DepthPNG:        []byte{0x89, 0x50, 0x4E, 0x47, 0x00},
	}

	raw := EncodeEncodedImagesMessage(want)
	got, err := DecodeEncodedImagesMessage(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandResetRoundTrip(t *testing.T) {
	raw := EncodeCommand(Command{Kind: CommandReset})
	got, err := DecodeCommand(raw)
	require.NoError(t, err)
	require.Equal(t, CommandReset, got.Kind)
}

func TestCommandSaveStatsRoundTrip(t *testing.T) {
	want := Command{
		Kind: CommandSaveStats,
		Stats: Stats{
			ImageStamps:       []int64{1, 2, 3},
			ImageSizes:        []uint32{100, 200, 300},
			ImageLatencies:    []int64{1_000_000, 2_000_000, 3_000_000},
			OdometryStamps:    []int64{10, 20},
			OdometrySizes:     []uint32{8, 8},
			OdometryLatencies: []int64{500_000, 600_000},
		},
	}

	raw := EncodeCommand(want)
	got, err := DecodeCommand(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUDPClientMessageRoundTrip(t *testing.T) {
	want := UDPClientMessage{Kind: UDPClientPing, Ping: PingMessage{ClientTimeUnixNanos: 42}}
	raw := EncodeUDPClientMessage(want)
	got, err := DecodeUDPClientMessage(raw)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUDPServerMessageRoundTripOdometry(t *testing.T) {
	want := UDPServerMessage{Kind: UDPServerOdometry, Odometry: sampleOdometry()}
	raw := EncodeUDPServerMessage(want)
	got, err := DecodeUDPServerMessage(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUDPServerMessageRoundTripPong(t *testing.T) {
	want := UDPServerMessage{Kind: UDPServerPong, Pong: PongMessage{ClientTimeUnixNanos: 10, ServerTimeUnixNanos: 20}}
	raw := EncodeUDPServerMessage(want)
	got, err := DecodeUDPServerMessage(raw)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestControlMessageRoundTrip(t *testing.T) {
	velocity := ControlMessage{Kind: ControlSetTargetVelocity, Forward: 0.5, Turn: -0.2}
	raw := EncodeControlMessage(velocity)
	got, err := DecodeControlMessage(raw)
	require.NoError(t, err)
	require.Equal(t, velocity, got)

	legLength := ControlMessage{Kind: ControlSetLegLength, LegLength: 0.3}
	raw = EncodeControlMessage(legLength)
	got, err = DecodeControlMessage(raw)
	require.NoError(t, err)
	require.Equal(t, legLength, got)
}

func TestMotorControlFrameRoundTrip(t *testing.T) {
	want := MotorControlFrame{ForwardVelMMs: 250, TurnVelMradS: -100}
	raw := EncodeMotorControlFrame(want)
	require.Len(t, raw, 4)
	got, err := DecodeMotorControlFrame(raw)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	_, err := DecodeUDPServerMessage([]byte{byte(UDPServerOdometry)})
	require.Error(t, err)
}
