// Package wire defines the cross-host message types for VRROP's two
// transport planes and their binary encoding.
//
// The encoding is fixed big-endian and is not self-describing: a receiver
// knows the expected variant from the channel it arrived on. WebSocket
// payloads carry EncodedImagesMessage (server to client) or Command
// (client to server); datagrams carry UDPClientMessage or
// UDPServerMessage, each prefixed with its own kind byte: the server
// direction multiplexes odometry and pong, and the client direction
// (Ping only today) carries the byte so it can add variants.
package wire

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// CameraIntrinsics are the pinhole parameters of a single stream, fixed
// for its lifetime.
type CameraIntrinsics struct {
	Width, Height uint32
	Fx, Fy        float32
	Cx, Cy        float32
}

// Odometry is a single pose sample: a wall-clock stamp, translation in
// meters, and a unit rotation quaternion.
type Odometry struct {
	StampUnixNanos int64
	Translation    r3.Vec
	Rotation       quat.Number
}

// ColorImage is a row-major 8-bit RGB pixel buffer with its intrinsics.
type ColorImage struct {
	Intrinsics CameraIntrinsics
	Pixels     []byte // len == Width*Height*3
}

// DepthImage is a row-major 16-bit single-channel pixel buffer with its
// intrinsics. A pixel's depth in meters is Pixels[i] * DepthUnit.
type DepthImage struct {
	Intrinsics CameraIntrinsics
	Pixels     []uint16 // len == Width*Height
}

// ImagesMessage is a correlated frame: one pose, one color image, one
// depth image, and the depth image's unit scale.
type ImagesMessage struct {
	Odometry  Odometry
	Color     ColorImage
	Depth     DepthImage
	DepthUnit float32
}

// EncodedImagesMessage is the over-the-wire form of ImagesMessage: color
// is JPEG-compressed, depth is PNG-compressed.
type EncodedImagesMessage struct {
	Odometry        Odometry
	ColorIntrinsics CameraIntrinsics
	DepthIntrinsics CameraIntrinsics
	DepthUnit       float32
	ColorJPEG       []byte
	DepthPNG        []byte
}

// CommandKind discriminates Command's two variants.
type CommandKind uint8

const (
	CommandReset CommandKind = iota
	CommandSaveStats
)

// Stats holds three parallel vectors each for images and odometry:
// stamps, original-encoded size in bytes, and client-observed latency in
// nanoseconds (already corrected by the client's clock offset estimate).
type Stats struct {
	ImageStamps       []int64
	ImageSizes        []uint32
	ImageLatencies    []int64
	OdometryStamps    []int64
	OdometrySizes     []uint32
	OdometryLatencies []int64
}

// Command is the discriminated union a ClientCore sends to ServerCore.
// Stats is only meaningful when Kind == CommandSaveStats.
type Command struct {
	Kind  CommandKind
	Stats Stats
}

// Point is one colored sample in a PointCloud's spatial grid.
type Point struct {
	Position r3.Vec
	Color    [3]uint8
	Size     float32
}

// GridIndex is a cubic cell coordinate in a SpatialGridMap.
type GridIndex struct {
	X, Y, Z int32
}

// PingMessage is sent client to server over the data-plane UDP socket.
type PingMessage struct {
	ClientTimeUnixNanos int64
}

// PongMessage echoes a Ping's client time and adds the server's own.
type PongMessage struct {
	ClientTimeUnixNanos int64
	ServerTimeUnixNanos int64
}

// UDPClientMessageKind discriminates UDPClientMessage's variants. Ping is
// the only one today; the kind byte is still explicit so the wire format
// can grow without breaking older clients.
type UDPClientMessageKind uint8

const (
	UDPClientPing UDPClientMessageKind = iota
)

// UDPClientMessage is a datagram sent client to server on the data plane.
type UDPClientMessage struct {
	Kind UDPClientMessageKind
	Ping PingMessage
}

// UDPServerMessageKind discriminates UDPServerMessage's variants.
type UDPServerMessageKind uint8

const (
	UDPServerOdometry UDPServerMessageKind = iota
	UDPServerPong
)

// UDPServerMessage is a datagram sent server to client on the data plane.
type UDPServerMessage struct {
	Kind     UDPServerMessageKind
	Odometry Odometry
	Pong     PongMessage
}

// ControlMessageKind discriminates ControlMessage's variants.
type ControlMessageKind uint8

const (
	ControlSetTargetVelocity ControlMessageKind = iota
	ControlSetLegLength
)

// ControlMessage is a teleop command sent over ControlLink's dedicated
// UDP port, independent of the data plane.
type ControlMessage struct {
	Kind      ControlMessageKind
	Forward   float32 // SetTargetVelocity only
	Turn      float32 // SetTargetVelocity only
	LegLength float32 // SetLegLength only
}

// MotorControlFrame is the Framer payload the embedded controller sends
// to its motor subsystem: a fixed 4-byte little-endian struct, distinct
// from ControlMessage's own big-endian UDP encoding.
type MotorControlFrame struct {
	ForwardVelMMs int16 // mm/s
	TurnVelMradS  int16 // mrad/s, positive = counter-clockwise
}
