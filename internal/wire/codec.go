package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// encBuf is a growable big-endian write buffer. It mirrors the manual
// PutUint-style encoding used elsewhere in this codebase's lineage,
// generalized to variable-length messages.
type encBuf struct {
	buf []byte
}

func newEncBuf(sizeHint int) *encBuf {
	return &encBuf{buf: make([]byte, 0, sizeHint)}
}

func (e *encBuf) putUint8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encBuf) putUint16(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }
func (e *encBuf) putUint32(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }
func (e *encBuf) putInt16(v int16)   { e.putUint16(uint16(v)) }
func (e *encBuf) putInt64(v int64)   { e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v)) }
func (e *encBuf) putFloat32(v float32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(v))
}
func (e *encBuf) putFloat64(v float64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(v))
}
func (e *encBuf) putBytes(v []byte) { e.buf = append(e.buf, v...) }

// decBuf is a bounds-checked big-endian read cursor.
type decBuf struct {
	buf []byte
	pos int
}

func newDecBuf(b []byte) *decBuf { return &decBuf{buf: b} }

func (d *decBuf) need(n int) error {
	if d.pos+n > len(d.buf) {
		return fmt.Errorf("wire: short buffer: need %d bytes at offset %d, have %d", n, d.pos, len(d.buf))
	}
	return nil
}

func (d *decBuf) getUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decBuf) getUint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decBuf) getUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decBuf) getInt16() (int16, error) {
	v, err := d.getUint16()
	return int16(v), err
}

func (d *decBuf) getInt64() (int64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return int64(v), nil
}

func (d *decBuf) getFloat32() (float32, error) {
	v, err := d.getUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (d *decBuf) getFloat64() (float64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return math.Float64frombits(v), nil
}

func (d *decBuf) getBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, d.buf[d.pos:d.pos+n])
	d.pos += n
	return v, nil
}

// --- CameraIntrinsics ---

func putIntrinsics(e *encBuf, in CameraIntrinsics) {
	e.putUint32(in.Width)
	e.putUint32(in.Height)
	e.putFloat32(in.Fx)
	e.putFloat32(in.Fy)
	e.putFloat32(in.Cx)
	e.putFloat32(in.Cy)
}

func getIntrinsics(d *decBuf) (CameraIntrinsics, error) {
	var in CameraIntrinsics
	var err error
	if in.Width, err = d.getUint32(); err != nil {
		return in, err
	}
	if in.Height, err = d.getUint32(); err != nil {
		return in, err
	}
	if in.Fx, err = d.getFloat32(); err != nil {
		return in, err
	}
	if in.Fy, err = d.getFloat32(); err != nil {
		return in, err
	}
	if in.Cx, err = d.getFloat32(); err != nil {
		return in, err
	}
	if in.Cy, err = d.getFloat32(); err != nil {
		return in, err
	}
	return in, nil
}

// --- Odometry ---

func putOdometry(e *encBuf, o Odometry) {
	e.putInt64(o.StampUnixNanos)
	e.putFloat32(float32(o.Translation.X))
	e.putFloat32(float32(o.Translation.Y))
	e.putFloat32(float32(o.Translation.Z))
	e.putFloat32(float32(o.Rotation.Real))
	e.putFloat32(float32(o.Rotation.Imag))
	e.putFloat32(float32(o.Rotation.Jmag))
	e.putFloat32(float32(o.Rotation.Kmag))
}

func getOdometry(d *decBuf) (Odometry, error) {
	var o Odometry
	var err error
	if o.StampUnixNanos, err = d.getInt64(); err != nil {
		return o, err
	}
	var x, y, z, real, imag, jmag, kmag float32
	if x, err = d.getFloat32(); err != nil {
		return o, err
	}
	if y, err = d.getFloat32(); err != nil {
		return o, err
	}
	if z, err = d.getFloat32(); err != nil {
		return o, err
	}
	if real, err = d.getFloat32(); err != nil {
		return o, err
	}
	if imag, err = d.getFloat32(); err != nil {
		return o, err
	}
	if jmag, err = d.getFloat32(); err != nil {
		return o, err
	}
	if kmag, err = d.getFloat32(); err != nil {
		return o, err
	}
	o.Translation = r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
	o.Rotation = quat.Number{Real: float64(real), Imag: float64(imag), Jmag: float64(jmag), Kmag: float64(kmag)}
	return o, nil
}

// --- EncodedImagesMessage ---

// EncodeEncodedImagesMessage serializes m for the WebSocket data plane.
func EncodeEncodedImagesMessage(m EncodedImagesMessage) []byte {
	e := newEncBuf(36 + 24 + 24 + 4 + 4 + len(m.ColorJPEG) + 4 + len(m.DepthPNG))
	putOdometry(e, m.Odometry)
	putIntrinsics(e, m.ColorIntrinsics)
	putIntrinsics(e, m.DepthIntrinsics)
	e.putFloat32(m.DepthUnit)
	e.putUint32(uint32(len(m.ColorJPEG)))
	e.putBytes(m.ColorJPEG)
	e.putUint32(uint32(len(m.DepthPNG)))
	e.putBytes(m.DepthPNG)
	return e.buf
}

// DecodeEncodedImagesMessage is EncodeEncodedImagesMessage's inverse.
func DecodeEncodedImagesMessage(raw []byte) (EncodedImagesMessage, error) {
	var m EncodedImagesMessage
	d := newDecBuf(raw)

	var err error
	if m.Odometry, err = getOdometry(d); err != nil {
		return m, fmt.Errorf("decode images message odometry: %w", err)
	}
	if m.ColorIntrinsics, err = getIntrinsics(d); err != nil {
		return m, fmt.Errorf("decode images message color intrinsics: %w", err)
	}
	if m.DepthIntrinsics, err = getIntrinsics(d); err != nil {
		return m, fmt.Errorf("decode images message depth intrinsics: %w", err)
	}
	if m.DepthUnit, err = d.getFloat32(); err != nil {
		return m, fmt.Errorf("decode images message depth unit: %w", err)
	}
	colorLen, err := d.getUint32()
	if err != nil {
		return m, fmt.Errorf("decode images message color length: %w", err)
	}
	if m.ColorJPEG, err = d.getBytes(int(colorLen)); err != nil {
		return m, fmt.Errorf("decode images message color payload: %w", err)
	}
	depthLen, err := d.getUint32()
	if err != nil {
		return m, fmt.Errorf("decode images message depth length: %w", err)
	}
	if m.DepthPNG, err = d.getBytes(int(depthLen)); err != nil {
		return m, fmt.Errorf("decode images message depth payload: %w", err)
	}
	return m, nil
}

// --- Command ---

func putStats(e *encBuf, s Stats) {
	e.putUint32(uint32(len(s.ImageStamps)))
	for _, v := range s.ImageStamps {
		e.putInt64(v)
	}
	e.putUint32(uint32(len(s.ImageSizes)))
	for _, v := range s.ImageSizes {
		e.putUint32(v)
	}
	e.putUint32(uint32(len(s.ImageLatencies)))
	for _, v := range s.ImageLatencies {
		e.putInt64(v)
	}
	e.putUint32(uint32(len(s.OdometryStamps)))
	for _, v := range s.OdometryStamps {
		e.putInt64(v)
	}
	e.putUint32(uint32(len(s.OdometrySizes)))
	for _, v := range s.OdometrySizes {
		e.putUint32(v)
	}
	e.putUint32(uint32(len(s.OdometryLatencies)))
	for _, v := range s.OdometryLatencies {
		e.putInt64(v)
	}
}

func getInt64Vec(d *decBuf) ([]int64, error) {
	n, err := d.getUint32()
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		if out[i], err = d.getInt64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func getUint32Vec(d *decBuf) ([]uint32, error) {
	n, err := d.getUint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = d.getUint32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func getStats(d *decBuf) (Stats, error) {
	var s Stats
	var err error
	if s.ImageStamps, err = getInt64Vec(d); err != nil {
		return s, fmt.Errorf("image stamps: %w", err)
	}
	if s.ImageSizes, err = getUint32Vec(d); err != nil {
		return s, fmt.Errorf("image sizes: %w", err)
	}
	if s.ImageLatencies, err = getInt64Vec(d); err != nil {
		return s, fmt.Errorf("image latencies: %w", err)
	}
	if s.OdometryStamps, err = getInt64Vec(d); err != nil {
		return s, fmt.Errorf("odometry stamps: %w", err)
	}
	if s.OdometrySizes, err = getUint32Vec(d); err != nil {
		return s, fmt.Errorf("odometry sizes: %w", err)
	}
	if s.OdometryLatencies, err = getInt64Vec(d); err != nil {
		return s, fmt.Errorf("odometry latencies: %w", err)
	}
	return s, nil
}

// EncodeCommand serializes c for the WebSocket data plane.
func EncodeCommand(c Command) []byte {
	e := newEncBuf(64)
	e.putUint8(uint8(c.Kind))
	if c.Kind == CommandSaveStats {
		putStats(e, c.Stats)
	}
	return e.buf
}

// DecodeCommand is EncodeCommand's inverse.
func DecodeCommand(raw []byte) (Command, error) {
	var c Command
	d := newDecBuf(raw)
	kind, err := d.getUint8()
	if err != nil {
		return c, fmt.Errorf("decode command kind: %w", err)
	}
	c.Kind = CommandKind(kind)
	if c.Kind == CommandSaveStats {
		if c.Stats, err = getStats(d); err != nil {
			return c, fmt.Errorf("decode command stats: %w", err)
		}
	}
	return c, nil
}

// --- UDP messages ---

// EncodeUDPClientMessage serializes m for the data-plane UDP socket.
func EncodeUDPClientMessage(m UDPClientMessage) []byte {
	e := newEncBuf(9)
	e.putUint8(uint8(m.Kind))
	e.putInt64(m.Ping.ClientTimeUnixNanos)
	return e.buf
}

// DecodeUDPClientMessage is EncodeUDPClientMessage's inverse.
func DecodeUDPClientMessage(raw []byte) (UDPClientMessage, error) {
	var m UDPClientMessage
	d := newDecBuf(raw)
	kind, err := d.getUint8()
	if err != nil {
		return m, fmt.Errorf("decode udp client message kind: %w", err)
	}
	m.Kind = UDPClientMessageKind(kind)
	if m.Ping.ClientTimeUnixNanos, err = d.getInt64(); err != nil {
		return m, fmt.Errorf("decode udp client message ping: %w", err)
	}
	return m, nil
}

// EncodeUDPServerMessage serializes m for the data-plane UDP socket.
func EncodeUDPServerMessage(m UDPServerMessage) []byte {
	e := newEncBuf(40)
	e.putUint8(uint8(m.Kind))
	switch m.Kind {
	case UDPServerOdometry:
		putOdometry(e, m.Odometry)
	case UDPServerPong:
		e.putInt64(m.Pong.ClientTimeUnixNanos)
		e.putInt64(m.Pong.ServerTimeUnixNanos)
	}
	return e.buf
}

// DecodeUDPServerMessage is EncodeUDPServerMessage's inverse.
func DecodeUDPServerMessage(raw []byte) (UDPServerMessage, error) {
	var m UDPServerMessage
	d := newDecBuf(raw)
	kind, err := d.getUint8()
	if err != nil {
		return m, fmt.Errorf("decode udp server message kind: %w", err)
	}
	m.Kind = UDPServerMessageKind(kind)
	switch m.Kind {
	case UDPServerOdometry:
		if m.Odometry, err = getOdometry(d); err != nil {
			return m, fmt.Errorf("decode udp server message odometry: %w", err)
		}
	case UDPServerPong:
		if m.Pong.ClientTimeUnixNanos, err = d.getInt64(); err != nil {
			return m, fmt.Errorf("decode udp server message pong client time: %w", err)
		}
		if m.Pong.ServerTimeUnixNanos, err = d.getInt64(); err != nil {
			return m, fmt.Errorf("decode udp server message pong server time: %w", err)
		}
	default:
		return m, fmt.Errorf("decode udp server message: unknown kind %d", kind)
	}
	return m, nil
}

// --- ControlMessage ---

// EncodeControlMessage serializes m for ControlLink's UDP socket.
func EncodeControlMessage(m ControlMessage) []byte {
	e := newEncBuf(13)
	e.putUint8(uint8(m.Kind))
	switch m.Kind {
	case ControlSetTargetVelocity:
		e.putFloat32(m.Forward)
		e.putFloat32(m.Turn)
	case ControlSetLegLength:
		e.putFloat32(m.LegLength)
	}
	return e.buf
}

// DecodeControlMessage is EncodeControlMessage's inverse.
func DecodeControlMessage(raw []byte) (ControlMessage, error) {
	var m ControlMessage
	d := newDecBuf(raw)
	kind, err := d.getUint8()
	if err != nil {
		return m, fmt.Errorf("decode control message kind: %w", err)
	}
	m.Kind = ControlMessageKind(kind)
	switch m.Kind {
	case ControlSetTargetVelocity:
		if m.Forward, err = d.getFloat32(); err != nil {
			return m, fmt.Errorf("decode control message forward: %w", err)
		}
		if m.Turn, err = d.getFloat32(); err != nil {
			return m, fmt.Errorf("decode control message turn: %w", err)
		}
	case ControlSetLegLength:
		if m.LegLength, err = d.getFloat32(); err != nil {
			return m, fmt.Errorf("decode control message leg length: %w", err)
		}
	default:
		return m, fmt.Errorf("decode control message: unknown kind %d", kind)
	}
	return m, nil
}

// --- MotorControlFrame ---

// EncodeMotorControlFrame serializes m as the little-endian 4-byte
// payload the Framer sends over the serial link, per the embedded
// controller's wire format.
func EncodeMotorControlFrame(m MotorControlFrame) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(m.ForwardVelMMs))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(m.TurnVelMradS))
	return buf
}

// DecodeMotorControlFrame is EncodeMotorControlFrame's inverse.
func DecodeMotorControlFrame(raw []byte) (MotorControlFrame, error) {
	var m MotorControlFrame
	if len(raw) != 4 {
		return m, fmt.Errorf("decode motor control frame: want 4 bytes, got %d", len(raw))
	}
	m.ForwardVelMMs = int16(binary.LittleEndian.Uint16(raw[0:2]))
	m.TurnVelMradS = int16(binary.LittleEndian.Uint16(raw[2:4]))
	return m, nil
}
