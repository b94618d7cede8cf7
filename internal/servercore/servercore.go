// Package servercore implements the robot-side half of VRROP's streaming
// protocol: one WebSocket+UDP hub per robot, broadcasting encoded images
// and odometry to every connected viewer while accepting commands back.
package servercore

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

const (
	imagesChannelCapacity   = 2
	odometryChannelCapacity = 10
	udpClientTimeout        = 5 * time.Second
	defaultImageThrottle    = time.Second
	defaultReconnectBackoff = time.Second
)

// SessionRecorder is the best-effort connection log a ServerCore calls
// into on accept and disconnect. internal/sessiondb's Registry satisfies
// this structurally; a nil recorder (the default) disables logging.
type SessionRecorder interface {
	RecordConnect(remoteAddr string) (uuid.UUID, error)
	RecordDisconnect(sessionID uuid.UUID, reason string) error
}

// ServerCore owns the broadcast state for one robot: an images channel
// (lossy, capacity 2), an odometry channel (lossy, capacity 10), and the
// UDP client table used to fan odometry out to live subscribers. It is
// safe for concurrent use.
type ServerCore struct {
	images   *broadcaster[wire.EncodedImagesMessage]
	odometry *broadcaster[wire.Odometry]

	clock         timeutil.Clock
	imageThrottle time.Duration
	backoff       time.Duration

	lastImageMu   sync.Mutex
	lastImageSent time.Time

	onCommand func(wire.Command)
	sessions  SessionRecorder

	clientsMu sync.Mutex
	clients   map[string]udpClient
}

// Option configures a ServerCore at construction.
type Option func(*ServerCore)

// WithClock overrides the clock used for image throttling and
// server-time stamping of Pong replies. Tests use a MockClock.
func WithClock(clock timeutil.Clock) Option {
	return func(s *ServerCore) { s.clock = clock }
}

// WithImageThrottle overrides the minimum interval between forwarded
// images frames.
func WithImageThrottle(d time.Duration) Option {
	return func(s *ServerCore) { s.imageThrottle = d }
}

// WithReconnectBackoff overrides the delay a supervised loop waits after
// a transient failure before restarting.
func WithReconnectBackoff(d time.Duration) Option {
	return func(s *ServerCore) { s.backoff = d }
}

// WithOnCommand registers the callback invoked whenever any connected
// client sends a Command over its WebSocket.
func WithOnCommand(fn func(wire.Command)) Option {
	return func(s *ServerCore) { s.onCommand = fn }
}

// WithSessionRecorder enables best-effort connect/disconnect logging.
func WithSessionRecorder(r SessionRecorder) Option {
	return func(s *ServerCore) { s.sessions = r }
}

// New constructs a ServerCore with no connected clients.
func New(opts ...Option) *ServerCore {
	s := &ServerCore{
		images:        newBroadcaster[wire.EncodedImagesMessage](imagesChannelCapacity),
		odometry:      newBroadcaster[wire.Odometry](odometryChannelCapacity),
		clock:         timeutil.RealClock{},
		imageThrottle: defaultImageThrottle,
		backoff:       defaultReconnectBackoff,
		clients:       make(map[string]udpClient),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishOdometry sanitizes and broadcasts one odometry sample. Samples
// with any non-finite component are dropped; odometry is never
// throttled.
func (s *ServerCore) PublishOdometry(o wire.Odometry) {
	if !odometryIsFinite(o) {
		return
	}
	s.odometry.send(o)
}

// PublishImages sanitizes, throttles, and broadcasts one encoded images
// frame. A frame paired with non-finite odometry is dropped; otherwise
// at most one frame is forwarded per ImageThrottle interval, with
// intermediate frames discarded at the source.
func (s *ServerCore) PublishImages(msg wire.EncodedImagesMessage) {
	if !odometryIsFinite(msg.Odometry) {
		return
	}

	now := s.clock.Now()
	s.lastImageMu.Lock()
	if !s.lastImageSent.IsZero() && now.Sub(s.lastImageSent) < s.imageThrottle {
		s.lastImageMu.Unlock()
		return
	}
	s.lastImageSent = now
	s.lastImageMu.Unlock()

	s.images.send(msg)
}

// ImageSubscriberCount and OdometrySubscriberCount expose broadcast fan
// out for the admin stats page.
func (s *ServerCore) ImageSubscriberCount() int    { return s.images.subscriberCount() }
func (s *ServerCore) OdometrySubscriberCount() int { return s.odometry.subscriberCount() }

// UDPClientCount reports the size of the UDP client table. A client not
// heard from for 5 seconds is removed on the next odometry fan-out and
// is counted until then.
func (s *ServerCore) UDPClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func odometryIsFinite(o wire.Odometry) bool {
	vals := [...]float64{
		o.Translation.X, o.Translation.Y, o.Translation.Z,
		o.Rotation.Real, o.Rotation.Imag, o.Rotation.Jmag, o.Rotation.Kmag,
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *ServerCore) recordConnect(remoteAddr string) uuid.UUID {
	if s.sessions == nil {
		return uuid.Nil
	}
	id, err := s.sessions.RecordConnect(remoteAddr)
	if err != nil {
		log.Printf("servercore: record connect failed: %v", err)
		return uuid.Nil
	}
	return id
}

func (s *ServerCore) recordDisconnect(id uuid.UUID, reason string) {
	if s.sessions == nil || id == uuid.Nil {
		return
	}
	if err := s.sessions.RecordDisconnect(id, reason); err != nil {
		log.Printf("servercore: record disconnect failed: %v", err)
	}
}
