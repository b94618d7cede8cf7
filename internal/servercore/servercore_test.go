package servercore

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

func identityOdometry() wire.Odometry {
	return wire.Odometry{Translation: r3.Vec{}, Rotation: quat.Number{Real: 1}}
}

func TestPublishOdometryDropsNonFinite(t *testing.T) {
	s := New()
	sub, cancel := s.odometry.subscribe()
	defer cancel()

	bad := identityOdometry()
	bad.Translation.X = math.NaN()
	s.PublishOdometry(bad)

	good := identityOdometry()
	s.PublishOdometry(good)

	got := <-sub
	require.Equal(t, good, got)
}

func TestPublishImagesDropsNonFiniteOdometry(t *testing.T) {
	s := New()
	sub, cancel := s.images.subscribe()
	defer cancel()

	bad := wire.EncodedImagesMessage{Odometry: identityOdometry()}
	bad.Odometry.Rotation.Imag = math.Inf(1)
	s.PublishImages(bad)

	select {
	case <-sub:
		t.Fatal("non-finite odometry frame must not be forwarded")
	default:
	}
}

func TestPublishImagesThrottlesToOneFramePerInterval(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := New(WithClock(clock), WithImageThrottle(time.Second))
	sub, cancel := s.images.subscribe()
	defer cancel()

	first := wire.EncodedImagesMessage{Odometry: identityOdometry(), ColorJPEG: []byte{1}}
	s.PublishImages(first)
	require.Equal(t, first, <-sub)

	// Within the same interval: discarded at the source.
	second := wire.EncodedImagesMessage{Odometry: identityOdometry(), ColorJPEG: []byte{2}}
	s.PublishImages(second)
	select {
	case <-sub:
		t.Fatal("frame within the throttle interval must be discarded")
	default:
	}

	clock.Advance(time.Second)
	third := wire.EncodedImagesMessage{Odometry: identityOdometry(), ColorJPEG: []byte{3}}
	s.PublishImages(third)
	require.Equal(t, third, <-sub)
}

func TestPublishOdometryIsNeverThrottled(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := New(WithClock(clock), WithImageThrottle(time.Hour))
	sub, cancel := s.odometry.subscribe()
	defer cancel()

	s.PublishOdometry(identityOdometry())
	s.PublishOdometry(identityOdometry())
	require.Equal(t, identityOdometry(), <-sub)
	require.Equal(t, identityOdometry(), <-sub)
}

type stubSessionRecorder struct {
	connects    []string
	disconnects []string
	failConnect bool
}

var errStubConnect = errors.New("stub: connect failed")

func (r *stubSessionRecorder) RecordConnect(remoteAddr string) (uuid.UUID, error) {
	if r.failConnect {
		return uuid.Nil, errStubConnect
	}
	r.connects = append(r.connects, remoteAddr)
	return uuid.New(), nil
}

func (r *stubSessionRecorder) RecordDisconnect(id uuid.UUID, reason string) error {
	r.disconnects = append(r.disconnects, reason)
	return nil
}

func TestSessionRecorderConnectFailureIsSwallowed(t *testing.T) {
	rec := &stubSessionRecorder{failConnect: true}
	s := New(WithSessionRecorder(rec))

	id := s.recordConnect("127.0.0.1:1234")
	require.Equal(t, uuid.Nil, id)
	s.recordDisconnect(id, "n/a") // nil id: must be a no-op, not a call into rec
	require.Empty(t, rec.disconnects)
}

func TestSessionRecorderRecordsConnectAndDisconnect(t *testing.T) {
	rec := &stubSessionRecorder{}
	s := New(WithSessionRecorder(rec))

	id := s.recordConnect("127.0.0.1:1234")
	require.NotEqual(t, uuid.Nil, id)
	require.Equal(t, []string{"127.0.0.1:1234"}, rec.connects)

	s.recordDisconnect(id, "closed")
	require.Equal(t, []string{"closed"}, rec.disconnects)
}
