package recorderplayer

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrrop/vrrop/internal/fsutil"
	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

func identityOdometry(stampNanos int64) wire.Odometry {
	return wire.Odometry{StampUnixNanos: stampNanos, Translation: r3.Vec{}, Rotation: quat.Number{Real: 1}}
}

func TestRecordAndPlaybackRoundTrip(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	rec, err := NewRecorder(fs, "/bag")
	require.NoError(t, err)

	require.NoError(t, rec.RecordOdometry(identityOdometry(1_000_000_000)))

	intrinsics := wire.CameraIntrinsics{Width: 2, Height: 2, Fx: 1, Fy: 1, Cx: 1, Cy: 1}
	require.NoError(t, rec.RecordImages(wire.EncodedImagesMessage{
		Odometry:        identityOdometry(1_100_000_000),
		ColorIntrinsics: intrinsics,
		DepthIntrinsics: intrinsics,
		DepthUnit:       0.001,
		ColorJPEG:       []byte{1, 2, 3},
		DepthPNG:        []byte{4, 5, 6},
	}))

	require.NoError(t, rec.RecordOdometry(identityOdometry(1_200_000_000)))

	clock := timeutil.NewMockClock(time.Unix(100, 0))
	player, err := NewPlayer(fs, "/bag", clock)
	require.NoError(t, err)
	require.Equal(t, 3, player.TotalEvents())

	player.Start()

	when, ok := player.PollNextEventTime()
	require.True(t, ok)
	require.Equal(t, clock.Now(), when) // first entry has zero offset from itself

	first, err := player.NextEvent()
	require.NoError(t, err)
	require.NotNil(t, first.Odometry)
	require.Equal(t, clock.Now().UnixNano(), first.Odometry.StampUnixNanos)

	when, ok = player.PollNextEventTime()
	require.True(t, ok)
	require.Equal(t, clock.Now().Add(100*time.Millisecond), when)

	second, err := player.NextEvent()
	require.NoError(t, err)
	require.NotNil(t, second.Images)
	require.Equal(t, []byte{1, 2, 3}, second.Images.ColorJPEG)
	require.Equal(t, []byte{4, 5, 6}, second.Images.DepthPNG)
	require.Equal(t, clock.Now().Add(100*time.Millisecond).UnixNano(), second.Images.Odometry.StampUnixNanos)

	third, err := player.NextEvent()
	require.NoError(t, err)
	require.NotNil(t, third.Odometry)
	require.Equal(t, 0, player.Remaining())

	_, err = player.NextEvent()
	require.ErrorIs(t, err, io.EOF)
}

func TestPollNextEventTimeFalseBeforeStart(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	rec, err := NewRecorder(fs, "/bag")
	require.NoError(t, err)
	require.NoError(t, rec.RecordOdometry(identityOdometry(0)))

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	player, err := NewPlayer(fs, "/bag", clock)
	require.NoError(t, err)

	_, ok := player.PollNextEventTime()
	require.False(t, ok)
}

func TestRecordImagesValidatesConstructedPathStaysWithinBagDir(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	rec, err := NewRecorder(fs, "/bag")
	require.NoError(t, err)

	// Extreme stamps (including negative ones) must still resolve to a
	// path the traversal guard accepts, since the stamp only contributes
	// an integer (digits and possibly a leading minus sign) to the filename.
	err = rec.RecordImages(wire.EncodedImagesMessage{
		Odometry:  identityOdometry(-1),
		ColorJPEG: []byte{1},
		DepthPNG:  []byte{2},
	})
	require.NoError(t, err)
}
