package sessiondb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vrrop/vrrop/internal/timeutil"
)

func openTestRegistry(t *testing.T, clock timeutil.Clock) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	r, err := OpenWithClock(path, clock)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordConnectAssignsIDAndPersists(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := openTestRegistry(t, clock)

	id, err := r.RecordConnect("10.0.0.5:4242")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	records, err := r.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].SessionID)
	require.Equal(t, "10.0.0.5:4242", records[0].RemoteAddr)
	require.Nil(t, records[0].DisconnectedAt)
}

func TestRecordDisconnectSetsReasonAndTimestamp(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := openTestRegistry(t, clock)

	id, err := r.RecordConnect("10.0.0.5:4242")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	require.NoError(t, r.RecordDisconnect(id, "client closed"))

	records, err := r.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "client closed", records[0].DisconnectReason)
	require.NotNil(t, records[0].DisconnectedAt)
	require.Equal(t, int64(1005), records[0].DisconnectedAt.Unix())
}

func TestRecentSessionsOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := openTestRegistry(t, clock)

	_, err := r.RecordConnect("a")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = r.RecordConnect("b")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = r.RecordConnect("c")
	require.NoError(t, err)

	records, err := r.RecentSessions(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "c", records[0].RemoteAddr)
	require.Equal(t, "b", records[1].RemoteAddr)
}

func TestOpenTwiceOnSamePathIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	r1, err := Open(path)
	require.NoError(t, err)
	_, err = r1.RecordConnect("x")
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := Open(path)
	require.NoError(t, err)
	defer r2.Close()

	records, err := r2.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
