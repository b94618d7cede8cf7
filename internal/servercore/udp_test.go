package servercore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

func dialLoopbackUDP(t *testing.T, s *ServerCore) (*net.UDPConn, *net.UDPConn, func()) {
	t.Helper()
	serverAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server, err := net.ListenUDP("udp", serverAddr)
	require.NoError(t, err)

	client, err := net.DialUDP("udp", nil, server.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	return server, client, func() {
		client.Close()
		server.Close()
	}
}

func TestServeUDPRepliesToPingWithPong(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	s := New(WithClock(clock))
	server, client, closeAll := dialLoopbackUDP(t, s)
	defer closeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ServeUDP(ctx, server)

	ping := wire.EncodeUDPClientMessage(wire.UDPClientMessage{
		Kind: wire.UDPClientPing,
		Ping: wire.PingMessage{ClientTimeUnixNanos: 42},
	})
	_, err := client.Write(ping)
	require.NoError(t, err)

	buf := make([]byte, 2048)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)

	reply, err := wire.DecodeUDPServerMessage(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.UDPServerPong, reply.Kind)
	require.Equal(t, int64(42), reply.Pong.ClientTimeUnixNanos)
	require.Equal(t, clock.Now().UnixNano(), reply.Pong.ServerTimeUnixNanos)
}

func TestServeUDPFansOdometryToLiveClientsOnly(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	s := New(WithClock(clock))
	server, client, closeAll := dialLoopbackUDP(t, s)
	defer closeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.ServeUDP(ctx, server)

	// Register the client in the table via a ping.
	ping := wire.EncodeUDPClientMessage(wire.UDPClientMessage{Kind: wire.UDPClientPing})
	_, err := client.Write(ping)
	require.NoError(t, err)
	buf := make([]byte, 2048)
	client.SetReadDeadline(time.Now().Add(time.Second))
	_, err = client.Read(buf)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.UDPClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.PublishOdometry(identityOdometry())

	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)
	got, err := wire.DecodeUDPServerMessage(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.UDPServerOdometry, got.Kind)

	// Once the client goes stale, it stops receiving odometry.
	clock.Advance(6 * time.Second)
	s.PublishOdometry(identityOdometry())

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = client.Read(buf)
	require.Error(t, err, "stale client must not receive further odometry")
}

func TestEvictStaleClientsRemovesExpiredEntries(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := New(WithClock(clock))

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	s.touchClient(addr)
	require.Equal(t, 1, s.UDPClientCount())

	clock.Advance(6 * time.Second)
	live := s.evictStaleClients()
	require.Empty(t, live)
	require.Equal(t, 0, s.UDPClientCount())
}
