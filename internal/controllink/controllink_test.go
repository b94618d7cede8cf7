package controllink

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrrop/vrrop/internal/wire"
)

func dialLoopbackUDP(t *testing.T) (*net.UDPConn, *net.UDPConn, func()) {
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

func TestServeDispatchesDecodedMessages(t *testing.T) {
	var mu sync.Mutex
	var got []wire.ControlMessage

	s := New(WithOnMessage(func(msg wire.ControlMessage) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	}))

	server, client, closeAll := dialLoopbackUDP(t)
	defer closeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, server)

	payload := wire.EncodeControlMessage(wire.ControlMessage{
		Kind:    wire.ControlSetTargetVelocity,
		Forward: 1.5,
		Turn:    -0.25,
	})
	_, err := client.Write(payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, wire.ControlSetTargetVelocity, got[0].Kind)
	require.Equal(t, float32(1.5), got[0].Forward)
	require.Equal(t, float32(-0.25), got[0].Turn)
}

func TestServeSurvivesMalformedDatagram(t *testing.T) {
	var mu sync.Mutex
	var got []wire.ControlMessage

	s := New(WithOnMessage(func(msg wire.ControlMessage) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	}))

	server, client, closeAll := dialLoopbackUDP(t)
	defer closeAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, server)

	// Unknown kind byte: DecodeControlMessage errors, must be dropped
	// without killing the server.
	_, err := client.Write([]byte{99})
	require.NoError(t, err)

	valid := wire.EncodeControlMessage(wire.ControlMessage{Kind: wire.ControlSetLegLength, LegLength: 0.3})
	_, err = client.Write(valid)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, wire.ControlSetLegLength, got[0].Kind)
	require.Equal(t, float32(0.3), got[0].LegLength)
}

func TestClientSendRoundTrip(t *testing.T) {
	serverAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server, err := net.ListenUDP("udp", serverAddr)
	require.NoError(t, err)
	defer server.Close()

	client, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(wire.ControlMessage{Kind: wire.ControlSetLegLength, LegLength: 0.42}))

	buf := make([]byte, 32)
	server.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := server.ReadFromUDP(buf)
	require.NoError(t, err)

	got, err := wire.DecodeControlMessage(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.ControlSetLegLength, got.Kind)
	require.Equal(t, float32(0.42), got.LegLength)
}
