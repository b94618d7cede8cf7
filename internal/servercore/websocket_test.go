package servercore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vrrop/vrrop/internal/wire"
)

func TestServeWSForwardsImagesAndDispatchesCommands(t *testing.T) {
	// S6: ClientCore sends Reset; ServerCore's on_command callback is
	// invoked with Reset within 100 ms.
	commands := make(chan wire.Command, 1)
	s := New(WithOnCommand(func(cmd wire.Command) { commands <- cmd }))

	srv := httptest.NewServer(http.HandlerFunc(s.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	payload := wire.EncodeCommand(wire.Command{Kind: wire.CommandReset})
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, payload))

	select {
	case cmd := <-commands:
		require.Equal(t, wire.CommandReset, cmd.Kind)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("on_command was not invoked within 100ms")
	}

	frame := wire.EncodedImagesMessage{Odometry: identityOdometry(), ColorJPEG: []byte{9, 9}}
	s.PublishImages(frame)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	got, err := wire.DecodeEncodedImagesMessage(data)
	require.NoError(t, err)
	require.Equal(t, frame.ColorJPEG, got.ColorJPEG)
}

func TestServeWSRegistersImageSubscriber(t *testing.T) {
	s := New()
	srv := httptest.NewServer(http.HandlerFunc(s.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return s.ImageSubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)
}
