// SPDX-License-Identifier: MIT
package transport_test

import (
	"errors"
	"testing"
	"time"

	"voicedsp/internal/transport"

	"github.com/gorilla/websocket"
)

func dialSpectrum(t *testing.T, wst *transport.WebSocketTransport) *websocket.Conn {
	t.Helper()
	url := "ws://" + wst.Addr().String() + "/spectrum"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	// The server registers the client after the handshake completes.
	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) transport.Frame {
	t.Helper()
	var got transport.Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return got
}

func TestWebSocketBroadcastsFrames(t *testing.T) {
	wst, err := transport.NewWebSocketTransport("127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dialSpectrum(t, wst)

	wst.OnSpectrumReady(testFrame(1, 0.25, 2, 0))
	got := readFrame(t, conn)

	if got.Sequence != 1 || got.FFTSize != 6 || got.SampleRate != 44100 {
		t.Errorf("frame header = %+v", got)
	}
	if len(got.Magnitudes) != 3 || got.Magnitudes[1] != 2 {
		t.Errorf("magnitudes = %v, want [0.25 2 0]", got.Magnitudes)
	}
	if !got.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	wst, err := transport.NewWebSocketTransport("127.0.0.1:0", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dialSpectrum(t, wst)

	wst.OnSpectrumReady(testFrame(1, 1))
	wst.OnSpectrumReady(testFrame(2, 1)) // Inside the interval, dropped.
	if err := wst.Send(testFrame(3, 1)); err != nil {
		t.Fatal(err)
	}

	if got := readFrame(t, conn); got.Sequence != 1 {
		t.Errorf("first message seq %d, want 1", got.Sequence)
	}
	if got := readFrame(t, conn); got.Sequence != 3 {
		t.Errorf("second message seq %d, want 3 (frame 2 rate limited)", got.Sequence)
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst, err := transport.NewWebSocketTransport("127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dialSpectrum(t, wst)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count %d after disconnect, want 0", wst.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketClose(t *testing.T) {
	wst, err := transport.NewWebSocketTransport("127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := wst.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := wst.Send(testFrame(1, 1)); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	// Must not panic or block.
	wst.OnSpectrumReady(testFrame(2, 1))
}

func TestWebSocketListenError(t *testing.T) {
	wst, err := transport.NewWebSocketTransport("127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	if _, err := transport.NewWebSocketTransport(wst.Addr().String(), 0); err == nil {
		t.Error("second listener on the same address succeeded")
	}
}
