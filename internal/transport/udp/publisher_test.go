// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"voicedsp/internal/transport"
)

func TestPacketRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	mags := []float32{0, 0.5, 1234.25, 3}

	var buf bytes.Buffer
	if err := EncodePacket(&buf, 42, ts, mags); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != HeaderSize+4*len(mags) {
		t.Fatalf("packet is %d bytes, want %d", buf.Len(), HeaderSize+4*len(mags))
	}

	p, err := DecodePacket(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if p.Sequence != 42 || !p.Timestamp.Equal(ts) {
		t.Errorf("header = (%d, %v), want (42, %v)", p.Sequence, p.Timestamp, ts)
	}
	for i := range mags {
		if p.Magnitudes[i] != mags[i] {
			t.Errorf("magnitude %d = %f, want %f", i, p.Magnitudes[i], mags[i])
		}
	}
}

func TestDecodePacketShort(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePacket(&buf, 1, time.Now(), []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	for _, n := range []int{0, HeaderSize - 1, HeaderSize, len(data) - 1} {
		if _, err := DecodePacket(data[:n]); !errors.Is(err, ErrShortPacket) {
			t.Errorf("DecodePacket(%d bytes) = %v, want ErrShortPacket", n, err)
		}
	}
}

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublisherSendsLatestFrameOnce(t *testing.T) {
	listener := listenUDP(t)
	sender, err := NewUDPSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	publisher, err := NewUDPPublisher(5*time.Millisecond, sender)
	if err != nil {
		t.Fatal(err)
	}
	defer publisher.Close()

	// Only the latest frame before a tick is published.
	publisher.OnSpectrumReady(transport.Frame{Sequence: 1, Timestamp: time.Unix(1, 0), Magnitudes: []float32{1}})
	publisher.OnSpectrumReady(transport.Frame{Sequence: 2, Timestamp: time.Unix(2, 0), Magnitudes: []float32{7, 8}})
	publisher.Start()
	publisher.Start() // No-op while running.

	buf := make([]byte, 2048)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := listener.Read(buf)
	if err != nil {
		t.Fatalf("no packet received: %v", err)
	}
	p, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if p.Sequence != 1 || len(p.Magnitudes) != 2 || p.Magnitudes[1] != 8 || p.Timestamp.Unix() != 2 {
		t.Errorf("packet = %+v, want sequence 1 carrying frame 2", p)
	}

	// Nothing new, nothing sent.
	listener.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := listener.Read(buf); err == nil {
		t.Error("publisher resent a stale spectrum")
	}
}

func TestPublisherStopStart(t *testing.T) {
	listener := listenUDP(t)
	sender, err := NewUDPSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	publisher, err := NewUDPPublisher(0, sender) // Defaults to 16ms.
	if err != nil {
		t.Fatal(err)
	}

	publisher.Start()
	if err := publisher.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := publisher.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}

	publisher.Start()
	publisher.OnSpectrumReady(transport.Frame{Magnitudes: []float32{1}})
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := listener.Read(make([]byte, 64)); err != nil {
		t.Errorf("no packet after restart: %v", err)
	}

	if err := publisher.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
}

func TestNewUDPPublisherNilSender(t *testing.T) {
	if _, err := NewUDPPublisher(time.Millisecond, nil); err == nil {
		t.Error("NewUDPPublisher(nil sender) succeeded")
	}
}

func TestNewUDPSenderBadAddress(t *testing.T) {
	if _, err := NewUDPSender("not an address"); err == nil {
		t.Error("NewUDPSender accepted a malformed address")
	}
}
