// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "voicedsp/internal/log"
	"voicedsp/internal/transport"
)

// HeaderSize is the fixed part of every packet: sequence, timestamp, count.
const HeaderSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("short UDP spectrum packet")

// UDPPublisher keeps the most recent spectrum handed to it by the engine
// and sends it over UDP at a fixed interval, so the network sees a steady
// rate regardless of the capture block rate. A spectrum is sent at most
// once; ticks with nothing new are skipped.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Stop logic runs once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	latestMu    sync.Mutex
	latest      []float32 // Most recent magnitudes, guarded by latestMu.
	latestTime  time.Time
	fresh       bool
	sendBuffer  []float32 // Publisher-goroutine copy of latest.
	sequenceNum uint32
	sent        uint64

	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher sending through sender. An invalid
// interval (<= 0) defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Target: %s)", interval, sender.Target())

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// OnSpectrumReady records frame as the next spectrum to publish. Only the
// latest frame survives between ticks.
func (p *UDPPublisher) OnSpectrumReady(frame transport.Frame) {
	p.latestMu.Lock()
	if cap(p.latest) < len(frame.Magnitudes) {
		p.latest = make([]float32, len(frame.Magnitudes))
	}
	p.latest = p.latest[:len(frame.Magnitudes)]
	copy(p.latest, frame.Magnitudes)
	p.latestTime = frame.Timestamp
	p.fresh = true
	p.latestMu.Unlock()
}

// Start launches the publishing goroutine. Calling Start while running is
// a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine and waits for it to exit. It is
// safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished after %d packets.", p.sent)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Capture time, Unix ns   |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Magnitude spectrum      |
+-----------------------------------------------------------------------------+
*/

// buildAndSendPacket packs and sends the latest spectrum if it has not
// been sent yet.
func (p *UDPPublisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.fresh {
		p.latestMu.Unlock()
		return
	}
	if cap(p.sendBuffer) < len(p.latest) {
		p.sendBuffer = make([]float32, len(p.latest))
	}
	p.sendBuffer = p.sendBuffer[:len(p.latest)]
	copy(p.sendBuffer, p.latest)
	timestamp := p.latestTime
	p.fresh = false
	p.latestMu.Unlock()

	if len(p.sendBuffer) > math.MaxUint16 {
		applog.Errorf("UDPPublisher: %d magnitudes exceed packet capacity", len(p.sendBuffer))
		return
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := EncodePacket(p.packetBuffer, p.sequenceNum, timestamp, p.sendBuffer); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err != nil {
		// The sender already logged the failure.
		return
	}
	p.sent++
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
}

// EncodePacket writes one spectrum packet to buf.
func EncodePacket(buf *bytes.Buffer, seq uint32, ts time.Time, mags []float32) error {
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, ts.UnixNano())
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(mags)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, mags)
	}
	return err
}

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// DecodePacket parses a packet produced by EncodePacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	seq := binary.BigEndian.Uint32(data[0:4])
	ts := int64(binary.BigEndian.Uint64(data[4:12]))
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) < HeaderSize+4*count {
		return Packet{}, fmt.Errorf("%w: header announces %d magnitudes, payload has %d bytes",
			ErrShortPacket, count, len(data)-HeaderSize)
	}

	mags := make([]float32, count)
	for i := range mags {
		off := HeaderSize + 4*i
		mags[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return Packet{
		Sequence:   seq,
		Timestamp:  time.Unix(0, ts),
		Magnitudes: mags,
	}, nil
}

// Close stops the publisher and closes its sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var (
	_ transport.Sink             = (*UDPPublisher)(nil)
	_ interface{ Close() error } = (*UDPPublisher)(nil)
)
