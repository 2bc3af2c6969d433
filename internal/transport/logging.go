// SPDX-License-Identifier: MIT
package transport

import (
	applog "voicedsp/internal/log"
)

// LoggingTransport reports every frame's dominant bin at debug level. It
// is the headless consumer when no other sink is configured.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// OnSpectrumReady logs the peak of the frame.
func (lt *LoggingTransport) OnSpectrumReady(frame Frame) {
	if applog.GetLevel() > applog.LevelDebug {
		return
	}
	bin, value := peak(frame.Magnitudes)
	applog.Debugf("LoggingTransport: frame %d peak bin %d (%.1f Hz) magnitude %.2f",
		frame.Sequence, bin, frame.BinFrequency(bin), value)
}

// Send logs arbitrary data at debug level.
func (lt *LoggingTransport) Send(data any) error {
	applog.Debugf("LoggingTransport: %T %+v", data, data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LoggingTransport: Close called.")
	return nil
}

func peak(mags []float32) (int, float32) {
	var (
		bin   int
		value float32
	)
	for i, m := range mags {
		if m > value {
			bin, value = i, m
		}
	}
	return bin, value
}

// Ensure LoggingTransport satisfies the interfaces at compile time.
var (
	_ Transport = (*LoggingTransport)(nil)
	_ Sink      = (*LoggingTransport)(nil)
)
