// SPDX-License-Identifier: MIT
package analysis

import (
	applog "voicedsp/internal/log"
)

// VoiceDetector flags frames whose energy is concentrated in the voice
// band. It is a display aid, not a speech classifier.
type VoiceDetector struct {
	threshold float64 // Minimum mean squared magnitude in the voice band.
	minShare  float64 // Minimum fraction of spectrum energy in the voice band.
	active    bool
}

// NewVoiceDetector creates a detector. minShare is clamped to [0, 1].
func NewVoiceDetector(threshold, minShare float64) *VoiceDetector {
	minShare = max(0, min(minShare, 1))
	applog.Debugf("Analysis: Initializing VoiceDetector (Threshold: %.2f, MinShare: %.2f)", threshold, minShare)
	return &VoiceDetector{
		threshold: threshold,
		minShare:  minShare,
	}
}

// Process reports whether the voice band dominates. bands must contain a
// band named BandVoice; without one the result is always false.
func (vd *VoiceDetector) Process(bands []BandEnergy) bool {
	active := false
	for _, b := range bands {
		if b.Name == BandVoice {
			active = b.Energy > vd.threshold && b.Share >= vd.minShare
			break
		}
	}

	if active != vd.active {
		applog.Debugf("VoiceDetector: voice band active=%v", active)
	}
	vd.active = active
	return active
}

// Active returns the result of the last Process call.
func (vd *VoiceDetector) Active() bool {
	return vd.active
}
