// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"voicedsp/internal/audio"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	downArr  = tea.KeyMsg{Type: tea.KeyDown}
	escKey   = tea.KeyMsg{Type: tea.KeyEscape}
)

func testDevices() ([]audio.Device, error) {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 2, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 22050},
	}, nil
}

func pickerUpdate(t *testing.T, m DeviceListModel, msg tea.Msg) (DeviceListModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(DeviceListModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return dm, cmd
}

func loadedPicker(t *testing.T) DeviceListModel {
	t.Helper()
	m := newDeviceListModel(testDevices)
	m, _ = pickerUpdate(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = pickerUpdate(t, m, m.Init()())
	return m
}

func TestPickerListsInputDevicesOnly(t *testing.T) {
	m := loadedPicker(t)

	if len(m.devices) != 2 {
		t.Fatalf("picker lists %d devices, want 2 inputs", len(m.devices))
	}
	view := m.View()
	if strings.Contains(view, "Speakers") {
		t.Error("output-only device listed")
	}
	if !strings.Contains(view, "Built-in Mic") || !strings.Contains(view, "USB Interface") {
		t.Errorf("input devices missing from view:\n%s", view)
	}
}

func TestPickerSelectsDeviceAndRate(t *testing.T) {
	m := loadedPicker(t)

	m, _ = pickerUpdate(t, m, downArr)
	m, _ = pickerUpdate(t, m, enterKey)
	if m.activeScreen != ConfigScreen {
		t.Fatal("enter did not open the configuration screen")
	}
	// The USB device's own 22.05kHz default is offered and preselected.
	if rate := m.availableSampleRates[m.sampleRateIndex]; rate != 22050 {
		t.Errorf("preselected rate %.0f, want 22050", rate)
	}

	m, _ = pickerUpdate(t, m, downArr)
	m, cmd := pickerUpdate(t, m, enterKey)
	if !isQuit(cmd) {
		t.Error("choosing a rate did not end the picker")
	}

	sel := m.Selection()
	if !sel.Chosen || sel.Device.ID != 2 || sel.SampleRate != 44100 {
		t.Errorf("selection = %+v, want device 2 at 44100 Hz", sel)
	}
}

func TestPickerBackAndQuit(t *testing.T) {
	m := loadedPicker(t)

	m, _ = pickerUpdate(t, m, enterKey)
	m, _ = pickerUpdate(t, m, escKey)
	if m.activeScreen != ListScreen {
		t.Error("esc did not return to the list")
	}

	m, cmd := pickerUpdate(t, m, qKey)
	if !isQuit(cmd) {
		t.Error("q did not quit")
	}
	if m.Selection().Chosen {
		t.Error("quitting produced a selection")
	}
}

func TestPickerError(t *testing.T) {
	m := newDeviceListModel(func() ([]audio.Device, error) {
		return nil, errors.New("portaudio not initialized")
	})
	m, _ = pickerUpdate(t, m, m.Init()())

	if !strings.Contains(m.View(), "portaudio not initialized") {
		t.Errorf("error not shown:\n%s", m.View())
	}
	if _, cmd := pickerUpdate(t, m, enterKey); !isQuit(cmd) {
		t.Error("any key should exit after an error")
	}
}

func TestSampleRatesFor(t *testing.T) {
	rates, idx := sampleRatesFor(audio.Device{DefaultSampleRate: 48000})
	if len(rates) != len(commonSampleRates) || rates[idx] != 48000 {
		t.Errorf("rates %v idx %d, want the common list at 48000", rates, idx)
	}

	rates, idx = sampleRatesFor(audio.Device{})
	if rates[idx] != 44100 {
		t.Errorf("unknown default selected %.0f, want 44100", rates[idx])
	}
}
