// ABOUTME: Tests for the PCM format model
// ABOUTME: Covers frame math and enum names
package audio

import "testing"

func TestBytesPerFrame(t *testing.T) {
	tests := []struct {
		channels ChannelConfig
		sample   SampleType
		want     int
	}{
		{Mono, UInt8, 1},
		{Mono, Int16, 2},
		{Stereo, UInt8, 2},
		{Stereo, Int16, 4},
	}

	for _, tt := range tests {
		got := BytesPerFrame(tt.channels, tt.sample)
		if got != tt.want {
			t.Errorf("BytesPerFrame(%s, %s) = %d, want %d", tt.channels, tt.sample, got, tt.want)
		}
	}
}

func TestFramesToBytes(t *testing.T) {
	// 0.125s at 44100Hz stereo int16
	got := FramesToBytes(5512, Stereo, Int16)
	if got != 22048 {
		t.Errorf("expected 22048 bytes, got %d", got)
	}
}

func TestBytesToFrames(t *testing.T) {
	got := BytesToFrames(22048, Stereo, Int16)
	if got != 5512 {
		t.Errorf("expected 5512 frames, got %d", got)
	}

	// Truncates to whole frames
	got = BytesToFrames(22049, Stereo, Int16)
	if got != 5512 {
		t.Errorf("expected 5512 frames for partial frame, got %d", got)
	}
}

func TestChannelConfigNames(t *testing.T) {
	if Mono.String() != "mono" {
		t.Errorf("expected 'mono', got %q", Mono.String())
	}
	if Stereo.String() != "stereo" {
		t.Errorf("expected 'stereo', got %q", Stereo.String())
	}
	if ChannelConfig(99).String() != "unknown" {
		t.Errorf("expected 'unknown' for invalid layout, got %q", ChannelConfig(99).String())
	}
}

func TestSampleTypeNames(t *testing.T) {
	if UInt8.String() != "uint8" {
		t.Errorf("expected 'uint8', got %q", UInt8.String())
	}
	if Int16.String() != "int16" {
		t.Errorf("expected 'int16', got %q", Int16.String())
	}
}
