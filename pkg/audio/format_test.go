// ABOUTME: Tests for format negotiation
// ABOUTME: Covers the four supported pairs and rejection of everything else
package audio

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveFormatSupportedPairs(t *testing.T) {
	tests := []struct {
		channels ChannelConfig
		sample   SampleType
		want     Format
	}{
		{Mono, UInt8, FormatMono8},
		{Mono, Int16, FormatMono16},
		{Stereo, UInt8, FormatStereo8},
		{Stereo, Int16, FormatStereo16},
	}

	for _, tt := range tests {
		got, err := ResolveFormat(tt.channels, tt.sample)
		if err != nil {
			t.Errorf("ResolveFormat(%s, %s) failed: %v", tt.channels, tt.sample, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveFormat(%s, %s) = %s, want %s", tt.channels, tt.sample, got, tt.want)
		}
	}
}

func TestResolveFormatUnsupported(t *testing.T) {
	_, err := ResolveFormat(ChannelConfig(7), Int16)
	if err == nil {
		t.Fatal("expected error for unsupported channel layout")
	}

	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected *UnsupportedFormatError, got %T", err)
	}

	_, err = ResolveFormat(Mono, SampleType(7))
	if err == nil {
		t.Fatal("expected error for unsupported sample type")
	}
}

func TestUnsupportedFormatErrorNamesBothHalves(t *testing.T) {
	err := &UnsupportedFormatError{Channels: Stereo, Sample: UInt8}

	msg := err.Error()
	if !strings.Contains(msg, "stereo") {
		t.Errorf("error %q does not name the channel layout", msg)
	}
	if !strings.Contains(msg, "uint8") {
		t.Errorf("error %q does not name the sample type", msg)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatMono8, FormatMono16, FormatStereo8, FormatStereo16} {
		resolved, err := ResolveFormat(f.Channels(), f.Sample())
		if err != nil {
			t.Errorf("ResolveFormat round trip failed for %s: %v", f, err)
			continue
		}
		if resolved != f {
			t.Errorf("round trip for %s yielded %s", f, resolved)
		}
	}
}
