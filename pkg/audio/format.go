// ABOUTME: Format negotiation between decoded streams and the output device
// ABOUTME: Maps (channel layout, sample type) pairs to native buffer formats
package audio

import "fmt"

// Format is a device-native buffer format
type Format int

const (
	FormatMono8 Format = iota
	FormatMono16
	FormatStereo8
	FormatStereo16
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatMono8:
		return "mono8"
	case FormatMono16:
		return "mono16"
	case FormatStereo8:
		return "stereo8"
	case FormatStereo16:
		return "stereo16"
	}
	return "unknown"
}

// Channels returns the channel layout of the format
func (f Format) Channels() ChannelConfig {
	if f == FormatStereo8 || f == FormatStereo16 {
		return Stereo
	}
	return Mono
}

// Sample returns the sample type of the format
func (f Format) Sample() SampleType {
	if f == FormatMono16 || f == FormatStereo16 {
		return Int16
	}
	return UInt8
}

// UnsupportedFormatError reports a channel/sample combination with no
// device mapping, naming both halves of the pair
type UnsupportedFormatError struct {
	Channels ChannelConfig
	Sample   SampleType
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported sound format (%s, %s)", e.Channels, e.Sample)
}

var formatTable = []struct {
	format   Format
	channels ChannelConfig
	sample   SampleType
}{
	{FormatMono16, Mono, Int16},
	{FormatMono8, Mono, UInt8},
	{FormatStereo16, Stereo, Int16},
	{FormatStereo8, Stereo, UInt8},
}

// ResolveFormat maps a channel layout and sample type to a native buffer
// format. Combinations outside {mono, stereo} x {uint8, int16} return an
// *UnsupportedFormatError.
func ResolveFormat(c ChannelConfig, s SampleType) (Format, error) {
	for _, entry := range formatTable {
		if entry.channels == c && entry.sample == s {
			return entry.format, nil
		}
	}
	return 0, &UnsupportedFormatError{Channels: c, Sample: s}
}
