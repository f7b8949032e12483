// ABOUTME: Channel layout and sample type model for device audio
// ABOUTME: Defines ChannelConfig, SampleType and frame/byte size math
package audio

// ChannelConfig describes the channel layout of a PCM stream
type ChannelConfig int

const (
	Mono ChannelConfig = iota
	Stereo
)

// String returns the layout name used in error messages
func (c ChannelConfig) String() string {
	switch c {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	}
	return "unknown"
}

// Count returns the number of channels in the layout
func (c ChannelConfig) Count() int {
	if c == Stereo {
		return 2
	}
	return 1
}

// SampleType describes the encoding of a single PCM sample
type SampleType int

const (
	UInt8 SampleType = iota
	Int16
)

// String returns the sample type name used in error messages
func (s SampleType) String() string {
	switch s {
	case UInt8:
		return "uint8"
	case Int16:
		return "int16"
	}
	return "unknown"
}

// ByteSize returns the size of one sample in bytes
func (s SampleType) ByteSize() int {
	if s == Int16 {
		return 2
	}
	return 1
}

// BytesPerFrame returns the size of one frame (one sample per channel)
func BytesPerFrame(c ChannelConfig, s SampleType) int {
	return c.Count() * s.ByteSize()
}

// FramesToBytes converts a frame count to a byte count
func FramesToBytes(frames int, c ChannelConfig, s SampleType) int {
	return frames * BytesPerFrame(c, s)
}

// BytesToFrames converts a byte count to a whole frame count
func BytesToFrames(bytes int, c ChannelConfig, s SampleType) int {
	return bytes / BytesPerFrame(c, s)
}
