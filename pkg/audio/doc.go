// ABOUTME: Audio fundamentals package providing the PCM format model
// ABOUTME: Defines channel layouts, sample types and format negotiation
// Package audio provides the PCM format model shared by decoders and the
// output engine.
//
// It defines the supported channel layouts (mono, stereo) and sample types
// (8-bit unsigned, 16-bit signed), the frame size arithmetic over them, and
// ResolveFormat, which negotiates a device-native buffer format for a
// decoded stream:
//
//	format, err := audio.ResolveFormat(audio.Stereo, audio.Int16)
//	if err != nil {
//	    // the combination has no device mapping
//	}
package audio
