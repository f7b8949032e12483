// ABOUTME: Package documentation for the output engine
// ABOUTME: Describes the device, voices, and the two playback modes
//
// Package output mixes and plays sounds through an audio device.
//
// A Device owns a fixed pool of hardware voices. Short clips play as
// one-shots, fully decoded into a single buffer. Long sources play as
// streams, decoded incrementally into a small ring of buffers serviced
// by a background pump. Both modes return a Sound handle for stopping,
// position updates, and release.
//
// Positions use engine world coordinates (right-handed, z up); the
// package remaps them to device coordinates internally.
package output
