// ABOUTME: Hardware playback abstraction used by the output engine
// ABOUTME: Defines voice/buffer handles and the Driver backend interface
package driver

import (
	"errors"
	"fmt"

	"github.com/chorus-audio/chorus-go/pkg/audio"
)

// VoiceID is an opaque handle to one hardware playback channel.
// Handles are table indices owned by the backend, never pointers.
type VoiceID uint32

// BufferID is an opaque handle to a block of raw PCM owned by the backend
type BufferID uint32

// State is the playback state of a voice
type State int

const (
	StateInitial State = iota
	StatePlaying
	StatePaused
	StateStopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Params holds the playback parameters of a voice
type Params struct {
	Gain  float32
	Pitch float32
	Loop  bool

	// Relative marks the position as listener-relative rather than a
	// world position
	Relative bool
	Position [3]float32

	RefDistance float32
	MaxDistance float32
	Rolloff     float32
}

// ErrBadHandle reports an operation on an unknown voice or buffer handle
var ErrBadHandle = errors.New("driver: bad handle")

// Driver is a hardware playback backend.
//
// A voice consumes either one static buffer (AttachBuffer) or a queue of
// buffers (QueueBuffers). Calls never block on the hardware; they are
// status queries or fire-and-forget commands.
type Driver interface {
	// Open opens the named device, or the default device for ""
	Open(deviceName string) error

	// Close tears the device down. Safe to call more than once.
	Close() error

	// MaxVoices reports the device's maximum concurrent mono and stereo
	// voice counts
	MaxVoices() (mono, stereo int)

	GenVoice() (VoiceID, error)
	DeleteVoice(v VoiceID) error

	GenBuffer() (BufferID, error)
	DeleteBuffer(b BufferID) error

	// BufferData stores PCM data into a buffer
	BufferData(b BufferID, format audio.Format, data []byte, sampleRate int) error

	// AttachBuffer sets a static buffer for whole-clip playback
	AttachBuffer(v VoiceID, b BufferID) error

	// DetachBuffers clears the static buffer or the whole queue
	DetachBuffers(v VoiceID) error

	// QueueBuffers appends buffers to the voice's playback queue
	QueueBuffers(v VoiceID, bufs ...BufferID) error

	// UnqueueProcessed removes and returns the buffers the voice has
	// finished playing
	UnqueueProcessed(v VoiceID) ([]BufferID, error)

	// Queued reports how many buffers remain queued to the voice
	Queued(v VoiceID) (int, error)

	Play(v VoiceID) error
	Stop(v VoiceID) error
	VoiceState(v VoiceID) (State, error)

	SetParams(v VoiceID, p Params) error
	SetPosition(v VoiceID, pos [3]float32) error

	// SetListener sets the global listening position and orientation in
	// device coordinates
	SetListener(pos, at, up [3]float32) error
}

// New creates a backend by name. The empty name selects the default
// oto backend.
func New(backend string) (Driver, error) {
	switch backend {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", backend)
	}
}
