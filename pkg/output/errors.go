// ABOUTME: Sentinel errors for the output engine
// ABOUTME: Initialization and resource exhaustion failures
package output

import "errors"

var (
	// ErrAlreadyInitialized is returned by Init on a device that is
	// already open
	ErrAlreadyInitialized = errors.New("output: device already initialized")

	// ErrNotInitialized is returned by playback calls before Init
	ErrNotInitialized = errors.New("output: device not initialized")

	// ErrNoFreeVoices is returned when every pooled voice is in use.
	// The requested sound simply does not play.
	ErrNoFreeVoices = errors.New("output: no free voices")

	// ErrSoundClosed is returned by operations on a closed sound handle
	ErrSoundClosed = errors.New("output: sound closed")
)
