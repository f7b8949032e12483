// ABOUTME: Sound handle interface and the fully-buffered one-shot sound
// ABOUTME: One-shots decode the whole clip up front into a single buffer
package output

import (
	"fmt"
	"io"
	"log"

	"github.com/chorus-audio/chorus-go/internal/driver"
	"github.com/chorus-audio/chorus-go/pkg/audio/decode"
)

// Sound is a handle to a playing sound. Handles stay valid after
// playback ends; Close releases the voice and buffers.
type Sound interface {
	// Stop halts playback. The handle stays usable.
	Stop() error

	// IsPlaying reports whether the sound is still audible or pending
	IsPlaying() (bool, error)

	// Update moves the sound to a new world position. Only meaningful
	// for sounds started with a 3D play call.
	Update(pos Vec3) error

	// Close stops the sound and releases its voice and buffers back to
	// the device. Safe to call more than once.
	Close() error
}

// oneShot plays a fully-decoded clip from one static buffer
type oneShot struct {
	dev    *Device
	id     string
	voice  driver.VoiceID
	buffer driver.BufferID
	closed bool
}

func (s *oneShot) Stop() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrSoundClosed
	}
	return s.dev.drv.Stop(s.voice)
}

func (s *oneShot) IsPlaying() (bool, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return false, ErrSoundClosed
	}
	state, err := s.dev.drv.VoiceState(s.voice)
	if err != nil {
		return false, err
	}
	return state == driver.StatePlaying || state == driver.StatePaused, nil
}

func (s *oneShot) Update(pos Vec3) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrSoundClosed
	}
	return s.dev.drv.SetPosition(s.voice, deviceVec(pos))
}

// Close stops the voice, detaches the buffer, and returns the voice to
// the pool. The voice goes back exactly once no matter how often Close
// is called.
func (s *oneShot) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.dev.drv.Stop(s.voice); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dev.drv.DetachBuffers(s.voice); err != nil && firstErr == nil {
		firstErr = err
	}
	s.dev.pool.release(s.voice)
	if err := s.dev.drv.DeleteBuffer(s.buffer); err != nil && firstErr == nil {
		firstErr = err
	}
	log.Printf("sound %s closed", s.id)
	return firstErr
}

// loadAll drains a decoder into memory, growing the buffer in chunks
func loadAll(dec decode.Decoder) ([]byte, error) {
	const chunk = 32768
	data := make([]byte, 0, chunk)
	buf := make([]byte, chunk)
	for {
		n, err := dec.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode failed: %w", err)
		}
	}
}
