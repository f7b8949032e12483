// ABOUTME: Streaming sound backed by a small ring of queued buffers
// ABOUTME: The background pump refills processed buffers until the decoder drains
package output

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/chorus-audio/chorus-go/internal/driver"
	"github.com/chorus-audio/chorus-go/pkg/audio"
	"github.com/chorus-audio/chorus-go/pkg/audio/decode"
)

const (
	// streamBufferCount is the depth of the buffer ring per stream
	streamBufferCount = 6

	// streamBufferLength is the play time of one ring buffer in seconds
	streamBufferLength = 0.125
)

// streamSound decodes incrementally into a ring of queued buffers. The
// device pump calls process to keep the queue topped up; everything else
// runs on the caller's thread.
type streamSound struct {
	dev   *Device
	id    string
	voice driver.VoiceID
	dec   decode.Decoder

	format  audio.Format
	rate    int
	buffers [streamBufferCount]driver.BufferID
	scratch []byte

	// finished marks the decoder as drained. Read by the pump and the
	// caller, so it is atomic.
	finished atomic.Bool

	closed bool
}

// streamBufferBytes sizes one ring buffer: a whole number of frames
// covering streamBufferLength seconds.
func streamBufferBytes(rate int, format audio.Format) int {
	frames := int(float64(rate) * streamBufferLength)
	return audio.FramesToBytes(frames, format.Channels(), format.Sample())
}

// fillSilence pads short reads so the last buffer plays out cleanly
// instead of repeating stale samples
func fillSilence(p []byte, sample audio.SampleType) {
	var b byte
	if sample == audio.UInt8 {
		b = 0x80
	}
	for i := range p {
		p[i] = b
	}
}

// readFull reads until p is full or the decoder drains. A short count
// with io.EOF means the clip ended mid-buffer.
func readFull(dec decode.Decoder, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := dec.Read(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

// fillBuffer decodes one ring buffer's worth of PCM and queues it.
// Marks the stream finished on a short read. Reports whether anything
// was queued.
func (s *streamSound) fillBuffer(b driver.BufferID) (bool, error) {
	n, err := readFull(s.dec, s.scratch)
	if err != nil && err != io.EOF {
		s.finished.Store(true)
		return false, fmt.Errorf("stream decode failed: %w", err)
	}
	if n < len(s.scratch) {
		s.finished.Store(true)
	}
	if n == 0 {
		return false, nil
	}
	fillSilence(s.scratch[n:], s.format.Sample())
	if err := s.dev.drv.BufferData(b, s.format, s.scratch, s.rate); err != nil {
		return false, err
	}
	if err := s.dev.drv.QueueBuffers(s.voice, b); err != nil {
		return false, err
	}
	return true, nil
}

// play primes the ring and starts the voice, then hands the stream to
// the pump. Any queue state from an earlier run is cleared first so the
// stream can restart after a Stop.
func (s *streamSound) play() error {
	if err := s.dev.drv.Stop(s.voice); err != nil {
		return err
	}
	if err := s.dev.drv.DetachBuffers(s.voice); err != nil {
		return err
	}
	s.finished.Store(false)

	for _, b := range s.buffers {
		if s.finished.Load() {
			break
		}
		queued, err := s.fillBuffer(b)
		if err != nil {
			return err
		}
		if !queued {
			break
		}
	}
	if err := s.dev.drv.Play(s.voice); err != nil {
		return err
	}
	s.dev.pump.add(s)
	return nil
}

// process refills processed buffers and restarts the voice after an
// underrun. Called only by the pump. Returns false once the decoder has
// drained and every queued buffer has played; the pump then drops the
// stream.
func (s *streamSound) process() bool {
	processed, err := s.dev.drv.UnqueueProcessed(s.voice)
	if err != nil {
		log.Printf("stream %s: unqueue failed: %v", s.id, err)
		return false
	}
	for _, b := range processed {
		if s.finished.Load() {
			break
		}
		if _, err := s.fillBuffer(b); err != nil {
			log.Printf("stream %s: %v", s.id, err)
			break
		}
	}

	queued, err := s.dev.drv.Queued(s.voice)
	if err != nil {
		return false
	}
	if queued > 0 {
		state, err := s.dev.drv.VoiceState(s.voice)
		if err != nil {
			return false
		}
		if state != driver.StatePlaying && state != driver.StatePaused {
			// Underrun: the voice ran dry before the refill landed
			if err := s.dev.drv.Play(s.voice); err != nil {
				log.Printf("stream %s: restart failed: %v", s.id, err)
			}
		}
	}
	return !(s.finished.Load() && queued == 0)
}

// Stop halts playback and rewinds the decoder. The pump is detached
// first so no refill races the teardown.
func (s *streamSound) Stop() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrSoundClosed
	}
	return s.stopLocked()
}

func (s *streamSound) stopLocked() error {
	s.dev.pump.remove(s)
	s.finished.Store(true)

	var firstErr error
	if err := s.dev.drv.Stop(s.voice); err != nil {
		firstErr = err
	}
	if err := s.dev.drv.DetachBuffers(s.voice); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dec.Rewind(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("rewind failed: %w", err)
	}
	return firstErr
}

// IsPlaying reports true while the voice is audible or the pump still
// has data to feed it
func (s *streamSound) IsPlaying() (bool, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return false, ErrSoundClosed
	}
	state, err := s.dev.drv.VoiceState(s.voice)
	if err != nil {
		return false, err
	}
	if state == driver.StatePlaying || state == driver.StatePaused {
		return true, nil
	}
	return !s.finished.Load(), nil
}

func (s *streamSound) Update(pos Vec3) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrSoundClosed
	}
	return s.dev.drv.SetPosition(s.voice, deviceVec(pos))
}

// Close tears the stream down: pump detach, voice stop, buffer and
// voice release, decoder close. Best effort throughout; the voice goes
// back to the pool exactly once.
func (s *streamSound) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	firstErr := s.stopLocked()
	s.dev.pool.release(s.voice)
	for _, b := range s.buffers {
		if err := s.dev.drv.DeleteBuffer(b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.dec.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	log.Printf("stream %s closed", s.id)
	return firstErr
}
