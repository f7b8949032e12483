// ABOUTME: In-memory playback backend for tests
// ABOUTME: Records every call and lets tests drive buffer consumption
package driver

import (
	"fmt"
	"sync"

	"github.com/chorus-audio/chorus-go/pkg/audio"
)

// Fake is an in-memory Driver. Tests drive "hardware" progress explicitly
// with FinishBuffers and ForceState, and inspect everything the engine did.
type Fake struct {
	// MonoVoices and StereoVoices are reported by MaxVoices
	MonoVoices   int
	StereoVoices int

	// VoiceLimit caps how many voices GenVoice will create (0 = no cap)
	VoiceLimit int

	// Injected failures
	OpenErr       error
	GenVoiceErr   error
	GenBufferErr  error
	BufferDataErr error

	mu             sync.Mutex
	opened         bool
	closeCalls     int
	nextVoice      uint32
	nextBuffer     uint32
	created        int
	voices         map[VoiceID]*fakeVoice
	buffers        map[BufferID]*fakeBuffer
	deletedVoices  []VoiceID
	deletedBuffers []BufferID
	listener       listener
}

type fakeVoice struct {
	state     State
	params    Params
	position  [3]float32
	static    BufferID
	hasStatic bool
	queue     []BufferID
	processed []BufferID
	playCalls int
	stopCalls int
}

type fakeBuffer struct {
	format audio.Format
	data   []byte
	rate   int
}

// NewFake creates a fake backend reporting 16 mono and 16 stereo voices
func NewFake() *Fake {
	return &Fake{
		MonoVoices:   16,
		StereoVoices: 16,
		voices:       make(map[VoiceID]*fakeVoice),
		buffers:      make(map[BufferID]*fakeBuffer),
		listener:     defaultListener(),
	}
}

func (f *Fake) Open(deviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.opened = true
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = false
	f.closeCalls++
	return nil
}

func (f *Fake) MaxVoices() (int, int) {
	return f.MonoVoices, f.StereoVoices
}

func (f *Fake) GenVoice() (VoiceID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GenVoiceErr != nil {
		return 0, f.GenVoiceErr
	}
	if f.VoiceLimit > 0 && f.created >= f.VoiceLimit {
		return 0, fmt.Errorf("fake: voice limit reached")
	}
	f.nextVoice++
	f.created++
	id := VoiceID(f.nextVoice)
	f.voices[id] = &fakeVoice{}
	return id, nil
}

func (f *Fake) DeleteVoice(v VoiceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.voices[v]; !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	delete(f.voices, v)
	f.deletedVoices = append(f.deletedVoices, v)
	return nil
}

func (f *Fake) GenBuffer() (BufferID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GenBufferErr != nil {
		return 0, f.GenBufferErr
	}
	f.nextBuffer++
	id := BufferID(f.nextBuffer)
	f.buffers[id] = &fakeBuffer{}
	return id, nil
}

func (f *Fake) DeleteBuffer(b BufferID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buffers[b]; !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	delete(f.buffers, b)
	f.deletedBuffers = append(f.deletedBuffers, b)
	return nil
}

func (f *Fake) BufferData(b BufferID, format audio.Format, data []byte, sampleRate int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BufferDataErr != nil {
		return f.BufferDataErr
	}
	buf, ok := f.buffers[b]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	buf.format = format
	buf.data = append([]byte(nil), data...)
	buf.rate = sampleRate
	return nil
}

func (f *Fake) AttachBuffer(v VoiceID, b BufferID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	if _, ok := f.buffers[b]; !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	voice.static = b
	voice.hasStatic = true
	return nil
}

func (f *Fake) DetachBuffers(v VoiceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.static = 0
	voice.hasStatic = false
	voice.queue = nil
	voice.processed = nil
	return nil
}

func (f *Fake) QueueBuffers(v VoiceID, bufs ...BufferID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	for _, b := range bufs {
		if _, ok := f.buffers[b]; !ok {
			return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
		}
	}
	voice.queue = append(voice.queue, bufs...)
	return nil
}

func (f *Fake) UnqueueProcessed(v VoiceID) ([]BufferID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return nil, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	done := voice.processed
	voice.processed = nil
	return done, nil
}

func (f *Fake) Queued(v VoiceID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return 0, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	return len(voice.queue), nil
}

func (f *Fake) Play(v VoiceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.state = StatePlaying
	voice.playCalls++
	return nil
}

func (f *Fake) Stop(v VoiceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.state = StateStopped
	voice.stopCalls++
	return nil
}

func (f *Fake) VoiceState(v VoiceID) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return StateInitial, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	return voice.state, nil
}

func (f *Fake) SetParams(v VoiceID, p Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.params = p
	voice.position = p.Position
	return nil
}

func (f *Fake) SetPosition(v VoiceID, pos [3]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.position = pos
	return nil
}

func (f *Fake) SetListener(pos, at, up [3]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = listener{pos: pos, at: at, up: up}
	return nil
}

// FinishBuffers marks up to n queued buffers as played, emulating hardware
// progress. It returns how many buffers were finished.
func (f *Fake) FinishBuffers(v VoiceID, n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	voice, ok := f.voices[v]
	if !ok {
		return 0
	}
	if n > len(voice.queue) {
		n = len(voice.queue)
	}
	voice.processed = append(voice.processed, voice.queue[:n]...)
	voice.queue = voice.queue[n:]
	return n
}

// ForceState overrides a voice's playback state, emulating the hardware
// stopping on its own (underrun or end of static buffer)
func (f *Fake) ForceState(v VoiceID, s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if voice, ok := f.voices[v]; ok {
		voice.state = s
	}
}

// VoiceParams returns the last params applied to a voice
func (f *Fake) VoiceParams(v VoiceID) Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	if voice, ok := f.voices[v]; ok {
		return voice.params
	}
	return Params{}
}

// VoicePosition returns the last position applied to a voice
func (f *Fake) VoicePosition(v VoiceID) [3]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if voice, ok := f.voices[v]; ok {
		return voice.position
	}
	return [3]float32{}
}

// Listener returns the last listener pose applied
func (f *Fake) Listener() (pos, at, up [3]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener.pos, f.listener.at, f.listener.up
}

// QueuedIDs returns a copy of the voice's buffer queue
func (f *Fake) QueuedIDs(v VoiceID) []BufferID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if voice, ok := f.voices[v]; ok {
		return append([]BufferID(nil), voice.queue...)
	}
	return nil
}

// BufferBytes returns how many PCM bytes a buffer holds
func (f *Fake) BufferBytes(b BufferID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if buf, ok := f.buffers[b]; ok {
		return len(buf.data)
	}
	return 0
}

// PlayCalls returns how many times Play was issued on a voice
func (f *Fake) PlayCalls(v VoiceID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if voice, ok := f.voices[v]; ok {
		return voice.playCalls
	}
	return 0
}

// LiveVoices returns the number of voices not yet deleted
func (f *Fake) LiveVoices() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.voices)
}

// LiveBuffers returns the number of buffers not yet deleted
func (f *Fake) LiveBuffers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffers)
}

// DeletedVoices returns the voices deleted so far
func (f *Fake) DeletedVoices() []VoiceID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]VoiceID(nil), f.deletedVoices...)
}

// DeletedBuffers returns the buffers deleted so far
func (f *Fake) DeletedBuffers() []BufferID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BufferID(nil), f.deletedBuffers...)
}
