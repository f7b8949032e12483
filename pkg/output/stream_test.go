// ABOUTME: Tests for streaming playback, the buffer ring, and the pump
// ABOUTME: Drives hardware progress through the fake backend by hand
package output

import (
	"errors"
	"testing"

	"github.com/chorus-audio/chorus-go/internal/driver"
)

// One ring buffer at 8000 Hz mono u8 holds 1000 bytes
const testBufBytes = 1000

// newStreamDevice builds an initialized device with the pump halted so
// tests can step process and sweep deterministically
func newStreamDevice(t *testing.T, fake *driver.Fake, dec *memDecoder) *Device {
	t.Helper()
	d := newTestDevice(t, fake, openerFor(dec))
	d.pump.stop()
	return d
}

func streamBytes(n int) *memDecoder {
	return &memDecoder{info: monoInfo(), data: make([]byte, n)}
}

func TestStreamPrimesFullRing(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 10)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	queued := fake.QueuedIDs(st.voice)
	if len(queued) != streamBufferCount {
		t.Fatalf("queued %d buffers, want %d", len(queued), streamBufferCount)
	}
	for _, b := range queued {
		if got := fake.BufferBytes(b); got != testBufBytes {
			t.Errorf("buffer %d holds %d bytes, want %d", b, got, testBufBytes)
		}
	}
	if playing, _ := s.IsPlaying(); !playing {
		t.Error("IsPlaying = false right after stream start")
	}
}

func TestStreamShortClipPadsLastBuffer(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes*2 + testBufBytes/2)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("short.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	queued := fake.QueuedIDs(st.voice)
	if len(queued) != 3 {
		t.Fatalf("queued %d buffers, want 3", len(queued))
	}
	// The short final read is padded to a full buffer of silence
	if got := fake.BufferBytes(queued[2]); got != testBufBytes {
		t.Errorf("final buffer holds %d bytes, want %d", got, testBufBytes)
	}
	if !st.finished.Load() {
		t.Error("stream not marked finished after draining the decoder")
	}
}

func TestStreamRefillsProcessedBuffers(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	fake.FinishBuffers(st.voice, 2)
	if !st.process() {
		t.Fatal("process = false with data remaining")
	}
	if got, _ := fake.Queued(st.voice); got != streamBufferCount {
		t.Errorf("queued = %d after refill, want %d", got, streamBufferCount)
	}
	if got := len(fake.QueuedIDs(st.voice)); got > streamBufferCount {
		t.Errorf("ring grew to %d buffers", got)
	}
}

func TestStreamNoReadsAfterFinish(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 2)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("short.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	if !st.finished.Load() {
		t.Fatal("stream not finished after priming past the clip end")
	}
	reads := dec.reads
	fake.FinishBuffers(st.voice, 1)
	st.process()
	fake.FinishBuffers(st.voice, 1)
	st.process()
	if dec.reads != reads {
		t.Errorf("decoder read %d more times after finishing", dec.reads-reads)
	}
}

func TestStreamDrainsToDone(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 2)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("short.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	// Still live while queued audio remains
	if !st.process() {
		t.Fatal("process = false with buffers still queued")
	}

	fake.FinishBuffers(st.voice, streamBufferCount)
	fake.ForceState(st.voice, driver.StateStopped)
	if st.process() {
		t.Error("process = true after the queue drained")
	}
	if playing, _ := s.IsPlaying(); playing {
		t.Error("IsPlaying = true after the stream drained")
	}
}

func TestStreamUnderrunRestart(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)
	plays := fake.PlayCalls(st.voice)

	// The voice ran dry before the pump got there
	fake.FinishBuffers(st.voice, streamBufferCount)
	fake.ForceState(st.voice, driver.StateStopped)

	if !st.process() {
		t.Fatal("process = false with decoder data remaining")
	}
	if got := fake.PlayCalls(st.voice); got != plays+1 {
		t.Errorf("PlayCalls = %d after underrun, want %d", got, plays+1)
	}
	if got, _ := fake.Queued(st.voice); got != streamBufferCount {
		t.Errorf("queued = %d after underrun refill, want %d", got, streamBufferCount)
	}
}

func TestStreamOneByteShortOfFullRing(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes*streamBufferCount - 1)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("clip.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	if got, _ := fake.Queued(st.voice); got != streamBufferCount {
		t.Fatalf("queued = %d, want %d", got, streamBufferCount)
	}
	if !st.finished.Load() {
		t.Error("stream not finished after the short final buffer")
	}

	fake.FinishBuffers(st.voice, streamBufferCount)
	fake.ForceState(st.voice, driver.StateStopped)
	if st.process() {
		t.Error("process = true after everything played")
	}
}

func TestStreamStopRewindsDecoder(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if dec.rewinds != 1 {
		t.Errorf("rewinds = %d after Stop, want 1", dec.rewinds)
	}
	if got, _ := fake.Queued(st.voice); got != 0 {
		t.Errorf("queued = %d after Stop, want 0", got)
	}
	if playing, _ := s.IsPlaying(); playing {
		t.Error("IsPlaying = true after Stop")
	}
}

func TestStreamRestartAfterStop(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	fake.FinishBuffers(st.voice, 3)
	st.process()
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := st.play(); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if st.finished.Load() {
		t.Error("finished flag still set after replay")
	}
	if got, _ := fake.Queued(st.voice); got != streamBufferCount {
		t.Errorf("queued = %d after replay, want %d", got, streamBufferCount)
	}
	if state, _ := fake.VoiceState(st.voice); state != driver.StatePlaying {
		t.Errorf("state after replay = %v, want playing", state)
	}
	if playing, _ := s.IsPlaying(); !playing {
		t.Error("IsPlaying = false after replay")
	}
}

func TestStreamCloseReleasesEverything(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)
	free := d.VoicesFree()

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	if got := fake.LiveBuffers(); got != streamBufferCount {
		t.Errorf("LiveBuffers = %d, want %d", got, streamBufferCount)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := d.VoicesFree(); got != free {
		t.Errorf("VoicesFree = %d after close, want %d", got, free)
	}
	if got := fake.LiveBuffers(); got != 0 {
		t.Errorf("LiveBuffers = %d after close, want 0", got)
	}
	if !dec.closed {
		t.Error("decoder left open after close")
	}

	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if got := d.VoicesFree(); got != free {
		t.Errorf("VoicesFree = %d after double close, want %d", got, free)
	}
}

func TestStreamFailureReturnsVoice(t *testing.T) {
	fake := driver.NewFake()
	fake.GenBufferErr = errors.New("out of memory")
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)
	free := d.VoicesFree()

	if _, err := d.StreamSound("long.ogg", 1, 1); err == nil {
		t.Fatal("StreamSound succeeded, want error")
	}
	if got := d.VoicesFree(); got != free {
		t.Errorf("VoicesFree = %d after failed stream, want %d", got, free)
	}
	if got := fake.LiveBuffers(); got != 0 {
		t.Errorf("LiveBuffers = %d after failed stream, want 0", got)
	}
	if !dec.closed {
		t.Error("decoder left open after failed stream")
	}
}

func TestStream3DParams(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 10)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound3D("long.ogg", Vec3{1, 2, 3}, 0.8, 1, 10, 500)
	if err != nil {
		t.Fatalf("StreamSound3D failed: %v", err)
	}
	defer s.Close()

	p := fake.VoiceParams(s.(*streamSound).voice)
	if p.Relative {
		t.Error("3D stream is listener-relative")
	}
	if p.Position != [3]float32{1, 3, -2} {
		t.Errorf("position = %v, want [1 3 -2]", p.Position)
	}
	if p.Gain != 0.8 || p.RefDistance != 10 || p.MaxDistance != 500 || p.Rolloff != 1 {
		t.Errorf("params = %+v", p)
	}
	if p.Loop {
		t.Error("stream queued with loop set")
	}
}

func TestPumpSweepDropsFinishedStreams(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 2)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("short.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	d.pump.sweep()
	d.pump.mu.Lock()
	n := len(d.pump.streams)
	d.pump.mu.Unlock()
	if n != 1 {
		t.Fatalf("%d streams registered after sweep, want 1", n)
	}

	fake.FinishBuffers(st.voice, streamBufferCount)
	fake.ForceState(st.voice, driver.StateStopped)
	d.pump.sweep()

	d.pump.mu.Lock()
	n = len(d.pump.streams)
	d.pump.mu.Unlock()
	if n != 0 {
		t.Errorf("%d streams registered after drain, want 0", n)
	}
}

func TestPumpAddIdempotent(t *testing.T) {
	fake := driver.NewFake()
	dec := streamBytes(testBufBytes * 20)
	d := newStreamDevice(t, fake, dec)

	s, err := d.StreamSound("long.ogg", 1, 1)
	if err != nil {
		t.Fatalf("StreamSound failed: %v", err)
	}
	defer s.Close()
	st := s.(*streamSound)

	d.pump.add(st)
	d.pump.add(st)
	d.pump.mu.Lock()
	n := len(d.pump.streams)
	d.pump.mu.Unlock()
	if n != 1 {
		t.Errorf("%d registrations after duplicate adds, want 1", n)
	}
}
