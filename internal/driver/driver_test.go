// ABOUTME: Tests for backend selection and the fake backend's semantics
// ABOUTME: Exercises the queue, static attach, and handle lifecycle rules
package driver

import (
	"errors"
	"testing"

	"github.com/chorus-audio/chorus-go/pkg/audio"
)

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("pulse"); err == nil {
		t.Error("New accepted an unknown backend name")
	}
	for _, name := range []string{"", "oto", "malgo"} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q) failed: %v", name, err)
		}
	}
}

func TestFakeVoiceLifecycle(t *testing.T) {
	f := NewFake()
	if err := f.Open(""); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	v, err := f.GenVoice()
	if err != nil {
		t.Fatalf("GenVoice failed: %v", err)
	}
	if state, _ := f.VoiceState(v); state != StateInitial {
		t.Errorf("new voice state = %v, want initial", state)
	}

	if err := f.Play(v); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if state, _ := f.VoiceState(v); state != StatePlaying {
		t.Errorf("state after Play = %v, want playing", state)
	}
	if err := f.Stop(v); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if state, _ := f.VoiceState(v); state != StateStopped {
		t.Errorf("state after Stop = %v, want stopped", state)
	}

	if err := f.DeleteVoice(v); err != nil {
		t.Fatalf("DeleteVoice failed: %v", err)
	}
	if err := f.Play(v); !errors.Is(err, ErrBadHandle) {
		t.Errorf("Play on deleted voice = %v, want ErrBadHandle", err)
	}
}

func TestFakeQueueSemantics(t *testing.T) {
	f := NewFake()
	v, _ := f.GenVoice()
	b1, _ := f.GenBuffer()
	b2, _ := f.GenBuffer()

	data := make([]byte, 100)
	if err := f.BufferData(b1, audio.FormatMono8, data, 8000); err != nil {
		t.Fatalf("BufferData failed: %v", err)
	}
	if err := f.QueueBuffers(v, b1, b2); err != nil {
		t.Fatalf("QueueBuffers failed: %v", err)
	}
	if n, _ := f.Queued(v); n != 2 {
		t.Fatalf("Queued = %d, want 2", n)
	}

	// Nothing processed until the hardware finishes a buffer
	done, _ := f.UnqueueProcessed(v)
	if len(done) != 0 {
		t.Fatalf("UnqueueProcessed returned %d buffers before any finished", len(done))
	}

	f.FinishBuffers(v, 1)
	done, _ = f.UnqueueProcessed(v)
	if len(done) != 1 || done[0] != b1 {
		t.Fatalf("UnqueueProcessed = %v, want [%d]", done, b1)
	}
	if n, _ := f.Queued(v); n != 1 {
		t.Errorf("Queued = %d after unqueue, want 1", n)
	}

	// Unqueue drains: a second call returns nothing
	done, _ = f.UnqueueProcessed(v)
	if len(done) != 0 {
		t.Errorf("second UnqueueProcessed = %v, want empty", done)
	}

	if err := f.DetachBuffers(v); err != nil {
		t.Fatalf("DetachBuffers failed: %v", err)
	}
	if n, _ := f.Queued(v); n != 0 {
		t.Errorf("Queued = %d after detach, want 0", n)
	}
}

func TestFakeStaticAttach(t *testing.T) {
	f := NewFake()
	v, _ := f.GenVoice()
	b, _ := f.GenBuffer()

	if err := f.AttachBuffer(v, b); err != nil {
		t.Fatalf("AttachBuffer failed: %v", err)
	}
	if err := f.AttachBuffer(v, BufferID(999)); !errors.Is(err, ErrBadHandle) {
		t.Errorf("AttachBuffer with bad buffer = %v, want ErrBadHandle", err)
	}
}

func TestFakeVoiceLimit(t *testing.T) {
	f := NewFake()
	f.VoiceLimit = 2
	if _, err := f.GenVoice(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.GenVoice(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.GenVoice(); err == nil {
		t.Error("GenVoice succeeded past the limit")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInitial: "initial",
		StatePlaying: "playing",
		StatePaused:  "paused",
		StateStopped: "stopped",
		State(42):    "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
