// ABOUTME: Default playback backend built on ebitengine/oto
// ABOUTME: One oto player per playing voice, software format conversion
package driver

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync"

	"github.com/chorus-audio/chorus-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

const (
	otoSampleRate = 48000
	otoChannels   = 2

	// Device frame: stereo int16
	otoFrameBytes = 4
)

// oto allows a single context per process, so it is created once and shared
// across driver instances
var (
	otoCtxOnce sync.Once
	otoCtx     *oto.Context
	otoCtxErr  error
)

func otoContext() (*oto.Context, error) {
	otoCtxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   otoSampleRate,
			ChannelCount: otoChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoCtxErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoCtxErr
}

// Oto is the default playback backend. The oto mixer consumes one player
// per playing voice; each player pulls from the voice's buffer queue
// through a converting reader.
type Oto struct {
	mu         sync.Mutex
	ctx        *oto.Context
	opened     bool
	nextVoice  uint32
	nextBuffer uint32
	voices     map[VoiceID]*otoVoice
	buffers    map[BufferID]*pcmBuffer
	listener   listener
}

type otoVoice struct {
	params     Params
	state      State
	staticID   BufferID
	hasStatic  bool
	staticDone bool
	queue      []BufferID
	processed  []BufferID
	srcPos     float64
	reader     *otoVoiceReader
	player     *oto.Player
}

type pcmBuffer struct {
	format audio.Format
	data   []byte
	rate   int
}

// NewOto creates the oto backend
func NewOto() *Oto {
	return &Oto{
		voices:   make(map[VoiceID]*otoVoice),
		buffers:  make(map[BufferID]*pcmBuffer),
		listener: defaultListener(),
	}
}

func (d *Oto) Open(deviceName string) error {
	ctx, err := otoContext()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if deviceName != "" {
		log.Printf("oto always uses the system default device, ignoring %q", deviceName)
	}
	d.ctx = ctx
	d.opened = true
	return nil
}

func (d *Oto) Close() error {
	d.mu.Lock()
	var players []*oto.Player
	for _, v := range d.voices {
		if v.player != nil {
			players = append(players, v.player)
			v.player = nil
			v.reader = nil
		}
		v.state = StateStopped
	}
	d.voices = make(map[VoiceID]*otoVoice)
	d.buffers = make(map[BufferID]*pcmBuffer)
	d.opened = false
	d.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
	return nil
}

func (d *Oto) MaxVoices() (int, int) {
	// The oto mixer has no hard cap; bound voices by mixing cost
	return 32, 32
}

func (d *Oto) GenVoice() (VoiceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return 0, fmt.Errorf("oto backend not open")
	}
	d.nextVoice++
	id := VoiceID(d.nextVoice)
	d.voices[id] = &otoVoice{params: Params{Gain: 1, Pitch: 1}}
	return id, nil
}

func (d *Oto) DeleteVoice(v VoiceID) error {
	d.mu.Lock()
	voice, ok := d.voices[v]
	var player *oto.Player
	if ok {
		player = voice.player
		voice.player = nil
		voice.reader = nil
		delete(d.voices, v)
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	if player != nil {
		player.Close()
	}
	return nil
}

func (d *Oto) GenBuffer() (BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextBuffer++
	id := BufferID(d.nextBuffer)
	d.buffers[id] = &pcmBuffer{}
	return id, nil
}

func (d *Oto) DeleteBuffer(b BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[b]; !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	delete(d.buffers, b)
	return nil
}

func (d *Oto) BufferData(b BufferID, format audio.Format, data []byte, sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	buf.format = format
	buf.data = append(buf.data[:0], data...)
	buf.rate = sampleRate
	return nil
}

func (d *Oto) AttachBuffer(v VoiceID, b BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	if _, ok := d.buffers[b]; !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	voice.staticID = b
	voice.hasStatic = true
	voice.staticDone = false
	return nil
}

func (d *Oto) DetachBuffers(v VoiceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.hasStatic = false
	voice.staticDone = false
	voice.staticID = 0
	voice.queue = nil
	voice.processed = nil
	voice.srcPos = 0
	return nil
}

func (d *Oto) QueueBuffers(v VoiceID, bufs ...BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	for _, b := range bufs {
		if _, ok := d.buffers[b]; !ok {
			return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
		}
	}
	voice.queue = append(voice.queue, bufs...)
	return nil
}

func (d *Oto) UnqueueProcessed(v VoiceID) ([]BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return nil, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	done := voice.processed
	voice.processed = nil
	return done, nil
}

func (d *Oto) Queued(v VoiceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return 0, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	return len(voice.queue), nil
}

func (d *Oto) Play(v VoiceID) error {
	d.mu.Lock()
	voice, ok := d.voices[v]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	old := voice.player
	voice.player = nil
	reader := &otoVoiceReader{d: d, id: v}
	voice.reader = reader
	voice.state = StatePlaying
	voice.staticDone = false
	voice.srcPos = 0
	ctx := d.ctx
	d.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if ctx == nil {
		return fmt.Errorf("oto backend not open")
	}

	player := ctx.NewPlayer(reader)

	d.mu.Lock()
	// The voice may have been stopped or deleted while unlocked
	if cur, ok := d.voices[v]; ok && cur.reader == reader {
		cur.player = player
		d.mu.Unlock()
		player.Play()
		return nil
	}
	d.mu.Unlock()
	player.Close()
	return nil
}

func (d *Oto) Stop(v VoiceID) error {
	d.mu.Lock()
	voice, ok := d.voices[v]
	var player *oto.Player
	if ok {
		player = voice.player
		voice.player = nil
		voice.reader = nil
		voice.state = StateStopped
		voice.staticDone = false
		voice.srcPos = 0
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	if player != nil {
		player.Close()
	}
	return nil
}

func (d *Oto) VoiceState(v VoiceID) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return StateInitial, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	return voice.state, nil
}

func (d *Oto) SetParams(v VoiceID, p Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.params = p
	return nil
}

func (d *Oto) SetPosition(v VoiceID, pos [3]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.params.Position = pos
	return nil
}

func (d *Oto) SetListener(pos, at, up [3]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = listener{pos: pos, at: at, up: up}
	return nil
}

// otoVoiceReader converts a voice's queued PCM to the device format,
// applying pitch, gain and pan. It runs on the oto mixer goroutine.
type otoVoiceReader struct {
	d  *Oto
	id VoiceID
}

func (r *otoVoiceReader) Read(p []byte) (int, error) {
	d := r.d
	d.mu.Lock()
	defer d.mu.Unlock()

	voice, ok := d.voices[r.id]
	if !ok || voice.reader != r || voice.state != StatePlaying {
		return 0, io.EOF
	}

	gain := effectiveGain(voice.params, d.listener)
	left, right := panGains(pan(voice.params, d.listener))
	// Scale by sqrt2 so a centered source keeps unity gain
	gl := gain * left * float32(math.Sqrt2)
	gr := gain * right * float32(math.Sqrt2)

	frames := len(p) / otoFrameBytes
	written := 0
	for written < frames {
		buf := d.currentBuffer(voice)
		if buf == nil {
			break
		}

		srcFrames := audio.BytesToFrames(len(buf.data), buf.format.Channels(), buf.format.Sample())
		idx := int(voice.srcPos)
		if idx >= srcFrames {
			d.advanceVoice(voice, float64(srcFrames))
			continue
		}

		l, rr := frameAt(buf, idx)
		mono := buf.format.Channels() == audio.Mono
		if mono {
			// Mono sources are panned; stereo sources only get gain
			l = scaleSample(l, gl)
			rr = scaleSample(rr, gr)
		} else {
			l = scaleSample(l, gain)
			rr = scaleSample(rr, gain)
		}

		off := written * otoFrameBytes
		binary.LittleEndian.PutUint16(p[off:], uint16(l))
		binary.LittleEndian.PutUint16(p[off+2:], uint16(rr))

		step := float64(buf.rate) * float64(voice.params.Pitch) / otoSampleRate
		if step <= 0 {
			step = 1
		}
		voice.srcPos += step
		written++
	}

	if written == 0 {
		// Out of data: the voice underran or finished
		voice.state = StateStopped
		return 0, io.EOF
	}
	return written * otoFrameBytes, nil
}

// currentBuffer resolves the buffer the voice is playing from, or nil
func (d *Oto) currentBuffer(v *otoVoice) *pcmBuffer {
	if v.hasStatic {
		if v.staticDone {
			return nil
		}
		return d.buffers[v.staticID]
	}
	if len(v.queue) > 0 {
		return d.buffers[v.queue[0]]
	}
	return nil
}

// advanceVoice moves past the end of the current buffer
func (d *Oto) advanceVoice(v *otoVoice, consumedFrames float64) {
	v.srcPos -= consumedFrames
	if v.srcPos < 0 {
		v.srcPos = 0
	}
	if v.hasStatic {
		if !v.params.Loop {
			v.staticDone = true
		}
		return
	}
	v.processed = append(v.processed, v.queue[0])
	v.queue = v.queue[1:]
}

// frameAt extracts one frame as left/right 16-bit samples
func frameAt(buf *pcmBuffer, frame int) (int16, int16) {
	switch buf.format {
	case audio.FormatMono8:
		s := u8Sample(buf.data[frame])
		return s, s
	case audio.FormatMono16:
		s := int16(binary.LittleEndian.Uint16(buf.data[frame*2:]))
		return s, s
	case audio.FormatStereo8:
		return u8Sample(buf.data[frame*2]), u8Sample(buf.data[frame*2+1])
	default: // FormatStereo16
		return int16(binary.LittleEndian.Uint16(buf.data[frame*4:])),
			int16(binary.LittleEndian.Uint16(buf.data[frame*4+2:]))
	}
}

// u8Sample converts an 8-bit unsigned sample to 16-bit signed
func u8Sample(b byte) int16 {
	return (int16(b) - 128) << 8
}

// scaleSample applies a gain with clipping protection
func scaleSample(s int16, gain float32) int16 {
	scaled := int32(float32(s) * gain)
	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}
