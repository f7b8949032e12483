// ABOUTME: Alternative playback backend built on gen2brain/malgo
// ABOUTME: One miniaudio device per voice, native-format playback
package driver

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/chorus-audio/chorus-go/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo is a playback backend where every voice owns its own miniaudio
// device configured with the voice's native PCM format; miniaudio converts
// to the hardware format and the OS mixes the devices. Voice counts are
// kept low because each voice holds an OS device handle.
type Malgo struct {
	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	deviceID   *malgo.DeviceID
	opened     bool
	nextVoice  uint32
	nextBuffer uint32
	voices     map[VoiceID]*malgoVoice
	buffers    map[BufferID]*pcmBuffer
	listener   listener
}

type malgoVoice struct {
	params     Params
	state      State
	staticID   BufferID
	hasStatic  bool
	staticDone bool
	queue      []BufferID
	processed  []BufferID
	readOff    int
	device     *malgo.Device
}

// NewMalgo creates the malgo backend
func NewMalgo() *Malgo {
	return &Malgo{
		voices:   make(map[VoiceID]*malgoVoice),
		buffers:  make(map[BufferID]*pcmBuffer),
		listener: defaultListener(),
	}
}

func (d *Malgo) Open(deviceName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	d.ctx = ctx

	if deviceName != "" {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			ctx.Uninit()
			d.ctx = nil
			return fmt.Errorf("failed to enumerate playback devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if info.Name() == deviceName {
				id := info.ID
				d.deviceID = &id
				found = true
				break
			}
		}
		if !found {
			ctx.Uninit()
			d.ctx = nil
			return fmt.Errorf("no playback device named %q", deviceName)
		}
	}

	d.opened = true
	log.Printf("malgo backend opened (device: %q)", deviceName)
	return nil
}

func (d *Malgo) Close() error {
	d.mu.Lock()
	var devices []*malgo.Device
	for _, v := range d.voices {
		if v.device != nil {
			devices = append(devices, v.device)
			v.device = nil
		}
		v.state = StateStopped
	}
	d.voices = make(map[VoiceID]*malgoVoice)
	d.buffers = make(map[BufferID]*pcmBuffer)
	ctx := d.ctx
	d.ctx = nil
	d.opened = false
	d.mu.Unlock()

	for _, dev := range devices {
		dev.Uninit()
	}
	if ctx != nil {
		ctx.Uninit()
		ctx.Free()
	}
	return nil
}

func (d *Malgo) MaxVoices() (int, int) {
	// Each voice costs an OS device handle
	return 16, 16
}

func (d *Malgo) GenVoice() (VoiceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return 0, fmt.Errorf("malgo backend not open")
	}
	d.nextVoice++
	id := VoiceID(d.nextVoice)
	d.voices[id] = &malgoVoice{params: Params{Gain: 1, Pitch: 1}}
	return id, nil
}

func (d *Malgo) DeleteVoice(v VoiceID) error {
	d.mu.Lock()
	voice, ok := d.voices[v]
	var device *malgo.Device
	if ok {
		device = voice.device
		voice.device = nil
		delete(d.voices, v)
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	if device != nil {
		device.Uninit()
	}
	return nil
}

func (d *Malgo) GenBuffer() (BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextBuffer++
	id := BufferID(d.nextBuffer)
	d.buffers[id] = &pcmBuffer{}
	return id, nil
}

func (d *Malgo) DeleteBuffer(b BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[b]; !ok {
		return fmt.Errorf("%w: buffer %d", ErrBadHandle, b)
	}
	delete(d.buffers, b)
	return nil
}

func (d *Malgo) BufferData(b BufferID, format audio.Format, data []byte, sampleRate int) error {
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

func (d *Malgo) AttachBuffer(v VoiceID, b BufferID) error {
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

func (d *Malgo) DetachBuffers(v VoiceID) error {
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
	voice.readOff = 0
	return nil
}

func (d *Malgo) QueueBuffers(v VoiceID, bufs ...BufferID) error {
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

func (d *Malgo) UnqueueProcessed(v VoiceID) ([]BufferID, error) {
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

func (d *Malgo) Queued(v VoiceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return 0, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	return len(voice.queue), nil
}

func (d *Malgo) Play(v VoiceID) error {
	d.mu.Lock()
	voice, ok := d.voices[v]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}

	if voice.device != nil {
		voice.state = StatePlaying
		voice.staticDone = false
		device := voice.device
		d.mu.Unlock()
		if !device.IsStarted() {
			if err := device.Start(); err != nil {
				return fmt.Errorf("failed to restart device: %w", err)
			}
		}
		return nil
	}

	buf := d.playbackBuffer(voice)
	if buf == nil {
		d.mu.Unlock()
		return fmt.Errorf("voice %d has no buffer to play", v)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	if buf.format.Sample() == audio.UInt8 {
		cfg.Playback.Format = malgo.FormatU8
	} else {
		cfg.Playback.Format = malgo.FormatS16
	}
	cfg.Playback.Channels = uint32(buf.format.Channels().Count())
	pitch := voice.params.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	cfg.SampleRate = uint32(float32(buf.rate) * pitch)
	cfg.Alsa.NoMMap = 1
	if d.deviceID != nil {
		cfg.Playback.DeviceID = d.deviceID.Pointer()
	}

	frameBytes := audio.BytesPerFrame(buf.format.Channels(), buf.format.Sample())
	sample := buf.format.Sample()
	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			d.fill(v, output, int(frameCount)*frameBytes, sample)
		},
	}

	ctx := d.ctx
	voice.state = StatePlaying
	voice.staticDone = false
	voice.readOff = 0
	d.mu.Unlock()

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize voice device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start voice device: %w", err)
	}

	d.mu.Lock()
	if cur, ok := d.voices[v]; ok && cur.device == nil && cur.state == StatePlaying {
		cur.device = device
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()
	device.Uninit()
	return nil
}

func (d *Malgo) Stop(v VoiceID) error {
	d.mu.Lock()
	voice, ok := d.voices[v]
	var device *malgo.Device
	if ok {
		voice.state = StateStopped
		voice.readOff = 0
		device = voice.device
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	if device != nil && device.IsStarted() {
		if err := device.Stop(); err != nil {
			return fmt.Errorf("failed to stop voice device: %w", err)
		}
	}
	return nil
}

func (d *Malgo) VoiceState(v VoiceID) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return StateInitial, fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	return voice.state, nil
}

func (d *Malgo) SetParams(v VoiceID, p Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.params = p
	return nil
}

func (d *Malgo) SetPosition(v VoiceID, pos [3]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	voice, ok := d.voices[v]
	if !ok {
		return fmt.Errorf("%w: voice %d", ErrBadHandle, v)
	}
	voice.params.Position = pos
	return nil
}

func (d *Malgo) SetListener(pos, at, up [3]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = listener{pos: pos, at: at, up: up}
	return nil
}

// playbackBuffer resolves the buffer the voice reads from next, or nil.
// Caller holds d.mu.
func (d *Malgo) playbackBuffer(v *malgoVoice) *pcmBuffer {
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

// fill streams PCM into the device callback buffer, applying gain.
// Panning is unavailable here: the device plays the source's own channel
// layout, so only distance gain is applied.
func (d *Malgo) fill(id VoiceID, output []byte, want int, sample audio.SampleType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	voice, ok := d.voices[id]
	if !ok || voice.state != StatePlaying {
		return // leave silence
	}

	gain := effectiveGain(voice.params, d.listener)

	written := 0
	for written < want {
		buf := d.playbackBuffer(voice)
		if buf == nil {
			voice.state = StateStopped
			return
		}
		if voice.readOff >= len(buf.data) {
			voice.readOff = 0
			if voice.hasStatic {
				if !voice.params.Loop {
					voice.staticDone = true
				}
				continue
			}
			voice.processed = append(voice.processed, voice.queue[0])
			voice.queue = voice.queue[1:]
			continue
		}

		n := copy(output[written:want], buf.data[voice.readOff:])
		applyGain(output[written:written+n], sample, gain)
		voice.readOff += n
		written += n
	}
}

// applyGain scales PCM bytes in place
func applyGain(p []byte, sample audio.SampleType, gain float32) {
	if gain == 1 {
		return
	}
	if sample == audio.UInt8 {
		for i, b := range p {
			s := scaleSample((int16(b)-128)<<8, gain)
			p[i] = byte((s >> 8) + 128)
		}
		return
	}
	for i := 0; i+1 < len(p); i += 2 {
		s := scaleSample(int16(binary.LittleEndian.Uint16(p[i:])), gain)
		binary.LittleEndian.PutUint16(p[i:], uint16(s))
	}
}
