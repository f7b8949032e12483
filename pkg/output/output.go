// ABOUTME: Output device lifecycle and the play/stream entry points
// ABOUTME: Owns the voice pool, the stream pump, and the listener
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/chorus-audio/chorus-go/internal/driver"
	"github.com/chorus-audio/chorus-go/pkg/audio"
	"github.com/chorus-audio/chorus-go/pkg/audio/decode"
)

// maxPoolVoices caps the voice pool regardless of what the hardware
// claims it can mix
const maxPoolVoices = 256

// Config selects the playback backend and the decoder opener
type Config struct {
	// Backend names the playback backend ("oto", "malgo"). Empty picks
	// the default.
	Backend string

	// OpenDecoder opens a source name into a decoder. Nil uses
	// decode.Open.
	OpenDecoder decode.OpenFunc
}

// Device is the audio output device. Create with New, open with Init,
// then play or stream sounds until Deinit.
type Device struct {
	drv  driver.Driver
	open decode.OpenFunc
	pump *pump

	mu          sync.Mutex
	initialized bool
	pool        voicePool
}

// New creates a closed device for the configured backend
func New(cfg Config) (*Device, error) {
	drv, err := driver.New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	open := cfg.OpenDecoder
	if open == nil {
		open = decode.Open
	}
	return newDevice(drv, open), nil
}

func newDevice(drv driver.Driver, open decode.OpenFunc) *Device {
	return &Device{drv: drv, open: open, pump: newPump()}
}

// Init opens the named device (or the default for "") and builds the
// voice pool. Partial voice allocation is tolerated; zero voices is a
// failure.
func (d *Device) Init(deviceName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return ErrAlreadyInitialized
	}

	if err := d.drv.Open(deviceName); err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	mono, stereo := d.drv.MaxVoices()
	want := mono + stereo
	if want > maxPoolVoices {
		want = maxPoolVoices
	}
	for i := 0; i < want; i++ {
		v, err := d.drv.GenVoice()
		if err != nil {
			// The device may stop short of its advertised count.
			// Work with what we got.
			break
		}
		d.pool.release(v)
	}
	if d.pool.size() == 0 {
		d.drv.Close()
		return fmt.Errorf("failed to allocate any voices")
	}

	d.pump.start()
	d.initialized = true
	log.Printf("audio device ready: %d voices", d.pool.size())
	return nil
}

// Deinit stops the pump, frees every pooled voice, and closes the
// device. Safe to call on a closed device. Voices still checked out by
// open Sound handles are left to those handles; Close them first to
// release everything.
func (d *Device) Deinit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil
	}
	d.initialized = false

	d.pump.stop()
	d.pump.removeAll()
	var firstErr error
	for _, v := range d.pool.clear() {
		if err := d.drv.DeleteVoice(v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := d.drv.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	log.Printf("audio device closed")
	return firstErr
}

// VoicesFree reports how many voices are available for new sounds
func (d *Device) VoicesFree() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool.size()
}

// UpdateListener sets the listener's world position and orientation.
// at and up are the facing and head-up directions.
func (d *Device) UpdateListener(pos, at, up Vec3) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return ErrNotInitialized
	}
	return d.drv.SetListener(deviceVec(pos), deviceVec(at), deviceVec(up))
}

// soundParams builds voice parameters for a listener-relative sound
func soundParams(gain, pitch float32, loop bool) driver.Params {
	return driver.Params{
		Gain:        gain,
		Pitch:       pitch,
		Loop:        loop,
		Relative:    true,
		RefDistance: 1,
		MaxDistance: 1000,
		Rolloff:     0,
	}
}

// soundParams3D builds voice parameters for a positioned sound with
// linear distance attenuation between min and max
func soundParams3D(pos Vec3, gain, pitch, minDist, maxDist float32, loop bool) driver.Params {
	return driver.Params{
		Gain:        gain,
		Pitch:       pitch,
		Loop:        loop,
		Relative:    false,
		Position:    deviceVec(pos),
		RefDistance: minDist,
		MaxDistance: maxDist,
		Rolloff:     1,
	}
}

// PlaySound fully decodes source and plays it at the listener
func (d *Device) PlaySound(source string, gain, pitch float32, loop bool) (Sound, error) {
	return d.playOneShot(source, soundParams(gain, pitch, loop))
}

// PlaySound3D fully decodes source and plays it at a world position
func (d *Device) PlaySound3D(source string, pos Vec3, gain, pitch, minDist, maxDist float32, loop bool) (Sound, error) {
	return d.playOneShot(source, soundParams3D(pos, gain, pitch, minDist, maxDist, loop))
}

// StreamSound plays source incrementally at the listener. Streams do
// not loop.
func (d *Device) StreamSound(source string, gain, pitch float32) (Sound, error) {
	return d.playStream(source, soundParams(gain, pitch, false))
}

// StreamSound3D plays source incrementally at a world position
func (d *Device) StreamSound3D(source string, pos Vec3, gain, pitch, minDist, maxDist float32) (Sound, error) {
	return d.playStream(source, soundParams3D(pos, gain, pitch, minDist, maxDist, false))
}

// acquireVoice checks the device state and pulls a voice from the pool
func (d *Device) acquireVoice() (driver.VoiceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return 0, ErrNotInitialized
	}
	v, ok := d.pool.acquire()
	if !ok {
		return 0, ErrNoFreeVoices
	}
	return v, nil
}

func (d *Device) releaseVoice(v driver.VoiceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pool.release(v)
}

func (d *Device) playOneShot(source string, params driver.Params) (Sound, error) {
	voice, err := d.acquireVoice()
	if err != nil {
		return nil, err
	}

	dec, err := d.open(source)
	if err != nil {
		d.releaseVoice(voice)
		return nil, err
	}
	// One-shots hold the decoder only while loading
	defer dec.Close()

	info, err := dec.Info()
	if err != nil {
		d.releaseVoice(voice)
		return nil, err
	}
	format, err := audio.ResolveFormat(info.Channels, info.Sample)
	if err != nil {
		d.releaseVoice(voice)
		return nil, err
	}
	data, err := loadAll(dec)
	if err != nil {
		d.releaseVoice(voice)
		return nil, err
	}

	buf, err := d.drv.GenBuffer()
	if err != nil {
		d.releaseVoice(voice)
		return nil, err
	}

	if err := d.startOneShot(voice, buf, format, data, info.SampleRate, params); err != nil {
		d.drv.DeleteBuffer(buf)
		d.releaseVoice(voice)
		return nil, err
	}

	s := &oneShot{dev: d, id: shortID(), voice: voice, buffer: buf}
	log.Printf("sound %s playing %s (%s, %d Hz)", s.id, source, format, info.SampleRate)
	return s, nil
}

func (d *Device) startOneShot(voice driver.VoiceID, buf driver.BufferID, format audio.Format, data []byte, rate int, params driver.Params) error {
	if err := d.drv.BufferData(buf, format, data, rate); err != nil {
		return err
	}
	if err := d.drv.AttachBuffer(voice, buf); err != nil {
		return err
	}
	if err := d.drv.SetParams(voice, params); err != nil {
		return err
	}
	return d.drv.Play(voice)
}

func (d *Device) playStream(source string, params driver.Params) (Sound, error) {
	voice, err := d.acquireVoice()
	if err != nil {
		return nil, err
	}

	dec, err := d.open(source)
	if err != nil {
		d.releaseVoice(voice)
		return nil, err
	}

	s, err := d.startStream(voice, dec, params)
	if err != nil {
		dec.Close()
		d.releaseVoice(voice)
		return nil, err
	}
	log.Printf("stream %s playing %s (%s, %d Hz)", s.id, source, s.format, s.rate)
	return s, nil
}

func (d *Device) startStream(voice driver.VoiceID, dec decode.Decoder, params driver.Params) (*streamSound, error) {
	info, err := dec.Info()
	if err != nil {
		return nil, err
	}
	format, err := audio.ResolveFormat(info.Channels, info.Sample)
	if err != nil {
		return nil, err
	}

	s := &streamSound{
		dev:     d,
		id:      shortID(),
		voice:   voice,
		dec:     dec,
		format:  format,
		rate:    info.SampleRate,
		scratch: make([]byte, streamBufferBytes(info.SampleRate, format)),
	}
	genned := 0
	for i := range s.buffers {
		b, err := d.drv.GenBuffer()
		if err != nil {
			for _, old := range s.buffers[:genned] {
				d.drv.DeleteBuffer(old)
			}
			return nil, err
		}
		s.buffers[i] = b
		genned++
	}

	err = d.drv.SetParams(voice, params)
	if err == nil {
		err = s.play()
	}
	if err != nil {
		d.drv.Stop(voice)
		d.drv.DetachBuffers(voice)
		for _, b := range s.buffers {
			d.drv.DeleteBuffer(b)
		}
		return nil, err
	}
	return s, nil
}

// shortID tags log lines for one sound's lifetime
func shortID() string {
	return uuid.NewString()[:8]
}
