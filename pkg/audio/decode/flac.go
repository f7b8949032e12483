// ABOUTME: FLAC streaming decoder backed by mewkiz/flac
// ABOUTME: Parses frames incrementally and serves interleaved 16-bit PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chorus-audio/chorus-go/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACDecoder decodes FLAC sources frame by frame. Samples are normalized
// to 16-bit signed regardless of the source bit depth.
type FLACDecoder struct {
	src      io.ReadSeeker
	stream   *flac.Stream
	info     Info
	bps      uint8
	leftover []byte
}

// NewFLAC creates a decoder for a FLAC source
func NewFLAC(src io.ReadSeeker) (*FLACDecoder, error) {
	stream, err := flac.New(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create flac decoder: %w", err)
	}

	d := &FLACDecoder{
		src:    src,
		stream: stream,
		bps:    stream.Info.BitsPerSample,
	}

	switch stream.Info.NChannels {
	case 1:
		d.info.Channels = audio.Mono
	case 2:
		d.info.Channels = audio.Stereo
	default:
		return nil, fmt.Errorf("unsupported FLAC channel count: %d", stream.Info.NChannels)
	}

	d.info.SampleRate = int(stream.Info.SampleRate)
	d.info.Sample = audio.Int16
	return d, nil
}

// Info reports the stream format
func (d *FLACDecoder) Info() (Info, error) {
	return d.info, nil
}

// Read serves decoded PCM bytes, parsing further frames as needed
func (d *FLACDecoder) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if len(d.leftover) == 0 {
			frame, err := d.stream.ParseNext()
			if err == io.EOF {
				if total == 0 {
					return 0, io.EOF
				}
				return total, io.EOF
			}
			if err != nil {
				return total, fmt.Errorf("flac frame parse failed: %w", err)
			}
			d.leftover = d.interleave(frame.Subframes)
		}

		n := copy(p[total:], d.leftover)
		d.leftover = d.leftover[n:]
		total += n
	}
	return total, nil
}

// interleave flattens per-channel subframe samples into little-endian
// 16-bit interleaved PCM
func (d *FLACDecoder) interleave(subframes []*frame.Subframe) []byte {
	if len(subframes) == 0 {
		return nil
	}
	frames := len(subframes[0].Samples)
	channels := len(subframes)

	out := make([]byte, frames*channels*2)
	idx := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(out[idx:], uint16(d.normalize(subframes[ch].Samples[i])))
			idx += 2
		}
	}
	return out
}

// normalize scales a sample of the stream's bit depth to 16-bit signed
func (d *FLACDecoder) normalize(sample int32) int16 {
	switch {
	case d.bps < 16:
		return int16(sample << (16 - d.bps))
	case d.bps > 16:
		return int16(sample >> (d.bps - 16))
	default:
		return int16(sample)
	}
}

// Rewind reopens the stream at the start of the source
func (d *FLACDecoder) Rewind() error {
	if _, err := d.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind flac source: %w", err)
	}

	stream, err := flac.New(d.src)
	if err != nil {
		return fmt.Errorf("failed to reopen flac stream: %w", err)
	}
	d.stream = stream
	d.leftover = nil
	return nil
}

// Close closes the stream and the underlying source
func (d *FLACDecoder) Close() error {
	err := d.stream.Close()
	if c, ok := d.src.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
