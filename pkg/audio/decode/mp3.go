// ABOUTME: MP3 streaming decoder backed by go-mp3
// ABOUTME: Serves 16-bit signed stereo PCM at the stream's sample rate
package decode

import (
	"fmt"
	"io"

	"github.com/chorus-audio/chorus-go/pkg/audio"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 sources. go-mp3 always produces 16-bit signed
// stereo output regardless of the source channel count.
type MP3Decoder struct {
	src     io.ReadSeeker
	decoder *mp3.Decoder
}

// NewMP3 creates a decoder for an MP3 source
func NewMP3(src io.ReadSeeker) (*MP3Decoder, error) {
	decoder, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &MP3Decoder{
		src:     src,
		decoder: decoder,
	}, nil
}

// Info reports the stream format
func (d *MP3Decoder) Info() (Info, error) {
	return Info{
		SampleRate: d.decoder.SampleRate(),
		Channels:   audio.Stereo,
		Sample:     audio.Int16,
	}, nil
}

// Read serves decoded PCM bytes
func (d *MP3Decoder) Read(p []byte) (int, error) {
	return d.decoder.Read(p)
}

// Rewind seeks back to the first sample
func (d *MP3Decoder) Rewind() error {
	if _, err := d.decoder.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind mp3 stream: %w", err)
	}
	return nil
}

// Close closes the underlying source
func (d *MP3Decoder) Close() error {
	if c, ok := d.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
