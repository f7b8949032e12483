// ABOUTME: Ogg Opus streaming decoder backed by hraban/opus
// ABOUTME: Serves 48kHz 16-bit PCM at the link's own channel count
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chorus-audio/chorus-go/pkg/audio"
	opus "gopkg.in/hraban/opus.v2"
)

// Opus always decodes at 48kHz regardless of the input's original rate
const opusSampleRate = 48000

// OpusDecoder decodes Ogg Opus sources
type OpusDecoder struct {
	src      io.ReadSeeker
	stream   *opus.Stream
	channels audio.ChannelConfig
	pcm      []int16
	leftover []byte
}

// NewOpus creates a decoder for an Ogg Opus source
func NewOpus(src io.ReadSeeker) (*OpusDecoder, error) {
	// The stream API reports samples per channel but not the channel
	// count, so read it from the ID header first
	channels, err := opusChannels(src)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind opus source: %w", err)
	}

	stream, err := opus.NewStream(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}

	return &OpusDecoder{
		src:      src,
		stream:   stream,
		channels: channels,
		pcm:      make([]int16, 11520), // 120ms of 48kHz stereo
	}, nil
}

// opusChannels reads the channel count from the OpusHead packet that
// opens every Ogg Opus stream. The packet sits directly after the first
// Ogg page header: "OggS", 22 fixed bytes, a segment count, and the
// segment table.
func opusChannels(src io.ReadSeeker) (audio.ChannelConfig, error) {
	var page [27]byte
	if _, err := io.ReadFull(src, page[:]); err != nil {
		return 0, fmt.Errorf("failed to read ogg page header: %w", err)
	}
	if string(page[0:4]) != "OggS" {
		return 0, fmt.Errorf("not an ogg stream")
	}
	segments := make([]byte, int(page[26]))
	if _, err := io.ReadFull(src, segments); err != nil {
		return 0, fmt.Errorf("failed to read ogg segment table: %w", err)
	}

	// OpusHead: 8-byte magic, version, channel count
	var head [10]byte
	if _, err := io.ReadFull(src, head[:]); err != nil {
		return 0, fmt.Errorf("failed to read opus header: %w", err)
	}
	if string(head[0:8]) != "OpusHead" {
		return 0, fmt.Errorf("first ogg packet is not an opus header")
	}
	switch head[9] {
	case 1:
		return audio.Mono, nil
	case 2:
		return audio.Stereo, nil
	}
	return 0, fmt.Errorf("unsupported opus channel count: %d", head[9])
}

// Info reports the stream format
func (d *OpusDecoder) Info() (Info, error) {
	return Info{
		SampleRate: opusSampleRate,
		Channels:   d.channels,
		Sample:     audio.Int16,
	}, nil
}

// Read serves decoded PCM bytes
func (d *OpusDecoder) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if len(d.leftover) == 0 {
			n, err := d.stream.Read(d.pcm)
			if err == io.EOF || (err == nil && n == 0) {
				if total == 0 {
					return 0, io.EOF
				}
				return total, io.EOF
			}
			if err != nil {
				return total, fmt.Errorf("opus decode failed: %w", err)
			}

			// n counts samples per channel
			samples := d.pcm[:n*d.channels.Count()]
			d.leftover = make([]byte, len(samples)*2)
			for i, s := range samples {
				binary.LittleEndian.PutUint16(d.leftover[i*2:], uint16(s))
			}
		}

		n := copy(p[total:], d.leftover)
		d.leftover = d.leftover[n:]
		total += n
	}
	return total, nil
}

// Rewind reopens the stream at the start of the source
func (d *OpusDecoder) Rewind() error {
	if _, err := d.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind opus source: %w", err)
	}

	stream, err := opus.NewStream(d.src)
	if err != nil {
		return fmt.Errorf("failed to reopen opus stream: %w", err)
	}
	d.stream = stream
	d.leftover = nil
	return nil
}

// Close closes the underlying source
func (d *OpusDecoder) Close() error {
	if c, ok := d.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
