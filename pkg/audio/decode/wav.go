// ABOUTME: WAV (RIFF PCM) streaming decoder
// ABOUTME: Parses fmt/data chunks and serves raw PCM bytes
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chorus-audio/chorus-go/pkg/audio"
)

const wavFormatPCM = 1

// WAVDecoder decodes uncompressed RIFF WAVE files (8-bit unsigned or
// 16-bit signed PCM, mono or stereo)
type WAVDecoder struct {
	src       io.ReadSeeker
	info      Info
	dataStart int64
	dataLen   int64
	pos       int64
}

// NewWAV parses the RIFF header of src and positions the decoder at the
// first PCM byte
func NewWAV(src io.ReadSeeker) (*WAVDecoder, error) {
	var riff [12]byte
	if _, err := io.ReadFull(src, riff[:]); err != nil {
		return nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF WAVE file")
	}

	d := &WAVDecoder{src: src}

	haveFmt := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(src, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("missing data chunk")
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if err := d.parseFmt(size); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			start, err := src.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, fmt.Errorf("failed to locate data chunk: %w", err)
			}
			d.dataStart = start
			d.dataLen = size
			return d, nil
		default:
			// Chunks are word-aligned
			skip := size + size%2
			if _, err := src.Seek(skip, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("failed to skip %s chunk: %w", id, err)
			}
		}
	}
}

func (d *WAVDecoder) parseFmt(size int64) error {
	if size < 16 {
		return fmt.Errorf("fmt chunk too small: %d bytes", size)
	}

	var fields [16]byte
	if _, err := io.ReadFull(d.src, fields[:]); err != nil {
		return fmt.Errorf("failed to read fmt chunk: %w", err)
	}
	if size > 16 {
		if _, err := d.src.Seek(size-16+size%2, io.SeekCurrent); err != nil {
			return fmt.Errorf("failed to skip fmt extension: %w", err)
		}
	}

	format := binary.LittleEndian.Uint16(fields[0:2])
	channels := binary.LittleEndian.Uint16(fields[2:4])
	sampleRate := binary.LittleEndian.Uint32(fields[4:8])
	bits := binary.LittleEndian.Uint16(fields[14:16])

	if format != wavFormatPCM {
		return fmt.Errorf("unsupported WAV encoding: %d (only PCM)", format)
	}

	switch channels {
	case 1:
		d.info.Channels = audio.Mono
	case 2:
		d.info.Channels = audio.Stereo
	default:
		return fmt.Errorf("unsupported WAV channel count: %d", channels)
	}

	switch bits {
	case 8:
		d.info.Sample = audio.UInt8
	case 16:
		d.info.Sample = audio.Int16
	default:
		return fmt.Errorf("unsupported WAV bit depth: %d", bits)
	}

	d.info.SampleRate = int(sampleRate)
	return nil
}

// Info reports the stream format from the fmt chunk
func (d *WAVDecoder) Info() (Info, error) {
	return d.info, nil
}

// Read serves PCM bytes from the data chunk
func (d *WAVDecoder) Read(p []byte) (int, error) {
	remaining := d.dataLen - d.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := d.src.Read(p)
	d.pos += int64(n)
	if err == nil && d.pos >= d.dataLen {
		err = io.EOF
	}
	return n, err
}

// Rewind seeks back to the start of the data chunk
func (d *WAVDecoder) Rewind() error {
	if _, err := d.src.Seek(d.dataStart, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind WAV data: %w", err)
	}
	d.pos = 0
	return nil
}

// Close closes the underlying source
func (d *WAVDecoder) Close() error {
	if c, ok := d.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
