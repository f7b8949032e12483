// ABOUTME: Streaming decoder interface and codec dispatch
// ABOUTME: Opens a source file and picks a decoder by extension
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chorus-audio/chorus-go/pkg/audio"
)

// Info describes the decoded stream reported by a decoder header
type Info struct {
	SampleRate int
	Channels   audio.ChannelConfig
	Sample     audio.SampleType
}

// Decoder produces raw PCM bytes from an open source.
//
// Read follows io.Reader semantics: it returns io.EOF once the stream is
// exhausted, possibly alongside a final short read. Rewind seeks back to the
// first PCM byte so the decoder can be reused. Close releases the decoder
// and the underlying source.
type Decoder interface {
	Info() (Info, error)
	Read(p []byte) (int, error)
	Rewind() error
	Close() error
}

// OpenFunc opens a named source and returns a ready decoder
type OpenFunc func(source string) (Decoder, error)

// Open opens source and picks a decoder from the file extension.
// Supported: .wav, .mp3, .flac, .ogg, .opus.
func Open(source string) (Decoder, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}

	var dec Decoder
	switch ext := strings.ToLower(filepath.Ext(source)); ext {
	case ".wav":
		dec, err = NewWAV(f)
	case ".mp3":
		dec, err = NewMP3(f)
	case ".flac":
		dec, err = NewFLAC(f)
	case ".ogg", ".opus":
		dec, err = NewOpus(f)
	default:
		err = fmt.Errorf("unsupported source extension: %s", ext)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return dec, nil
}
