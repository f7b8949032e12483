// ABOUTME: Tests for the WAV decoder
// ABOUTME: Uses synthesized RIFF bytes to cover parsing, reads and rewind
package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/chorus-audio/chorus-go/pkg/audio"
)

// makeWAV builds a minimal RIFF WAVE byte stream
func makeWAV(channels, bits, sampleRate int, data []byte) []byte {
	var buf bytes.Buffer

	blockAlign := channels * bits / 8
	byteRate := sampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bits))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

func TestNewWAVInfo(t *testing.T) {
	pcm := make([]byte, 64)
	d, err := NewWAV(bytes.NewReader(makeWAV(2, 16, 44100, pcm)))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	info, err := d.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	if info.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", info.SampleRate)
	}
	if info.Channels != audio.Stereo {
		t.Errorf("expected stereo, got %s", info.Channels)
	}
	if info.Sample != audio.Int16 {
		t.Errorf("expected int16, got %s", info.Sample)
	}
}

func TestNewWAVMono8(t *testing.T) {
	d, err := NewWAV(bytes.NewReader(makeWAV(1, 8, 22050, make([]byte, 16))))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	info, _ := d.Info()
	if info.Channels != audio.Mono || info.Sample != audio.UInt8 {
		t.Errorf("expected mono/uint8, got %s/%s", info.Channels, info.Sample)
	}
}

func TestNewWAVRejectsGarbage(t *testing.T) {
	if _, err := NewWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}

func TestNewWAVRejectsUnsupported(t *testing.T) {
	// 4 channels has no device mapping
	if _, err := NewWAV(bytes.NewReader(makeWAV(4, 16, 44100, nil))); err == nil {
		t.Fatal("expected error for 4-channel WAV")
	}

	// 24-bit is not a supported sample type
	if _, err := NewWAV(bytes.NewReader(makeWAV(2, 24, 44100, nil))); err == nil {
		t.Fatal("expected error for 24-bit WAV")
	}
}

func TestWAVReadServesDataChunk(t *testing.T) {
	pcm := make([]byte, 100)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	d, err := NewWAV(bytes.NewReader(makeWAV(1, 8, 8000, pcm)))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	got := make([]byte, 0, len(pcm))
	buf := make([]byte, 33)
	for {
		n, err := d.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
	}

	if !bytes.Equal(got, pcm) {
		t.Errorf("read %d bytes, want %d, content mismatch", len(got), len(pcm))
	}

	// Exhausted stream keeps reporting EOF
	if n, err := d.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("expected (0, EOF) after exhaustion, got (%d, %v)", n, err)
	}
}

func TestWAVRewind(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	d, err := NewWAV(bytes.NewReader(makeWAV(1, 8, 8000, pcm)))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	first := make([]byte, len(pcm))
	if _, err := io.ReadFull(d, first); err != nil && err != io.ErrUnexpectedEOF {
		t.Fatalf("first read failed: %v", err)
	}

	if err := d.Rewind(); err != nil {
		t.Fatalf("rewind failed: %v", err)
	}

	second := make([]byte, len(pcm))
	if _, err := io.ReadFull(d, second); err != nil && err != io.ErrUnexpectedEOF {
		t.Fatalf("second read failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("rewind did not replay the stream from the start")
	}
}

func TestWAVSkipsUnknownChunks(t *testing.T) {
	// Splice a LIST chunk between fmt and data
	pcm := []byte{9, 9, 9, 9}
	full := makeWAV(1, 8, 8000, pcm)

	dataIdx := bytes.Index(full, []byte("data"))
	var spliced bytes.Buffer
	spliced.Write(full[:dataIdx])
	spliced.WriteString("LIST")
	binary.Write(&spliced, binary.LittleEndian, uint32(5))
	spliced.Write([]byte("INFOx"))
	spliced.WriteByte(0) // pad to word boundary
	spliced.Write(full[dataIdx:])

	d, err := NewWAV(bytes.NewReader(spliced.Bytes()))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	got := make([]byte, 4)
	if _, err := io.ReadFull(d, got); err != nil && err != io.ErrUnexpectedEOF {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("expected %v, got %v", pcm, got)
	}
}
