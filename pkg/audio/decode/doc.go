// ABOUTME: Streaming audio decoders for the output engine
// ABOUTME: WAV, MP3, FLAC and Ogg Opus sources decoded to raw PCM
// Package decode provides streaming decoders that turn audio sources into
// raw PCM bytes for the output engine.
//
// A Decoder reports its stream format once via Info, then serves PCM bytes
// incrementally via Read, can be rewound to the start of the stream, and is
// closed exactly once by whichever sound owns it.
//
// Example:
//
//	dec, err := decode.Open("music/explore.mp3")
//	info, err := dec.Info()
//	buf := make([]byte, 22048)
//	n, err := dec.Read(buf)
package decode
