package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// unknownSize is the chunk size a streaming encoder leaves behind when it
// cannot seek back to patch the header, as ffmpeg does when writing to a pipe.
const unknownSize = 0xFFFFFFFF

// Assembler accumulates the fragments of one capture session. It is owned by
// a single session and is not safe for concurrent use.
type Assembler struct {
	fragments []Fragment
	size      int
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Append adds a fragment to the end of the sequence. Decoding is deferred to
// Finalize so a frame split across fragments is never decoded in halves.
func (a *Assembler) Append(f Fragment) error {
	if f.Size() == 0 {
		return errEmptyFragment
	}
	a.fragments = append(a.fragments, f)
	a.size += f.Size()
	return nil
}

// Len returns the number of fragments appended so far.
func (a *Assembler) Len() int { return len(a.fragments) }

// Size returns the total number of bytes appended so far.
func (a *Assembler) Size() int { return a.size }

// Finalize concatenates all fragments in order, decodes the result as one
// WAV stream, keeps channel 0 and re-encodes it at the source sample rate.
// Streamed headers with unknown sizes are accepted.
func (a *Assembler) Finalize() (*Artifact, error) {
	if len(a.fragments) == 0 {
		return nil, &DecodeError{Err: errNoFragments}
	}

	blob := make([]byte, 0, a.size)
	for _, f := range a.fragments {
		blob = append(blob, f...)
	}
	patchStreamSizes(blob)

	dec := wav.NewDecoder(bytes.NewReader(blob))
	if !dec.IsValidFile() {
		return nil, &DecodeError{Err: errNotWAV}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, &DecodeError{Err: errNoChannels}
	}

	mono := firstChannel(buf.Data, buf.Format.NumChannels)
	if len(mono) == 0 {
		return nil, &DecodeError{Err: errNoSamples}
	}

	sampleRate := buf.Format.SampleRate
	bitDepth := int(dec.BitDepth)

	data, err := encodeMono(mono, sampleRate, bitDepth)
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}

	return &Artifact{
		Data:       data,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Samples:    len(mono),
	}, nil
}

// firstChannel extracts channel 0 from interleaved samples. Other channels
// are dropped.
func firstChannel(interleaved []int, channels int) []int {
	if channels == 1 {
		return interleaved
	}
	out := make([]int, 0, len(interleaved)/channels)
	for i := 0; i < len(interleaved); i += channels {
		out = append(out, interleaved[i])
	}
	return out
}

func encodeMono(samples []int, sampleRate, bitDepth int) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, bitDepth, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return io.ReadAll(ws.Reader())
}

// patchStreamSizes rewrites the RIFF size and the data chunk size of a WAV
// stream in place so they match the bytes actually captured. A data size
// that is unknown or does not fit blob becomes the captured length rounded
// down to whole frames. Blobs that are not RIFF/WAVE are left alone.
func patchStreamSizes(blob []byte) {
	if len(blob) < 12 || string(blob[0:4]) != "RIFF" || string(blob[8:12]) != "WAVE" {
		return
	}
	le := binary.LittleEndian
	le.PutUint32(blob[4:8], uint32(len(blob)-8))

	blockAlign := 1
	for off := 12; off+8 <= len(blob); {
		id := string(blob[off : off+4])
		size := le.Uint32(blob[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+14 <= len(blob) {
				if ba := int(le.Uint16(blob[body+12 : body+14])); ba > 0 {
					blockAlign = ba
				}
			}
		case "data":
			remaining := len(blob) - body
			if size == unknownSize || size == 0 || uint64(size) > uint64(remaining) {
				n := remaining - remaining%blockAlign
				le.PutUint32(blob[off+4:off+8], uint32(n))
			}
			return
		}

		if size == unknownSize {
			return
		}
		next := uint64(body) + uint64(size) + uint64(size&1)
		if next > uint64(len(blob)) {
			return
		}
		off = int(next)
	}
}
