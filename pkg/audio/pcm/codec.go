package pcm

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Buffer holds decoded audio as one float32 slice per channel. All channels
// have the same length.
type Buffer struct {
	Format Format
	Data   [][]float32
}

// NewBuffer returns a silent buffer of n samples per channel.
func NewBuffer(f Format, n int) *Buffer {
	b := &Buffer{Format: f, Data: make([][]float32, f.Channels())}
	for i := range b.Data {
		b.Data[i] = make([]float32, n)
	}
	return b
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil {
		return 0
	}
	return b.Format.SampleDuration(int64(b.Len()))
}

// Mono returns the average of all channels. For a mono buffer it returns the
// single channel without copying.
func (b *Buffer) Mono() []float32 {
	switch len(b.Data) {
	case 0:
		return nil
	case 1:
		return b.Data[0]
	}
	out := make([]float32, b.Len())
	scale := 1 / float32(len(b.Data))
	for _, ch := range b.Data {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}

// DecodeError reports inbound bytes that cannot be PCM16 in the expected layout.
type DecodeError struct {
	Len    int
	Format Format
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pcm: decode %d bytes as %s: %s", e.Len, e.Format, e.Reason)
}

// Encode converts float32 samples in [-1, 1] to little-endian signed 16-bit
// PCM. Out-of-range samples are clamped. Multi-channel input must already be
// interleaved.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(Quantize(s)))
	}
	return out
}

// Quantize maps a float32 sample to int16 using round(s*32768), clamped to the
// int16 range.
func Quantize(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Decode interprets data as interleaved little-endian int16 samples in format
// f and returns them de-interleaved and scaled by 1/32768. Empty input yields
// an empty buffer.
func Decode(data []byte, f Format) (*Buffer, error) {
	channels := f.Channels()
	if len(data)%2 != 0 {
		return nil, &DecodeError{Len: len(data), Format: f, Reason: "odd byte count"}
	}
	total := len(data) / 2
	if total%channels != 0 {
		return nil, &DecodeError{Len: len(data), Format: f, Reason: fmt.Sprintf("%d samples not divisible by %d channels", total, channels)}
	}
	b := NewBuffer(f, total/channels)
	for i := 0; i < total; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		b.Data[i%channels][i/channels] = float32(v) / 32768
	}
	return b, nil
}
