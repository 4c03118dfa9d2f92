package resampler

import (
	"fmt"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

// Resampler converts a stream of buffers from one format to another.
// It is safe to call Process from multiple goroutines, but buffers of one
// stream should be passed in order.
type Resampler struct {
	src pcm.Format
	dst pcm.Format

	mu        sync.Mutex
	resampler resampling.Resampler
	input     []float64
}

// New creates a Resampler from src to dst. When the sample rates match only
// channel conversion is performed.
func New(src, dst pcm.Format) (*Resampler, error) {
	r := &Resampler{src: src, dst: dst}
	if src.SampleRate() != dst.SampleRate() {
		config := &resampling.Config{
			InputRate:  float64(src.SampleRate()),
			OutputRate: float64(dst.SampleRate()),
			Channels:   dst.Channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		}
		rs, err := resampling.New(config)
		if err != nil {
			return nil, fmt.Errorf("resampler: create %s -> %s: %w", src, dst, err)
		}
		r.resampler = rs
	}
	return r, nil
}

// Source returns the input format.
func (r *Resampler) Source() pcm.Format { return r.src }

// Target returns the output format.
func (r *Resampler) Target() pcm.Format { return r.dst }

// Process converts one buffer. The input format must match the source format.
// The output may be shorter or longer than the exact rate ratio while the
// filter fills; over a stream the totals converge.
func (r *Resampler) Process(in *pcm.Buffer) (*pcm.Buffer, error) {
	if in.Format != r.src {
		return nil, fmt.Errorf("resampler: input format %s, want %s", in.Format, r.src)
	}
	channels := convertChannels(in.Data, r.dst.Channels())
	if r.resampler == nil {
		return &pcm.Buffer{Format: r.dst, Data: channels}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	if len(channels) > 0 {
		n = len(channels[0])
	}
	if n == 0 {
		return pcm.NewBuffer(r.dst, 0), nil
	}
	nch := len(channels)
	if cap(r.input) < n*nch {
		r.input = make([]float64, n*nch)
	}
	input := r.input[:n*nch]
	for i := 0; i < n; i++ {
		for c := 0; c < nch; c++ {
			input[i*nch+c] = float64(channels[c][i])
		}
	}

	output, err := r.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	frames := len(output) / nch
	out := pcm.NewBuffer(r.dst, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			s := output[i*nch+c]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			out.Data[c][i] = float32(s)
		}
	}
	return out, nil
}

// Convert is a one-shot conversion of buf to dst. Use a Resampler for
// streams.
func Convert(buf *pcm.Buffer, dst pcm.Format) (*pcm.Buffer, error) {
	if buf.Format == dst {
		return buf, nil
	}
	r, err := New(buf.Format, dst)
	if err != nil {
		return nil, err
	}
	return r.Process(buf)
}

// convertChannels downmixes by averaging or upmixes by duplicating the first
// channel.
func convertChannels(in [][]float32, channels int) [][]float32 {
	switch {
	case len(in) == channels:
		return in
	case len(in) == 0:
		return make([][]float32, channels)
	case channels == 1:
		return [][]float32{(&pcm.Buffer{Data: in}).Mono()}
	}
	out := make([][]float32, channels)
	for c := range out {
		if c < len(in) {
			out[c] = in[c]
		} else {
			out[c] = in[0]
		}
	}
	return out
}
