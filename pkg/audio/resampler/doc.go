// Package resampler converts decoded PCM buffers between sample rates and
// channel layouts using a pure Go resampler (no CGO/FFI dependencies).
//
// It supports:
//   - Sample rate conversion (e.g., 16000Hz to 24000Hz)
//   - Channel conversion (mono to stereo or stereo to mono)
//   - Streaming use: a Resampler keeps filter state between calls, so
//     consecutive chunks of one stream join without clicks
//
// Example usage:
//
//	r, err := resampler.New(pcm.L16Mono16K, pcm.L16Mono24K)
//	if err != nil {
//	    return err
//	}
//	out, err := r.Process(buf)
package resampler
