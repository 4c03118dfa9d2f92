package pcm

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"
)

const (
	// L16Mono16K represents audio/pcm; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/pcm; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/pcm; rate=48000; channels=1
	L16Mono48K
	// L16Stereo24K represents audio/pcm; rate=24000; channels=2
	L16Stereo24K
	// L16Stereo48K represents audio/pcm; rate=48000; channels=2
	L16Stereo48K
)

// Format represents an audio format configuration.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K, L16Stereo24K:
		return 24000
	case L16Mono48K, L16Stereo48K:
		return 48000
	}
	panic("pcm: invalid audio type")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 1
	case L16Stereo24K, L16Stereo48K:
		return 2
	}
	panic("pcm: invalid audio type")
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K, L16Stereo24K, L16Stereo48K:
		return 16
	}
	panic("pcm: invalid audio type")
}

// FrameBytes returns the size in bytes of one sample across all channels.
func (f Format) FrameBytes() int {
	return f.Channels() * f.Depth() / 8
}

// Samples returns the number of per-channel samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes / int64(f.FrameBytes())
}

// SamplesInDuration returns the number of per-channel samples in the given
// duration, rounded to the nearest sample. SamplesInDuration(SampleDuration(n))
// is n for every n.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64((d*time.Duration(f.SampleRate()) + time.Second/2) / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameBytes())
}

// SampleDuration returns the duration of n per-channel samples, rounded to
// the nearest nanosecond.
func (f Format) SampleDuration(n int64) time.Duration {
	rate := time.Duration(f.SampleRate())
	return (time.Duration(n)*time.Second + rate/2) / rate
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return f.SampleDuration(f.Samples(bytes))
}

// MIMEType returns the tag sent next to encoded payloads, e.g.
// "audio/pcm;rate=16000". Channels are only named when there is more than one.
func (f Format) MIMEType() string {
	if f.Channels() == 1 {
		return "audio/pcm;rate=" + strconv.Itoa(f.SampleRate())
	}
	return fmt.Sprintf("audio/pcm;rate=%d;channels=%d", f.SampleRate(), f.Channels())
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K, L16Stereo24K, L16Stereo48K:
		return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate(), f.Channels())
	}
	return fmt.Sprintf("pcm.Format(%d)", int(f))
}

// FormatOf returns the format with the given sample rate and channel count.
func FormatOf(rate, channels int) (Format, error) {
	switch {
	case rate == 16000 && channels == 1:
		return L16Mono16K, nil
	case rate == 24000 && channels == 1:
		return L16Mono24K, nil
	case rate == 48000 && channels == 1:
		return L16Mono48K, nil
	case rate == 24000 && channels == 2:
		return L16Stereo24K, nil
	case rate == 48000 && channels == 2:
		return L16Stereo48K, nil
	}
	return 0, fmt.Errorf("pcm: unsupported format rate=%d channels=%d", rate, channels)
}

// DefaultRate is assumed for audio/pcm payloads that carry no rate parameter.
const DefaultRate = 24000

// ParseMIMEType parses tags such as "audio/pcm;rate=24000" or
// "audio/L16; rate=16000; channels=1".
func ParseMIMEType(s string) (Format, error) {
	mediaType, params, err := mime.ParseMediaType(s)
	if err != nil {
		return 0, fmt.Errorf("pcm: parse mime type %q: %w", s, err)
	}
	switch strings.ToLower(mediaType) {
	case "audio/pcm", "audio/l16":
	default:
		return 0, fmt.Errorf("pcm: unsupported mime type %q", mediaType)
	}
	rate, channels := DefaultRate, 1
	if v, ok := params["rate"]; ok {
		if rate, err = strconv.Atoi(v); err != nil {
			return 0, fmt.Errorf("pcm: invalid rate %q: %w", v, err)
		}
	}
	if v, ok := params["channels"]; ok {
		if channels, err = strconv.Atoi(v); err != nil {
			return 0, fmt.Errorf("pcm: invalid channels %q: %w", v, err)
		}
	}
	return FormatOf(rate, channels)
}
