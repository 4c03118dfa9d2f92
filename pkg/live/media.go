package live

import (
	"fmt"

	"github.com/haivivi/gizlive/pkg/audio/pcm"
)

// MediaKind distinguishes the independent outbound and inbound media streams.
type MediaKind int

const (
	MediaAudio MediaKind = iota
	MediaImage
)

func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaImage:
		return "image"
	}
	return fmt.Sprintf("MediaKind(%d)", int(k))
}

// Media is one encoded chunk: PCM16 audio or a compressed video frame.
type Media struct {
	Kind     MediaKind
	MIMEType string
	Data     []byte
}

// EncodeAudio encodes a captured frame as a PCM16 audio chunk.
func EncodeAudio(frame []float32, f pcm.Format) Media {
	return Media{
		Kind:     MediaAudio,
		MIMEType: f.MIMEType(),
		Data:     pcm.Encode(frame),
	}
}

// DecodeAudio decodes an inbound audio chunk using its MIME tag.
func DecodeAudio(m Media) (*pcm.Buffer, error) {
	f, err := pcm.ParseMIMEType(m.MIMEType)
	if err != nil {
		return nil, &pcm.DecodeError{Len: len(m.Data), Reason: err.Error()}
	}
	return pcm.Decode(m.Data, f)
}
