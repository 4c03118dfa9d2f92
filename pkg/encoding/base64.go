// Package encoding provides byte slice types with JSON text encodings.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// StdBase64Data is a byte slice that marshals to a standard base64 JSON
// string. JSON null unmarshals to nil.
type StdBase64Data []byte

// MarshalJSON implements json.Marshaler.
func (b StdBase64Data) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, base64.StdEncoding.EncodedLen(len(b))+2)
	out = append(out, '"')
	out = base64.StdEncoding.AppendEncode(out, b)
	return append(out, '"'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *StdBase64Data) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("encoding: base64 data: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("encoding: base64 data: %w", err)
	}
	*b = decoded
	return nil
}

func (b StdBase64Data) String() string {
	return base64.StdEncoding.EncodeToString(b)
}
