package protocol

import (
	"bytes"
	"compress/flate"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/limits"
)

// ErrEmptyData is returned when decoding an empty buffer.
var ErrEmptyData = errors.New("no data to decode")

func init() {
	RegisterType(address.Endpoint{})
	RegisterType(address.NetworkInfo{})
	RegisterType([]address.NetworkInfo{})
	RegisterType([]string{})
	RegisterType(map[string]string{})
}

// RegisterType makes a concrete type usable as Payload.Data.
func RegisterType(value any) {
	gob.Register(value)
}

// Encode serializes v with gob and compresses the result with deflate.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	if err := gob.NewEncoder(fw).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data and decodes it into v, which must be a pointer.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyData
	}
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()

	if err := gob.NewDecoder(io.LimitReader(fr, limits.MaxDecodedSize)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}
