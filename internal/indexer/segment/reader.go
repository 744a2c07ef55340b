package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ErrCorrupt is returned for any framing, checksum or decoding failure.
var ErrCorrupt = errors.New("corrupt segment")

func parseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupt, len(b))
	}
	h := Header{
		Magic:     binary.LittleEndian.Uint32(b[0:4]),
		Version:   binary.LittleEndian.Uint32(b[4:8]),
		Kind:      string(bytes.TrimRight(b[8:8+maxKindLen], "\x00")),
		CreatedAt: time.Unix(int64(binary.LittleEndian.Uint64(b[24:32])), 0),
		RawLen:    binary.LittleEndian.Uint64(b[32:40]),
		DataLen:   binary.LittleEndian.Uint64(b[40:48]),
		Checksum:  binary.LittleEndian.Uint32(b[48:52]),
	}
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	return h, nil
}

// Decode verifies a framed segment of the expected kind and unmarshals its
// payload into v.
func Decode(data []byte, kind string, v any) (Header, error) {
	h, err := parseHeader(data)
	if err != nil {
		return Header{}, err
	}
	if h.Kind != kind {
		return Header{}, fmt.Errorf("%w: expected kind %q, found %q", ErrCorrupt, kind, h.Kind)
	}
	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.DataLen {
		return Header{}, fmt.Errorf("%w: %s payload is %d bytes, header says %d", ErrCorrupt, kind, len(payload), h.DataLen)
	}
	if sum := crc32.ChecksumIEEE(payload); sum != h.Checksum {
		return Header{}, fmt.Errorf("%w: %s checksum mismatch (%08x != %08x)", ErrCorrupt, kind, sum, h.Checksum)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Header{}, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, make([]byte, 0, h.RawLen))
	if err != nil {
		return Header{}, fmt.Errorf("%w: decompressing %s: %v", ErrCorrupt, kind, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return Header{}, fmt.Errorf("%w: decoding %s: %v", ErrCorrupt, kind, err)
	}
	return h, nil
}

// ReadFile reads and decodes the segment at path.
func ReadFile(path, kind string, v any) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("reading segment %s: %w", kind, err)
	}
	return Decode(data, kind, v)
}
