// Package segment reads and writes framed artifact files. A segment is a
// fixed header followed by a zstd-compressed JSON payload:
//
//	magic   uint32  "BSEG"
//	version uint32
//	kind    [16]byte zero-padded artifact kind
//	created int64   unix seconds
//	rawLen  uint64  uncompressed payload length
//	dataLen uint64  compressed payload length
//	crc     uint32  CRC-32 (IEEE) of the compressed payload
//	pad     [12]byte
package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	MagicBytes    uint32 = 0x42534547
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	maxKindLen           = 16
)

// Header describes a segment file.
type Header struct {
	Magic     uint32
	Version   uint32
	Kind      string
	CreatedAt time.Time
	RawLen    uint64
	DataLen   uint64
	Checksum  uint32
}

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	copy(b[8:8+maxKindLen], h.Kind)
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.CreatedAt.Unix()))
	binary.LittleEndian.PutUint64(b[32:40], h.RawLen)
	binary.LittleEndian.PutUint64(b[40:48], h.DataLen)
	binary.LittleEndian.PutUint32(b[48:52], h.Checksum)
	return b
}

// Encode compresses v as JSON and frames it as a segment of the given kind.
func Encode(kind string, v any) ([]byte, Header, error) {
	if kind == "" || len(kind) > maxKindLen {
		return nil, Header{}, fmt.Errorf("invalid segment kind %q", kind)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, Header{}, fmt.Errorf("marshaling %s payload: %w", kind, err)
	}
	var payload bytes.Buffer
	enc, err := zstd.NewWriter(&payload)
	if err != nil {
		return nil, Header{}, fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, Header{}, fmt.Errorf("compressing %s payload: %w", kind, err)
	}
	if err := enc.Close(); err != nil {
		return nil, Header{}, fmt.Errorf("flushing %s payload: %w", kind, err)
	}
	h := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		Kind:      kind,
		CreatedAt: time.Now(),
		RawLen:    uint64(len(raw)),
		DataLen:   uint64(payload.Len()),
		Checksum:  crc32.ChecksumIEEE(payload.Bytes()),
	}
	out := make([]byte, 0, HeaderSize+payload.Len())
	out = append(out, h.marshal()...)
	out = append(out, payload.Bytes()...)
	return out, h, nil
}

// WriteFile atomically writes v as a segment at path. It writes to a .tmp
// file, syncs it, and renames on success.
func WriteFile(path, kind string, v any) (Header, error) {
	data, h, err := Encode(kind, v)
	if err != nil {
		return Header{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Header{}, fmt.Errorf("creating segment directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Header{}, fmt.Errorf("creating temp segment file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return Header{}, fmt.Errorf("writing segment %s: %w", kind, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return Header{}, fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return Header{}, fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Header{}, fmt.Errorf("renaming segment file: %w", err)
	}
	return h, nil
}
