// Package indexstore persists a training feature index so that test-time
// vector assembly, possibly in another process, aligns to the same positions.
// Indexes are stored as .fidx files or shared through Redis.
package indexstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// Read loads and verifies an index written by Write.
func Read(path string) (*features.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	header, dict, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("index file %s: %w", path, err)
	}
	var keys []string
	if err := json.Unmarshal(dict, &keys); err != nil {
		return nil, fmt.Errorf("index file %s: parsing feature keys: %v: %w", path, err, apperrors.ErrCorruptIndex)
	}
	if uint32(len(keys)) != header.KeyCount {
		return nil, fmt.Errorf("index file %s: header declares %d keys, found %d: %w",
			path, header.KeyCount, len(keys), apperrors.ErrCorruptIndex)
	}
	ix, err := features.IndexFromKeys(keys)
	if err != nil {
		return nil, fmt.Errorf("index file %s: %w", path, err)
	}
	return ix, nil
}

func decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize+FooterSize {
		return Header{}, nil, fmt.Errorf("file too short (%d bytes): %w", len(data), apperrors.ErrCorruptIndex)
	}
	header := Header{
		Magic:     binary.LittleEndian.Uint32(data[0:4]),
		Version:   binary.LittleEndian.Uint32(data[4:8]),
		KeyCount:  binary.LittleEndian.Uint32(data[8:12]),
		Reserved:  binary.LittleEndian.Uint32(data[12:16]),
		CreatedAt: int64(binary.LittleEndian.Uint64(data[16:24])),
		DictSize:  int64(binary.LittleEndian.Uint64(data[24:32])),
	}
	if header.Magic != MagicBytes {
		return header, nil, fmt.Errorf("bad magic bytes %x: %w", header.Magic, apperrors.ErrCorruptIndex)
	}
	if header.Version != FormatVersion {
		return header, nil, fmt.Errorf("unsupported format version %d: %w", header.Version, apperrors.ErrCorruptIndex)
	}
	if header.DictSize < 0 || int64(HeaderSize)+header.DictSize+int64(FooterSize) != int64(len(data)) {
		return header, nil, fmt.Errorf("dictionary size %d does not match file size %d: %w",
			header.DictSize, len(data), apperrors.ErrCorruptIndex)
	}
	dict := data[HeaderSize : HeaderSize+int(header.DictSize)]
	footer := data[len(data)-FooterSize:]
	checksum := binary.LittleEndian.Uint32(footer[0:4])
	if got := crc32.ChecksumIEEE(dict); got != checksum {
		return header, nil, fmt.Errorf("checksum mismatch: stored %08x, computed %08x: %w", checksum, got, apperrors.ErrCorruptIndex)
	}
	if footerCount := binary.LittleEndian.Uint32(footer[4:8]); footerCount != header.KeyCount {
		return header, nil, fmt.Errorf("footer key count %d differs from header %d: %w",
			footerCount, header.KeyCount, apperrors.ErrCorruptIndex)
	}
	return header, dict, nil
}
