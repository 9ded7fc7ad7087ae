package indexstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
)

// MagicBytes identifies a valid .fidx feature index file ("FIDX").
const (
	MagicBytes    uint32 = 0x46494458
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 8
)

// Header is the 32-byte header written at the start of every index file.
type Header struct {
	Magic     uint32
	Version   uint32
	KeyCount  uint32
	Reserved  uint32
	CreatedAt int64
	DictSize  int64
}

// Write atomically stores ix at path. It writes to a .tmp file first and
// renames on success. Keys are stored in position order so Read restores
// identical positions.
func Write(path string, ix *features.Index) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	dictData, err := json.Marshal(ix.Keys())
	if err != nil {
		return fmt.Errorf("marshaling feature keys: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer f.Close()

	header := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		KeyCount:  uint32(ix.Size()),
		CreatedAt: time.Now().Unix(),
		DictSize:  int64(len(dictData)),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.KeyCount)
	binary.LittleEndian.PutUint32(headerBytes[12:16], header.Reserved)
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(header.CreatedAt))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(header.DictSize))
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing feature keys: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], header.KeyCount)
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}
