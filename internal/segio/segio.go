// Package segio reads and writes immutable segment files: sorted runs of
// key/value records produced by flushing an itemcache Cache's dirty set.
//
// A segment file is a fixed-size header followed by records in ascending
// key order. Segment files are immutable once published: Writer.Close
// builds the whole file in memory and publishes it with a single atomic
// rename, so a reader never observes a partially written segment.
package segio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/natefinch/atomic"
)

// SEG1 file format constants.
const (
	magic      = "SEG1"
	formatVers = 1
	headerSize = 32

	offMagic      = 0x00 // [4]byte
	offVersion    = 0x04 // uint32
	offItemCount  = 0x08 // uint32
	offReserved   = 0x0C // uint32
	offHeaderCRC  = 0x10 // uint32
	offBodyCRC    = 0x14 // uint32
	offBodyLength = 0x18 // uint64, through 0x1F
)

// FlagDeletion marks a record as a tombstone.
const FlagDeletion uint8 = 0x1

// Record is one key/value entry within a segment, in the order it was
// written.
type Record struct {
	Key   []byte
	Value []byte
	Flags uint8
}

// Writer accumulates records for a single segment file in key order and
// publishes them atomically. It implements the FirstItem/AppendItem shape
// of itemcache.SegmentWriter, minus the FitsSingle predicate which a
// caller composes from a size budget.
type Writer struct {
	path    string
	records []Record
}

// NewWriter returns a Writer that will publish to path on Close.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// FirstItem begins the segment. n is a hint used only to preallocate; it
// is not trusted over the actual record count written. keyBytes is ignored.
func (w *Writer) FirstItem(key, val []byte, flags uint8, n int, keyBytes uint64) {
	w.records = make([]Record, 0, n)
	w.AppendItem(key, val, flags)
}

// AppendItem appends the next record.
func (w *Writer) AppendItem(key, val []byte, flags uint8) {
	w.records = append(w.records, Record{Key: append([]byte(nil), key...), Value: append([]byte(nil), val...), Flags: flags})
}

// Close serializes the accumulated records and publishes the segment file
// atomically: the full body is rendered in memory, then
// atomic.WriteFile does a write-to-temp-and-rename so a crash never
// leaves a half-written segment at the final path.
func (w *Writer) Close() error {
	buf := encode(w.records)

	return atomic.WriteFile(w.path, bytes.NewReader(buf))
}

func encode(records []Record) []byte {
	body := encodeBody(records)

	buf := make([]byte, headerSize+len(body))
	copy(buf[offMagic:], magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], formatVers)
	binary.LittleEndian.PutUint32(buf[offItemCount:], uint32(len(records)))
	binary.LittleEndian.PutUint64(buf[offBodyLength:], uint64(len(body)))
	binary.LittleEndian.PutUint32(buf[offBodyCRC:], crc32.Checksum(body, crc32.MakeTable(crc32.Castagnoli)))

	hc := headerCRC(buf)
	binary.LittleEndian.PutUint32(buf[offHeaderCRC:], hc)

	copy(buf[headerSize:], body)

	return buf
}

func encodeBody(records []Record) []byte {
	var size int

	for _, r := range records {
		size += 1 + 4 + len(r.Key) + 4 + len(r.Value)
	}

	body := make([]byte, size)
	off := 0

	for _, r := range records {
		body[off] = r.Flags
		off++
		binary.LittleEndian.PutUint32(body[off:], uint32(len(r.Key)))
		off += 4
		copy(body[off:], r.Key)
		off += len(r.Key)
		binary.LittleEndian.PutUint32(body[off:], uint32(len(r.Value)))
		off += 4
		copy(body[off:], r.Value)
		off += len(r.Value)
	}

	return body
}

func headerCRC(buf []byte) uint32 {
	tmp := make([]byte, headerSize)
	copy(tmp, buf[:headerSize])

	for i := offHeaderCRC; i < offHeaderCRC+4; i++ {
		tmp[i] = 0
	}

	return crc32.Checksum(tmp, crc32.MakeTable(crc32.Castagnoli))
}

// Read parses a segment file at path and returns its records in order.
func Read(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("segio: read %s: %w", path, err)
	}

	if len(raw) < headerSize {
		return nil, fmt.Errorf("segio: %s: truncated header (%d bytes)", path, len(raw))
	}

	if string(raw[offMagic:offMagic+4]) != magic {
		return nil, fmt.Errorf("segio: %s: bad magic", path)
	}

	if binary.LittleEndian.Uint32(raw[offHeaderCRC:]) != headerCRC(raw) {
		return nil, fmt.Errorf("segio: %s: header checksum mismatch", path)
	}

	bodyLen := binary.LittleEndian.Uint64(raw[offBodyLength:])
	if uint64(len(raw)) < uint64(headerSize)+bodyLen {
		return nil, fmt.Errorf("segio: %s: truncated body", path)
	}

	body := raw[headerSize : uint64(headerSize)+bodyLen]
	if binary.LittleEndian.Uint32(raw[offBodyCRC:]) != crc32.Checksum(body, crc32.MakeTable(crc32.Castagnoli)) {
		return nil, fmt.Errorf("segio: %s: body checksum mismatch", path)
	}

	n := binary.LittleEndian.Uint32(raw[offItemCount:])
	records := make([]Record, 0, n)

	off := 0

	for i := uint32(0); i < n; i++ {
		if off+1+4 > len(body) {
			return nil, fmt.Errorf("segio: %s: record %d: truncated", path, i)
		}

		flags := body[off]
		off++

		keyLen := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4

		if off+keyLen+4 > len(body) {
			return nil, fmt.Errorf("segio: %s: record %d: truncated key", path, i)
		}

		key := body[off : off+keyLen]
		off += keyLen

		valLen := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4

		if off+valLen > len(body) {
			return nil, fmt.Errorf("segio: %s: record %d: truncated value", path, i)
		}

		val := body[off : off+valLen]
		off += valLen

		records = append(records, Record{Key: key, Value: val, Flags: flags})
	}

	return records, nil
}
