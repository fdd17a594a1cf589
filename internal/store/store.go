// Package store persists recent module events across restarts in a small
// memory-mapped journal.
//
// The file is a fixed-size ring: a 64-byte header followed by capacity
// 48-byte records. Records are written before the header that publishes them,
// so a crash between the two loses at most the newest record.
//
//	header
//	  0:4   magic
//	  4:8   version
//	  8:12  capacity
//	  12:16 count
//	  16:20 head (next write slot)
//	  24:32 boot time, unix nanos
//	  56:60 CRC32 (Castagnoli) of bytes 0:56
//
//	record
//	  0:12  module, NUL padded
//	  12:28 event, NUL padded
//	  28    flags
//	  32:40 wall time, unix nanos
//	  40:48 monotonic time since boot, nanos
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/sweeney/thermostat/internal/fsm"
)

// Defaults used by the daemon.
const (
	DefaultPath     = "/var/lib/thermostat/journal"
	DefaultCapacity = 64
)

const (
	magic        uint32 = 0x4A545354 // "TSTJ"
	version      uint32 = 1
	headerSize          = 64
	recordSize          = 48
	moduleLen           = 12
	eventLen            = 16
	flagTimeout  byte   = 1 << 0
	fileModePerm        = 0o644
	maxCapacity         = 1 << 16
)

var (
	ErrCorrupt      = errors.New("store: corrupt journal")
	ErrCapacity     = errors.New("store: capacity mismatch")
	ErrClosed       = errors.New("store: journal is closed")
	ErrFieldTooLong = errors.New("store: field too long")

	crcTable = crc32.MakeTable(crc32.Castagnoli)
)

// Record is one journaled module event.
type Record struct {
	Module  string
	Event   string
	Timeout bool
	Time    time.Time     // wall clock
	At      fsm.Timestamp // monotonic, since boot
}

// Journal is a fixed-capacity, memory-mapped event log. Once full, each
// Append overwrites the oldest record. Safe for concurrent use.
type Journal struct {
	mu       sync.Mutex
	fd       *os.File
	data     mmap.MMap
	capacity int
	count    int
	head     int
	boot     time.Time
	closed   bool
}

// Open maps the journal at path, creating it with the given capacity if it
// does not exist. An existing file must have been created with the same
// capacity.
func Open(path string, capacity int) (*Journal, error) {
	if capacity < 1 || capacity > maxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrCapacity, capacity)
	}

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, fileModePerm)
	if err != nil {
		return nil, err
	}
	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}

	size := int64(headerSize + capacity*recordSize)
	fresh := info.Size() == 0
	if fresh {
		if err := fd.Truncate(size); err != nil {
			fd.Close()
			return nil, fmt.Errorf("truncate error: %w", err)
		}
	} else if info.Size() < headerSize {
		fd.Close()
		return nil, fmt.Errorf("%w: file is %d bytes", ErrCorrupt, info.Size())
	}

	data, err := mmap.Map(fd, mmap.RDWR, 0)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("mmap error: %w", err)
	}

	j := &Journal{fd: fd, data: data, capacity: capacity}
	if fresh {
		j.writeHeader()
		return j, nil
	}

	if err := j.readHeader(int64(len(data))); err != nil {
		_ = data.Unmap()
		fd.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) readHeader(fileSize int64) error {
	h := j.data[:headerSize]
	if crc := binary.LittleEndian.Uint32(h[56:60]); crc != crc32.Checksum(h[0:56], crcTable) {
		return fmt.Errorf("%w: header CRC mismatch", ErrCorrupt)
	}
	if m := binary.LittleEndian.Uint32(h[0:4]); m != magic {
		return fmt.Errorf("%w: bad magic %08x", ErrCorrupt, m)
	}
	if v := binary.LittleEndian.Uint32(h[4:8]); v != version {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}

	capacity := int(binary.LittleEndian.Uint32(h[8:12]))
	if capacity != j.capacity {
		return fmt.Errorf("%w: file holds %d records, want %d", ErrCapacity, capacity, j.capacity)
	}
	if fileSize != int64(headerSize+capacity*recordSize) {
		return fmt.Errorf("%w: size %d does not match capacity %d", ErrCorrupt, fileSize, capacity)
	}

	count := int(binary.LittleEndian.Uint32(h[12:16]))
	head := int(binary.LittleEndian.Uint32(h[16:20]))
	if count > capacity || head >= capacity {
		return fmt.Errorf("%w: count %d head %d", ErrCorrupt, count, head)
	}

	j.count = count
	j.head = head
	if nanos := int64(binary.LittleEndian.Uint64(h[24:32])); nanos != 0 {
		j.boot = time.Unix(0, nanos)
	}
	return nil
}

func (j *Journal) writeHeader() {
	h := j.data[:headerSize]
	binary.LittleEndian.PutUint32(h[0:4], magic)
	binary.LittleEndian.PutUint32(h[4:8], version)
	binary.LittleEndian.PutUint32(h[8:12], uint32(j.capacity))
	binary.LittleEndian.PutUint32(h[12:16], uint32(j.count))
	binary.LittleEndian.PutUint32(h[16:20], uint32(j.head))
	var boot int64
	if !j.boot.IsZero() {
		boot = j.boot.UnixNano()
	}
	binary.LittleEndian.PutUint64(h[24:32], uint64(boot))
	binary.LittleEndian.PutUint32(h[56:60], crc32.Checksum(h[0:56], crcTable))
}

func (j *Journal) slot(i int) []byte {
	off := headerSize + i*recordSize
	return j.data[off : off+recordSize]
}

// Append journals r, overwriting the oldest record when full.
func (j *Journal) Append(r Record) error {
	if len(r.Module) > moduleLen {
		return fmt.Errorf("%w: module %q", ErrFieldTooLong, r.Module)
	}
	if len(r.Event) > eventLen {
		return fmt.Errorf("%w: event %q", ErrFieldTooLong, r.Event)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	buf := j.slot(j.head)
	for i := range buf {
		buf[i] = 0
	}
	copy(buf[0:moduleLen], r.Module)
	copy(buf[moduleLen:moduleLen+eventLen], r.Event)
	if r.Timeout {
		buf[28] = flagTimeout
	}
	binary.LittleEndian.PutUint64(buf[32:40], uint64(r.Time.UnixNano()))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(r.At))

	j.head = (j.head + 1) % j.capacity
	if j.count < j.capacity {
		j.count++
	}
	j.writeHeader()
	return nil
}

// Entries returns the journaled records, oldest first.
func (j *Journal) Entries() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed || j.count == 0 {
		return nil
	}

	out := make([]Record, 0, j.count)
	start := (j.head - j.count + j.capacity) % j.capacity
	for i := 0; i < j.count; i++ {
		out = append(out, decodeRecord(j.slot((start+i)%j.capacity)))
	}
	return out
}

func decodeRecord(buf []byte) Record {
	return Record{
		Module:  string(bytes.TrimRight(buf[0:moduleLen], "\x00")),
		Event:   string(bytes.TrimRight(buf[moduleLen:moduleLen+eventLen], "\x00")),
		Timeout: buf[28]&flagTimeout != 0,
		Time:    time.Unix(0, int64(binary.LittleEndian.Uint64(buf[32:40]))),
		At:      fsm.Timestamp(binary.LittleEndian.Uint64(buf[40:48])),
	}
}

// Len returns the number of journaled records.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Cap returns the journal capacity.
func (j *Journal) Cap() int {
	return j.capacity
}

// Boot returns the boot time written by the last Reset. It is the zero time
// for a journal that was never reset.
func (j *Journal) Boot() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.boot
}

// Reset discards all records and starts a new session at boot.
func (j *Journal) Reset(boot time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.count = 0
	j.head = 0
	j.boot = boot
	j.writeHeader()
	return nil
}

// Sync flushes the mapping to disk.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if err := j.data.Flush(); err != nil {
		return fmt.Errorf("flush error: %w", err)
	}
	return nil
}

// Close syncs, unmaps and closes the journal. Further calls are no-ops.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.data.Flush(); err != nil {
		_ = j.data.Unmap()
		_ = j.fd.Close()
		return fmt.Errorf("sync error during close: %w", err)
	}
	if err := j.data.Unmap(); err != nil {
		_ = j.fd.Close()
		return fmt.Errorf("unmap error: %w", err)
	}
	if err := j.fd.Close(); err != nil {
		return fmt.Errorf("file close error: %w", err)
	}
	return nil
}
