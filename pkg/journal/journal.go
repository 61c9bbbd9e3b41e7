// Package journal keeps an append-only record of cache flushes that failed,
// so the keys they left stale can be found and repaired later.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var ErrClosed = errors.New("journal: closed")

const (
	// DefaultSegmentSize is the size after which the active segment is sealed.
	DefaultSegmentSize = 16 * 1024 * 1024

	segmentExt   = ".journal"
	segmentShift = 32
	offsetMask   = (1 << segmentShift) - 1
)

// PackOffset combines segment ID and file offset into a single int64.
func PackOffset(segmentID uint64, offset int64) int64 {
	return int64((segmentID << segmentShift) | uint64(offset))
}

func UnpackOffset(packed int64) (uint64, int64) {
	return uint64(packed) >> segmentShift, packed & offsetMask
}

// Journal manages the segment files of one directory.
type Journal struct {
	mu      sync.Mutex
	dir     string
	active  *Segment
	sealed  []*Segment
	maxSize int64
	closed  bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the journal stored in dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}

	j := &Journal{
		dir:     dir,
		maxSize: DefaultSegmentSize,
		enc:     enc,
		dec:     dec,
	}
	if err := j.loadSegments(); err != nil {
		j.release()
		return nil, err
	}
	return j, nil
}

func (j *Journal) segmentPath(id uint64) string {
	return filepath.Join(j.dir, fmt.Sprintf("%016x%s", id, segmentExt))
}

func (j *Journal) loadSegments() error {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return err
	}

	var ids []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), segmentExt) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), segmentExt), 16, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	for i, id := range ids {
		seg, err := NewSegment(id, j.segmentPath(id))
		if err != nil {
			return err
		}
		if i == len(ids)-1 {
			j.active = seg
			continue
		}
		if err := seg.Seal(); err != nil {
			return err
		}
		j.sealed = append(j.sealed, seg)
	}

	if j.active == nil {
		seg, err := NewSegment(0, j.segmentPath(0))
		if err != nil {
			return err
		}
		j.active = seg
	}
	return j.repairActive()
}

// Append writes r to the active segment, rotating first if it would overflow.
// It returns the packed offset of the record.
func (j *Journal) Append(r Record) (int64, error) {
	payload := j.enc.EncodeAll(encodeBody(r), nil)

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint64(frame, checksum(payload))
	binary.BigEndian.PutUint32(frame[8:], uint32(len(payload)))
	frame = append(frame, payload...)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrClosed
	}

	if size := j.active.Size(); size > 0 && size+int64(len(frame)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return 0, err
		}
	}

	offset, err := j.active.Write(frame)
	if err != nil {
		return 0, err
	}
	return PackOffset(j.active.ID(), offset), nil
}

func (j *Journal) rotate() error {
	if err := j.active.Sync(); err != nil {
		return err
	}
	if err := j.active.Seal(); err != nil {
		return err
	}
	j.sealed = append(j.sealed, j.active)

	id := j.active.ID() + 1
	seg, err := NewSegment(id, j.segmentPath(id))
	if err != nil {
		return err
	}
	j.active = seg
	return nil
}

// Iterate calls fn for every record, oldest first. A checksum mismatch or a
// truncated frame stops the walk with ErrCorrupt.
func (j *Journal) Iterate(fn func(r Record, offset int64) error) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	segments := make([]*Segment, 0, len(j.sealed)+1)
	segments = append(segments, j.sealed...)
	segments = append(segments, j.active)
	j.mu.Unlock()

	for _, seg := range segments {
		if _, err := j.iterateSegment(seg, fn); err != nil {
			return err
		}
	}
	return nil
}

// iterateSegment walks seg and returns the offset just past the last frame it
// accepted.
func (j *Journal) iterateSegment(seg *Segment, fn func(r Record, offset int64) error) (int64, error) {
	size := seg.Size()
	offset := int64(0)
	for offset < size {
		if size-offset < frameHeaderSize {
			return offset, fmt.Errorf("%w: segment %d truncated at %d", ErrCorrupt, seg.ID(), offset)
		}
		header, err := seg.ReadAt(offset, frameHeaderSize)
		if err != nil {
			return offset, err
		}
		sum := binary.BigEndian.Uint64(header)
		n := int64(binary.BigEndian.Uint32(header[8:]))
		if offset+frameHeaderSize+n > size {
			return offset, fmt.Errorf("%w: segment %d truncated at %d", ErrCorrupt, seg.ID(), offset)
		}

		payload, err := seg.ReadAt(offset+frameHeaderSize, int(n))
		if err != nil {
			return offset, err
		}
		if checksum(payload) != sum {
			return offset, fmt.Errorf("%w: checksum mismatch in segment %d at %d", ErrCorrupt, seg.ID(), offset)
		}

		body, err := j.dec.DecodeAll(payload, nil)
		if err != nil {
			return offset, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r, err := decodeBody(body)
		if err != nil {
			return offset, err
		}
		if err := fn(r, PackOffset(seg.ID(), offset)); err != nil {
			return offset, err
		}
		offset += frameHeaderSize + n
	}
	return offset, nil
}

// repairActive cuts a torn or corrupt tail off the active segment so new
// records land right after the last readable one.
func (j *Journal) repairActive() error {
	end, err := j.iterateSegment(j.active, func(Record, int64) error { return nil })
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCorrupt) {
		return err
	}
	return j.active.Truncate(end)
}

func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return j.active.Sync()
}

// SetMaxSegmentSize changes the rotation threshold.
func (j *Journal) SetMaxSegmentSize(size int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.maxSize = size
}

func (j *Journal) ActiveSegmentID() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.active.ID()
}

// SealedSegments returns the number of sealed segment files.
func (j *Journal) SealedSegments() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.sealed)
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	err := j.active.Sync()
	for _, s := range append(j.sealed, j.active) {
		if cerr := s.Seal(); cerr != nil && err == nil {
			err = cerr
		}
	}
	j.release()
	return err
}

func (j *Journal) release() {
	j.enc.Close()
	j.dec.Close()
}
