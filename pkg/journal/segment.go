package journal

import (
	"fmt"
	"os"
	"sync"
)

// Segment is a single append-only journal file.
type Segment struct {
	mu     sync.RWMutex
	id     uint64
	path   string
	file   *os.File
	size   int64
	closed bool
}

// NewSegment creates or opens a segment.
func NewSegment(id uint64, path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Segment{
		id:   id,
		path: path,
		file: f,
		size: stat.Size(),
	}, nil
}

// Write appends data and returns the offset it was written at.
func (s *Segment) Write(data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	n, err := s.file.Write(data)
	if err != nil {
		return 0, err
	}

	offset := s.size
	s.size += int64(n)
	return offset, nil
}

// ReadAt reads size bytes at offset. Sealed segments are reopened read-only on demand.
func (s *Segment) ReadAt(offset int64, size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, err
		}
		s.file = f
	}

	buf := make([]byte, size)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Truncate drops everything from size onwards.
func (s *Segment) Truncate(size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.file.Truncate(size); err != nil {
		return err
	}
	s.size = size
	return nil
}

// Seal closes the write handle. The segment stays readable.
func (s *Segment) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

func (s *Segment) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil || s.closed {
		return nil
	}
	return s.file.Sync()
}

func (s *Segment) ID() uint64 {
	return s.id
}

func (s *Segment) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}
