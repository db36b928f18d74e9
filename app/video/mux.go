package video

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the number of bytes requested from the source per read.
const DefaultChunkSize = 10000

var startOfImage = []byte{0xFF, 0xD8}

// Splitter slices a concatenation of JPEG images into frames. A frame runs
// from one start-of-image marker up to the next marker or the end of the
// stream. Bytes ahead of the first marker are discarded.
type Splitter struct {
	source   io.Reader
	chunk    []byte
	frame    []byte
	scanFrom int
	started  bool
	eof      bool
}

func NewSplitter(source io.Reader, chunkSize int) *Splitter {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}

	return &Splitter{
		source: source,
		chunk:  make([]byte, chunkSize),
	}
}

// Next returns the next complete frame, or io.EOF once the source is
// exhausted and the trailing frame has been handed out.
func (s *Splitter) Next() ([]byte, error) {
	for {
		if s.started {
			if i := bytes.Index(s.frame[s.scanFrom:], startOfImage); i != -1 {
				return s.cut(s.scanFrom + i), nil
			}
			// the last byte may be the first half of a marker split across reads
			if len(s.frame) > len(startOfImage) {
				s.scanFrom = len(s.frame) - 1
			}
		} else if i := bytes.Index(s.frame, startOfImage); i != -1 {
			s.frame = append(s.frame[:0], s.frame[i:]...)
			s.started = true
			s.scanFrom = len(startOfImage)
			continue
		} else if n := len(s.frame); n > 1 {
			s.frame = append(s.frame[:0], s.frame[n-1])
		}

		if s.eof {
			if s.started && len(s.frame) > 0 {
				return s.cut(len(s.frame)), nil
			}
			return nil, io.EOF
		}

		n, err := s.source.Read(s.chunk)
		s.frame = append(s.frame, s.chunk[:n]...)

		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			return nil, errors.Wrap(err, "reading mjpeg source")
		}
	}
}

// cut hands out frame[:end] as a fresh slice and keeps the remainder buffered.
func (s *Splitter) cut(end int) []byte {
	frame := make([]byte, end)
	copy(frame, s.frame[:end])

	s.frame = append(s.frame[:0], s.frame[end:]...)
	s.scanFrom = len(startOfImage)
	if s.scanFrom > len(s.frame) {
		s.scanFrom = len(s.frame)
	}

	return frame
}
