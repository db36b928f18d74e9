package video

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrEndOfStream = errors.New("end of stream")
	ErrWaitTimeout = errors.New("timed out waiting for a frame")
)

// FrameSlot holds the most recently published frame of a session. There is
// one writer, the session's demultiplexer, and any number of readers. A new
// publish overwrites whatever is held; readers never see a backlog.
//
// Every publish bumps a sequence number. Readers pass the sequence of the last
// frame they handled to AwaitNext, so a reader that joins late waits for the
// next publish and a reader that falls behind jumps straight to the latest.
// A sentinel published after a reader's cursor always ends that reader, even
// when frames of a later playback were published on top of it.
type FrameSlot struct {
	mu      sync.Mutex
	frame   []byte
	endSeq  uint64
	seq     uint64
	notify  chan struct{}
	viewers int
}

func NewFrameSlot() *FrameSlot {
	return &FrameSlot{
		notify: make(chan struct{}),
	}
}

// Publish replaces the held value and wakes all waiters. A nil frame is the
// end-of-stream sentinel.
func (s *FrameSlot) Publish(frame []byte) {
	s.mu.Lock()
	s.frame = frame
	s.seq++
	if frame == nil {
		s.endSeq = s.seq
	}
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
}

// Clear drops the held frame without waking anyone. A published sentinel
// still ends every reader whose cursor precedes it.
func (s *FrameSlot) Clear() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}

// Cursor returns the sequence number of the latest publish.
func (s *FrameSlot) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// AwaitNext blocks until something newer than after is published, the
// timeout elapses or ctx is done. It returns the frame with its sequence
// number; ErrEndOfStream reports the sentinel and ErrWaitTimeout the timeout.
func (s *FrameSlot) AwaitNext(ctx context.Context, after uint64, timeout time.Duration) ([]byte, uint64, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.endSeq > after {
			seq := s.endSeq
			s.mu.Unlock()
			return nil, seq, ErrEndOfStream
		}
		if s.seq > after && s.frame != nil {
			frame, seq := s.frame, s.seq
			s.mu.Unlock()
			return frame, seq, nil
		}
		wake := s.notify
		s.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return nil, after, ErrWaitTimeout
		case <-ctx.Done():
			return nil, after, ctx.Err()
		}
	}
}

// Attach registers a reader and returns the cursor it should start from.
func (s *FrameSlot) Attach() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers++
	return s.seq
}

// Detach unregisters a reader and returns how many remain.
func (s *FrameSlot) Detach() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewers > 0 {
		s.viewers--
	}
	return s.viewers
}

func (s *FrameSlot) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewers
}
