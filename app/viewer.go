package app

import (
	"context"
	"time"

	"mjpegplayback/app/session"
	"mjpegplayback/app/video"
)

// Viewer is one streaming client attached to a session's frame slot.
type Viewer struct {
	ID        string
	SessionID int

	slot    *video.FrameSlot
	demux   *video.Demuxer
	cursor  uint64
	timeout time.Duration
}

func newViewer(id string, s *session.Session, timeout time.Duration) *Viewer {
	slot := s.Slot()

	return &Viewer{
		ID:        id,
		SessionID: s.ID(),
		slot:      slot,
		demux:     s.Demuxer(),
		cursor:    slot.Attach(),
		timeout:   timeout,
	}
}

// Next blocks for the next frame this viewer has not seen. It fails with
// video.ErrEndOfStream on the sentinel and video.ErrWaitTimeout when nothing
// is published in time; the stream ends on either.
func (v *Viewer) Next(ctx context.Context) ([]byte, error) {
	frame, seq, err := v.slot.AwaitNext(ctx, v.cursor, v.timeout)

	if err != nil {
		return nil, err
	}

	v.cursor = seq

	return frame, nil
}
