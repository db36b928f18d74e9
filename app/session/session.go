package session

import (
	"sync"

	"mjpegplayback/app/video"
	"mjpegplayback/models"
)

// Session is one viewer's choice of source file plus playback parameters.
// The frame slot lives as long as the session; the demuxer is replaced
// whenever playback is restarted or retargeted.
type Session struct {
	id   int
	slot *video.FrameSlot

	mu     sync.Mutex
	params video.Params
	demux  *video.Demuxer
}

// ParamsUpdate carries the playback fields a request wants to change; nil
// fields are left alone.
type ParamsUpdate struct {
	StartFrame  *int
	StopFrame   *int
	SpeedFactor *float64
}

func (s *Session) ID() int {
	return s.id
}

func (s *Session) Slot() *video.FrameSlot {
	return s.slot
}

// Params is the read a demuxer performs once at start.
func (s *Session) Params() video.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Session) Demuxer() *video.Demuxer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demux
}

func (s *Session) FileName() string {
	return s.Demuxer().FileName()
}

func (s *Session) install(d *video.Demuxer) {
	s.mu.Lock()
	s.demux = d
	s.mu.Unlock()
}

func (s *Session) apply(u ParamsUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.StartFrame != nil {
		s.params.StartFrame = *u.StartFrame
	}
	if u.StopFrame != nil {
		s.params.StopFrame = *u.StopFrame
	}
	if u.SpeedFactor != nil {
		s.params.SpeedFactor = *u.SpeedFactor
	}
}

func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	params, demux := s.params, s.demux
	s.mu.Unlock()

	processed, published := demux.Stats()

	return models.SessionInfo{
		ID:              s.id,
		FileName:        demux.FileName(),
		StartFrame:      params.StartFrame,
		StopFrame:       params.StopFrame,
		SpeedFactor:     params.SpeedFactor,
		State:           demux.State().String(),
		Viewers:         s.slot.Viewers(),
		FramesProcessed: processed,
		FramesPublished: published,
	}
}
