package session

import (
	"fmt"
	"sort"
	"sync"

	"mjpegplayback/app/video"
	"mjpegplayback/apperror"
	"mjpegplayback/config"
	"mjpegplayback/logger"
)

// Registry owns every Session. Its lock covers the session map, the id
// counter and any stop-and-replace of a session's demuxer, and is always
// taken before a session's own lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*Session
	nextID   int

	settings config.Playback
	logger   *logger.Logger
}

func NewRegistry(settings config.Playback, logger *logger.Logger) *Registry {
	return &Registry{
		sessions: make(map[int]*Session),
		nextID:   1,
		settings: settings,
		logger:   logger,
	}
}

// GetOrCreate returns the id of a session for fileName. An unknown or unset
// requestedID gets a brand new session with default parameters. A known one
// has its demuxer stopped and replaced by a fresh, not yet started demuxer on
// the same file, keeping id and parameters, so the next StartIfNeeded
// replays with the current parameters.
func (r *Registry) GetOrCreate(fileName string, requestedID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[requestedID]; ok {
		r.replace(s, s.FileName())
		return s.id
	}

	s := &Session{
		id:   r.nextID,
		slot: video.NewFrameSlot(),
		params: video.Params{
			StartFrame:  r.settings.StartFrame,
			StopFrame:   r.settings.StopFrame,
			SpeedFactor: r.settings.SpeedFactor,
		},
	}
	s.install(r.newDemuxer(s, fileName))

	r.sessions[s.id] = s
	r.nextID++

	r.logger.LogInfo("session created", "session_id", s.id, "file", fileName)

	return s.id
}

// Lookup returns the session for id or an UnknownSession error.
func (r *Registry) Lookup(id int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(id)
}

// StartIfNeeded starts the session's current demuxer if it has not run yet.
func (r *Registry) StartIfNeeded(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	d := s.Demuxer()
	if d.State() == video.NotStarted && d.Start() {
		r.logger.LogInfo("session playback started", "session_id", id, "file", d.FileName())
	}

	return nil
}

// SetFile retargets a session: the running demuxer is stopped, a new one
// bound to fileName is installed NotStarted and the frame slot is cleared.
func (r *Registry) SetFile(id int, fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	r.replace(s, fileName)
	r.logger.LogInfo("session file changed", "session_id", id, "file", fileName)

	return nil
}

// SetPlaybackParams stops the session's demuxer and records the supplied
// fields. It does not restart playback: the demuxer built by the next
// GetOrCreate or SetFile reads the new values when it starts.
func (r *Registry) SetPlaybackParams(id int, u ParamsUpdate) error {
	if err := validate(u); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	stopAndWait(s.Demuxer())
	s.apply(u)

	p := s.Params()
	r.logger.LogInfo("session playback parameters changed", "session_id", id, "start_frame", p.StartFrame, "stop_frame", p.StopFrame, "speed_factor", p.SpeedFactor)

	return nil
}

// Stop halts a session's demuxer without replacing it.
func (r *Registry) Stop(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	stopAndWait(s.Demuxer())

	return nil
}

// Sessions returns every registered session ordered by id.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })

	return sessions
}

// Close stops every session's demuxer.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		stopAndWait(s.Demuxer())
	}
}

func (r *Registry) lookup(id int) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperror.UnknownSession.SetMessage(fmt.Sprintf("Unknown Session %d", id))
	}
	return s, nil
}

// replace must be called with r.mu held.
func (r *Registry) replace(s *Session, fileName string) {
	stopAndWait(s.Demuxer())
	s.install(r.newDemuxer(s, fileName))
	s.slot.Clear()
}

func (r *Registry) newDemuxer(s *Session, fileName string) *video.Demuxer {
	return video.NewDemuxer(fileName, s.slot, s.Params, video.Options{
		ChunkSize:     r.settings.ChunkSize,
		FrameInterval: r.settings.FrameInterval,
		Loop:          r.settings.Loop,
	}, r.logger)
}

func stopAndWait(d *video.Demuxer) {
	d.Stop()
	d.Wait()
}

func validate(u ParamsUpdate) error {
	switch {
	case u.StartFrame != nil && *u.StartFrame < 1:
		return apperror.InvalidRequest.SetMessage("start frame must be at least 1")
	case u.StopFrame != nil && *u.StopFrame < 1:
		return apperror.InvalidRequest.SetMessage("stop frame must be at least 1")
	case u.SpeedFactor != nil && *u.SpeedFactor <= 0:
		return apperror.InvalidRequest.SetMessage("speed factor must be positive")
	}
	return nil
}
