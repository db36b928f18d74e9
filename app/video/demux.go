package video

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"mjpegplayback/apperror"
	"mjpegplayback/logger"

	"github.com/pkg/errors"
)

// DefaultFrameInterval is the pause after each published frame at speed 1.0.
const DefaultFrameInterval = 3960 * time.Microsecond

type State int32

const (
	NotStarted State = iota
	Running
	Stopping
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Params are the playback settings a demultiplexer reads once, when it starts.
// Frame bounds are 1-based and inclusive.
type Params struct {
	StartFrame  int
	StopFrame   int
	SpeedFactor float64
}

type Options struct {
	ChunkSize     int
	FrameInterval time.Duration
	// Loop replays the range from the top of the file until stopped.
	Loop bool
}

// Publisher receives every frame a Demuxer emits; nil marks the end of stream.
// FrameSlot is the production implementation.
type Publisher interface {
	Publish(frame []byte)
}

// Demuxer reads an MJPEG file, splits it into frames and publishes the frames
// within the configured range to a FrameSlot, paced by the speed factor.
type Demuxer struct {
	fileName string
	sink     Publisher
	params   func() Params
	opts     Options
	logger   *logger.Logger

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
	err   error

	processed atomic.Int64
	published atomic.Int64
}

func NewDemuxer(fileName string, sink Publisher, params func() Params, opts Options, logger *logger.Logger) *Demuxer {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}

	return &Demuxer{
		fileName: fileName,
		sink:     sink,
		params:   params,
		opts:     opts,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *Demuxer) FileName() string {
	return d.fileName
}

func (d *Demuxer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err reports why the demuxer finished, nil for a normal end or a stop request.
func (d *Demuxer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stats returns how many frames were scanned and published by the last pass.
func (d *Demuxer) Stats() (processed, published int64) {
	return d.processed.Load(), d.published.Load()
}

// Start launches the scan goroutine. Only the first call on a NotStarted
// demuxer has any effect; it reports whether this call started it.
func (d *Demuxer) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != NotStarted {
		return false
	}

	d.state = Running
	go d.run()

	return true
}

// Stop requests termination. A running demuxer moves to Stopping and
// finishes at its next check; one that never started is finished at once
// without publishing anything.
func (d *Demuxer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case NotStarted:
		// Skips Running and Stopping: no goroutine exists to pass through them.
		d.state = Finished
		close(d.done)
	case Running:
		d.state = Stopping
		close(d.stop)
	}
}

// Wait blocks until the demuxer is Finished.
func (d *Demuxer) Wait() {
	<-d.done
}

func (d *Demuxer) Done() <-chan struct{} {
	return d.done
}

func (d *Demuxer) run() {
	var err error

	defer func() {
		d.sink.Publish(nil)

		d.mu.Lock()
		d.err = err
		d.state = Finished
		close(d.done)
		d.mu.Unlock()
	}()

	p := d.params()
	if p.SpeedFactor <= 0 {
		p.SpeedFactor = 1
	}

	d.logger.LogInfo("demultiplexer started", "file", d.fileName, "start_frame", p.StartFrame, "stop_frame", p.StopFrame, "speed_factor", p.SpeedFactor)

	for {
		var published int64
		published, err = d.play(p)

		if err != nil {
			if errors.Is(err, apperror.SourceNotFound) {
				d.logger.LogWarning(err, "video source was not found", "file", d.fileName)
			} else {
				d.logger.LogError(err, "demultiplexer failed", "file", d.fileName)
			}
			return
		}

		if !d.opts.Loop || published == 0 || d.stopRequested() {
			break
		}
	}

	processed, published := d.Stats()
	d.logger.LogInfo("demultiplexer finished", "file", d.fileName, "frames_processed", processed, "frames_published", published)
}

// play makes one pass over the file and returns how many frames it published.
func (d *Demuxer) play(p Params) (int64, error) {
	file, err := os.Open(d.fileName)

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, apperror.SourceNotFound.Wrap(err)
		}
		return 0, errors.Wrap(err, "opening mjpeg source")
	}

	defer func() { _ = file.Close() }()

	d.processed.Store(0)
	d.published.Store(0)

	splitter := NewSplitter(file, d.opts.ChunkSize)
	interval := time.Duration(float64(d.opts.FrameInterval) / p.SpeedFactor)

	for framesProcessed := 1; ; framesProcessed++ {
		if d.stopRequested() {
			return d.published.Load(), nil
		}

		frame, err := splitter.Next()

		if err == io.EOF {
			return d.published.Load(), nil
		}

		if err != nil {
			return d.published.Load(), err
		}

		d.processed.Store(int64(framesProcessed))

		if framesProcessed > p.StopFrame {
			return d.published.Load(), nil
		}

		if framesProcessed < p.StartFrame {
			continue
		}

		d.sink.Publish(frame)
		d.published.Add(1)

		if !d.pause(interval) {
			return d.published.Load(), nil
		}
	}
}

// pause sleeps for interval and reports false if a stop arrived meanwhile.
func (d *Demuxer) pause(interval time.Duration) bool {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.stop:
		return false
	}
}

func (d *Demuxer) stopRequested() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}
