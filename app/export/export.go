package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mjpegplayback/app/video"
	"mjpegplayback/apperror"
	"mjpegplayback/logger"

	"github.com/icza/mjpeg"
)

// Exporter writes a frame range of an MJPEG source into an AVI clip.
type Exporter struct {
	folder    string
	fps       int32
	chunkSize int
	logger    *logger.Logger

	mu      sync.Mutex
	running map[string]bool
}

func NewExporter(folder string, fps int32, chunkSize int, logger *logger.Logger) (*Exporter, error) {
	logger.LogInfo("Checking if exports folder exists.....", "folder", folder)
	_, err := os.Stat(folder)

	if err != nil {
		logger.LogWarning(err, "exports folder doesn't exist, creating it .......")
		if err = os.MkdirAll(folder, 0755); err != nil {
			logger.LogError(err, "Failed to create exports folder", "folder", folder)
			return nil, err
		}
		logger.LogInfo("exports folder created successfully")
	}

	if fps <= 0 {
		fps = 30
	}

	return &Exporter{
		folder:    folder,
		fps:       fps,
		chunkSize: chunkSize,
		logger:    logger,
		running:   make(map[string]bool),
	}, nil
}

func (e *Exporter) Folder() string {
	return e.folder
}

// ClipName names the AVI produced for a session's range of source.
func ClipName(source string, sessionID int, p video.Params) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return fmt.Sprintf("%s_%d_%d-%d.avi", base, sessionID, p.StartFrame, p.StopFrame)
}

// IsExporting reports whether name is still being written.
func (e *Exporter) IsExporting(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running[name]
}

// Export copies frames [StartFrame, StopFrame] of source into the clip name
// and returns how many frames were written. The frame size is taken from the
// first exported JPEG.
func (e *Exporter) Export(source, name string, p video.Params) (int, error) {
	e.mu.Lock()
	if e.running[name] {
		e.mu.Unlock()
		return 0, apperror.ServiceUnavailable.SetMessage("Export already in progress")
	}
	e.running[name] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.running, name)
		e.mu.Unlock()
	}()

	file, err := os.Open(source)

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.LogError(err, "Export source does not exist", "file", source)
			return 0, apperror.SourceNotFound
		}
		e.logger.LogError(err, "Error opening export source", "file", source)
		return 0, apperror.ServerError
	}

	defer func() { _ = file.Close() }()

	path := filepath.Join(e.folder, name)
	splitter := video.NewSplitter(file, e.chunkSize)

	var (
		aw      mjpeg.AviWriter
		written int
	)

	fail := func(err error, msg string, public apperror.Apperror) (int, error) {
		e.logger.LogError(err, msg, "file", source, "clip", name)
		if aw != nil {
			_ = aw.Close()
			_ = os.Remove(path)
		}
		return 0, public
	}

	for n := 1; n <= p.StopFrame; n++ {
		frame, err := splitter.Next()

		if err == io.EOF {
			break
		}

		if err != nil {
			return fail(err, "Error reading export source", apperror.ServerError)
		}

		if n < p.StartFrame {
			continue
		}

		if aw == nil {
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
			if err != nil {
				return fail(err, "First exported frame is not a valid JPEG", apperror.InvalidRequest.SetMessage("Source frames are not valid JPEG images"))
			}

			aw, err = mjpeg.New(path, int32(cfg.Width), int32(cfg.Height), e.fps)
			if err != nil {
				return fail(err, "Error creating clip file", apperror.ServerError)
			}
		}

		if err = aw.AddFrame(frame); err != nil {
			return fail(err, "Error adding frame to clip", apperror.ServerError)
		}
		written++
	}

	if aw == nil {
		e.logger.LogWarning(errors.New("empty range"), "No frames to export", "file", source, "start_frame", p.StartFrame, "stop_frame", p.StopFrame)
		return 0, apperror.InvalidRequest.SetMessage("No frames in the selected range")
	}

	if err = aw.Close(); err != nil {
		_ = os.Remove(path)
		e.logger.LogError(err, "Error closing clip file", "clip", name)
		return 0, apperror.ServerError
	}

	e.logger.LogInfo("Clip exported", "file", source, "clip", name, "frames", written)

	return written, nil
}
