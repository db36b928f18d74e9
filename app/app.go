package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"mjpegplayback/app/export"
	"mjpegplayback/app/helper"
	"mjpegplayback/app/session"
	"mjpegplayback/app/upload"
	"mjpegplayback/app/video"
	"mjpegplayback/apperror"
	"mjpegplayback/config"
	"mjpegplayback/logger"
	"mjpegplayback/models"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const sourceExt = ".mjpeg"

type App struct {
	conf     config.Config
	registry *session.Registry
	exporter *export.Exporter
	uploader *upload.Uploader
	logger   *logger.Logger
}

func NewApp(conf config.Config, logger *logger.Logger) (*App, error) {
	logger.LogInfo("Initializing session registry", "videos_folder", conf.VideosFolder)
	registry := session.NewRegistry(conf.Playback, logger)

	logger.LogInfo("Initializing exporter")
	exporter, err := export.NewExporter(conf.ExportsFolder, conf.ExportFPS, conf.Playback.ChunkSize, logger)

	if err != nil {
		logger.LogError(err, "Error initializing exporter")
		return nil, err
	}

	a := &App{
		conf:     conf,
		registry: registry,
		exporter: exporter,
		logger:   logger,
	}

	if !conf.S3Config.Enabled() {
		logger.LogInfo("S3 is not configured, uploads are disabled")
		return a, nil
	}

	logger.LogInfo("Initializing uploader")
	a.uploader, err = upload.NewUploader(conf.S3Config, conf.ExportsFolder, conf.LogFolder, logger)

	if err != nil {
		logger.LogError(err, "Error initializing uploader")
	}

	return a, nil
}

// Sources lists the MJPEG files available for playback.
func (a *App) Sources() ([]string, error) {
	files, err := helper.FetchFiles(a.conf.VideosFolder, sourceExt)

	if err != nil {
		a.logger.LogError(err, "Error reading videos folder", "folder_name", a.conf.VideosFolder)
		return nil, err
	}

	return files, nil
}

// Index resolves the session the playback page shows and makes sure it is
// playing. A new session starts on the first available source.
func (a *App) Index(requestedID int) (models.IndexPage, error) {
	sources, err := a.Sources()

	if err != nil {
		return models.IndexPage{}, err
	}

	page := models.IndexPage{Sources: sources}

	if len(sources) == 0 {
		return page, nil
	}

	id := a.registry.GetOrCreate(a.sourcePath(sources[0]), requestedID)

	if err = a.registry.StartIfNeeded(id); err != nil {
		return page, err
	}

	s, err := a.registry.Lookup(id)

	if err != nil {
		return page, err
	}

	page.Session = s.Info()

	return page, nil
}

// SelectFile points requestedID at the named source, or creates a session
// for it when requestedID is unknown, and returns the session id.
func (a *App) SelectFile(name string, requestedID int) (int, error) {
	name = filepath.Base(name)

	if !strings.EqualFold(filepath.Ext(name), sourceExt) {
		return 0, apperror.InvalidRequest.SetMessage(fmt.Sprintf("%s is not an MJPEG file", name))
	}

	path := a.sourcePath(name)

	if _, err := a.registry.Lookup(requestedID); err != nil {
		return a.registry.GetOrCreate(path, 0), nil
	}

	if err := a.registry.SetFile(requestedID, path); err != nil {
		return 0, err
	}

	return requestedID, nil
}

func (a *App) UpdatePlayback(id int, u session.ParamsUpdate) error {
	return a.registry.SetPlaybackParams(id, u)
}

// StartStream attaches a new viewer to the session's frame slot.
func (a *App) StartStream(id int) (*Viewer, error) {
	s, err := a.registry.Lookup(id)

	if err != nil {
		a.logger.LogError(err, "Error starting stream", "session_id", id)
		return nil, err
	}

	v := newViewer(uuid.NewString(), s, a.conf.Playback.WaitTimeout)
	a.logger.LogInfo("viewer attached", "session_id", id, "viewer_id", v.ID)

	return v, nil
}

// StopStream detaches v. When the viewer went away mid-stream the disconnect
// policy decides whether the session's playback stops too.
func (a *App) StopStream(v *Viewer, disconnected bool) {
	remaining := v.slot.Detach()
	a.logger.LogInfo("viewer detached", "session_id", v.SessionID, "viewer_id", v.ID, "disconnected", disconnected, "remaining", remaining)

	if !disconnected {
		return
	}

	switch a.conf.Playback.DisconnectPolicy {
	case config.DisconnectNever:
		return
	case config.DisconnectLastViewer:
		if remaining > 0 {
			return
		}
	}

	// Only the playback this viewer watched; the session may have moved on.
	v.demux.Stop()
	v.demux.Wait()
	a.logger.LogInfo("playback stopped after disconnect", "session_id", v.SessionID, "file", v.demux.FileName())
}

func (a *App) Sessions() []models.SessionInfo {
	sessions := a.registry.Sessions()
	infos := make([]models.SessionInfo, 0, len(sessions))

	for _, s := range sessions {
		infos = append(infos, s.Info())
	}

	return infos
}

// Export writes the session's current frame range to an AVI clip and returns
// the clip's file name.
func (a *App) Export(id int) (string, error) {
	s, err := a.registry.Lookup(id)

	if err != nil {
		return "", err
	}

	source, params := s.FileName(), s.Params()
	name := export.ClipName(source, id, params)

	written, err := a.exporter.Export(source, name, params)

	if err != nil {
		return "", err
	}

	a.logger.LogInfo("session exported", "session_id", id, "file_name", name, "frames", written)

	return name, nil
}

// FetchExports lists finished clips in the exports folder.
func (a *App) FetchExports() ([]models.FileDetails, error) {
	a.logger.LogInfo("Fetching available exports", "folder_name", a.exporter.Folder())

	files, err := helper.FetchFiles(a.exporter.Folder(), ".avi")

	if err != nil {
		a.logger.LogError(err, "Error reading exports folder", "folder_name", a.exporter.Folder())
		return nil, err
	}

	fileDetails := []models.FileDetails{}

	for _, file := range files {
		if a.exporter.IsExporting(file) {
			continue
		}

		fileDetail := models.FileDetails{
			Filename: file,
		}

		if a.uploader != nil {
			if uploading, filename := a.uploader.UploadStats(); uploading && file == filename {
				fileDetail.Uploading = true
			}
		}

		fileDetails = append(fileDetails, fileDetail)
	}

	return fileDetails, nil
}

func (a *App) UploadExport(filename string) error {
	if a.uploader == nil {
		return apperror.ServiceUnavailable.SetMessage("S3 uploads are not configured")
	}
	return a.uploader.UploadExport(filename)
}

// UploadLogs ships rotated logs, everything but currentLog, when S3 is set up.
func (a *App) UploadLogs(currentLog string) {
	if a.uploader == nil {
		return
	}
	a.uploader.UploadLogs(currentLog)
}

func (a *App) AppStatus() *models.Status {
	var stat unix.Statfs_t

	sessions := a.registry.Sessions()
	status := &models.Status{Sessions: len(sessions)}

	for _, s := range sessions {
		if s.Demuxer().State() == video.Running {
			status.Running++
		}
		status.Viewers += s.Slot().Viewers()
	}

	if a.uploader != nil {
		status.Uploading, _ = a.uploader.UploadStats()
	}

	if err := unix.Statfs(a.conf.VideosFolder, &stat); err != nil {
		a.logger.LogError(err, "Error getting disk usage", "folder_name", a.conf.VideosFolder)
		return status
	}

	availableBlocks := float32(stat.Bavail) * float32(stat.Bsize)
	totalBlocks := float32(stat.Blocks) * float32(stat.Bsize)

	if totalBlocks > 0 {
		usage := (100 - ((availableBlocks / totalBlocks) * 100)) / 100
		status.DiskUsage = float32(helper.Truncate(float64(usage), 0.01))
	}

	return status
}

// Close stops playback of every session.
func (a *App) Close() {
	a.logger.LogInfo("Stopping all sessions")
	a.registry.Close()
}

func (a *App) sourcePath(name string) string {
	return filepath.Join(a.conf.VideosFolder, name)
}
