package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"mjpegplayback/app"
	"mjpegplayback/app/session"
	"mjpegplayback/apperror"
	"mjpegplayback/logger"
	"mjpegplayback/web/helper"
	"mjpegplayback/web/static"

	"github.com/gorilla/mux"
)

const (
	boundary = "FRAME"
	// defaultStreamSession is used when a stream path carries no usable id.
	defaultStreamSession = 1
)

var sessionIDPattern = regexp.MustCompile(`sessionID=(\d+)`)

type Controller struct {
	logger *logger.Logger
	app    *app.App
}

func NewController(app *app.App, logger *logger.Logger) *Controller {
	return &Controller{
		app:    app,
		logger: logger,
	}
}

// sessionIDFrom extracts the sessionID=N suffix of a request path.
func sessionIDFrom(path string) (int, bool) {
	m := sessionIDPattern.FindStringSubmatch(path)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func indexLocation(id int) string {
	if id <= 0 {
		return "/index.html"
	}
	return fmt.Sprintf("/index.html/sessionID=%d", id)
}

func (c *Controller) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/index.html", http.StatusMovedPermanently)
}

func (c *Controller) IndexPage(w http.ResponseWriter, r *http.Request) {
	id, _ := sessionIDFrom(r.URL.Path)

	page, err := c.app.Index(id)

	if err != nil {
		c.logger.LogError(err, "Error preparing index page", "session_id", id)
		helper.ReturnFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if err = static.Index.Execute(w, page); err != nil {
		c.logger.LogError(err, "Error rendering index page", "session_id", page.Session.ID)
	}
}

func (c *Controller) Stylesheet(w http.ResponseWriter, _ *http.Request) {
	css, err := static.Stylesheet()

	if err != nil {
		c.logger.LogError(err, "Error reading stylesheet")
		helper.ReturnFailure(w, apperror.NotFound)
		return
	}

	w.Header().Set("Content-Type", "text/css")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(css)
}

// SelectFile switches the requesting session to another source and sends the
// browser back to the playback page.
func (c *Controller) SelectFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	requested, _ := sessionIDFrom(r.URL.Path)

	id, err := c.app.SelectFile(file, requested)

	if err != nil {
		c.logger.LogError(err, "Error selecting video file", "file", file, "session_id", requested)
		id = requested
	}

	helper.Redirect(w, indexLocation(id))
}

// UpdatePlayback applies the first playback field present in the form. The
// answer is a redirect whatever happened.
func (c *Controller) UpdatePlayback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.logger.LogError(err, "Error parsing playback form")
		helper.Redirect(w, indexLocation(0))
		return
	}

	id, err := strconv.Atoi(r.PostForm.Get("sessionid"))

	if err != nil {
		c.logger.LogError(err, "Playback form without a valid session id", "sessionid", r.PostForm.Get("sessionid"))
		helper.Redirect(w, indexLocation(0))
		return
	}

	update, err := parsePlaybackForm(r)

	if err != nil {
		c.logger.LogError(err, "Invalid playback form value", "session_id", id)
	} else if err = c.app.UpdatePlayback(id, update); err != nil {
		c.logger.LogError(err, "Error updating playback", "session_id", id)
	}

	helper.Redirect(w, indexLocation(id))
}

func parsePlaybackForm(r *http.Request) (session.ParamsUpdate, error) {
	var u session.ParamsUpdate

	switch {
	case r.PostForm.Get("LoopStartFrame") != "":
		v, err := strconv.Atoi(r.PostForm.Get("LoopStartFrame"))
		if err != nil {
			return u, apperror.InvalidRequest.Wrap(err)
		}
		u.StartFrame = &v
	case r.PostForm.Get("LoopStopFrame") != "":
		v, err := strconv.Atoi(r.PostForm.Get("LoopStopFrame"))
		if err != nil {
			return u, apperror.InvalidRequest.Wrap(err)
		}
		u.StopFrame = &v
	case r.PostForm.Get("SpeedFactor") != "":
		v, err := strconv.ParseFloat(r.PostForm.Get("SpeedFactor"), 64)
		if err != nil {
			return u, apperror.InvalidRequest.Wrap(err)
		}
		u.SpeedFactor = &v
	default:
		return u, apperror.InvalidRequest.SetMessage("no playback field supplied")
	}

	return u, nil
}

// ShowStream serves the session's frames as multipart/x-mixed-replace until
// the end-of-stream sentinel, a wait timeout or the client goes away.
func (c *Controller) ShowStream(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFrom(r.URL.Path)

	if !ok {
		c.logger.LogError(errors.New("missing session id"), "Stream requested without a session id", "path", r.URL.Path, "session_id", defaultStreamSession)
		id = defaultStreamSession
	}

	viewer, err := c.app.StartStream(id)

	if err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	disconnected := false
	defer func() { c.app.StopStream(viewer, disconnected) }()

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Age", "0")
	w.Header().Set("Cache-Control", "no-cache, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", boundary))
	w.WriteHeader(http.StatusOK)

	if flusher != nil {
		flusher.Flush()
	}

	for {
		frame, err := viewer.Next(r.Context())

		if err != nil {
			if r.Context().Err() != nil {
				disconnected = true
			}
			c.logger.LogInfo("stream ended", "session_id", id, "viewer_id", viewer.ID, "reason", err.Error())
			return
		}

		if err = writePart(w, frame); err != nil {
			c.logger.LogWarning(err, "Error writing frame, client went away", "session_id", id, "viewer_id", viewer.ID)
			disconnected = true
			return
		}

		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writePart(w io.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func (c *Controller) DeviceStatus(w http.ResponseWriter, _ *http.Request) {
	c.logger.LogInfo("fetching device status")
	helper.ReturnSuccess(w, c.app.AppStatus())
}

func (c *Controller) ListSessions(w http.ResponseWriter, _ *http.Request) {
	c.logger.LogInfo("list sessions request received")
	helper.ReturnSuccess(w, c.app.Sessions())
}

func (c *Controller) ExportSession(w http.ResponseWriter, r *http.Request) {
	c.logger.LogInfo("export request received")

	p := struct {
		SessionID int `json:"sessionId"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		c.logger.LogError(err, "Error getting session id for export from request")
		helper.ReturnFailure(w, apperror.InvalidRequest)
		return
	}

	name, err := c.app.Export(p.SessionID)

	if err != nil {
		c.logger.LogError(err, "Error exporting session", "session_id", p.SessionID)
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, map[string]string{"fileName": name})
}

func (c *Controller) UploadFile(w http.ResponseWriter, r *http.Request) {
	c.logger.LogInfo("upload file request received")

	file := struct {
		FileName string `json:"fileName"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&file); err != nil {
		helper.ReturnFailure(w, apperror.InvalidRequest)
		return
	}

	if err := c.app.UploadExport(file.FileName); err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, nil)
}

func (c *Controller) ListFiles(w http.ResponseWriter, _ *http.Request) {
	c.logger.LogInfo("list files request received")

	files, err := c.app.FetchExports()

	if err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, files)
}
