package models

type Status struct {
	Sessions  int     `json:"sessions"`
	Running   int     `json:"running"`
	Viewers   int     `json:"viewers"`
	Uploading bool    `json:"isUploading"`
	DiskUsage float32 `json:"diskUsage"`
}

type SessionInfo struct {
	ID              int     `json:"sessionId"`
	FileName        string  `json:"fileName"`
	StartFrame      int     `json:"startFrame"`
	StopFrame       int     `json:"stopFrame"`
	SpeedFactor     float64 `json:"speedFactor"`
	State           string  `json:"state"`
	Viewers         int     `json:"viewers"`
	FramesProcessed int64   `json:"framesProcessed"`
	FramesPublished int64   `json:"framesPublished"`
}

type FileDetails struct {
	Filename  string `json:"filename"`
	Uploading bool   `json:"isUploading"`
}

// IndexPage is what the playback page template renders.
type IndexPage struct {
	Session SessionInfo
	Sources []string
}
