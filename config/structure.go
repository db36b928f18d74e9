package config

import "time"

type Config struct {
	Environment   string
	LogFolder     string
	VideosFolder  string
	ExportsFolder string
	Port          string
	S3Config      S3
	Playback      Playback
	ExportFPS     int32
}

type S3 struct {
	AccessKey   string
	SecretKey   string
	Region      string
	Bucket      string
	EndpointUrl string
}

// Enabled reports whether enough S3 settings are present to attempt uploads.
func (s S3) Enabled() bool {
	return s.Bucket != "" && s.Region != ""
}

// What a viewer disconnect does to the session's demultiplexer.
const (
	// DisconnectAlways stops playback for every viewer of the session.
	DisconnectAlways = "always"
	// DisconnectLastViewer stops playback once no viewer is left.
	DisconnectLastViewer = "last-viewer"
	DisconnectNever      = "never"
)

// Playback holds the tunables of the streaming engine.
type Playback struct {
	ChunkSize        int
	FrameInterval    time.Duration
	WaitTimeout      time.Duration
	DisconnectPolicy string
	Loop             bool
	StartFrame       int
	StopFrame        int
	SpeedFactor      float64
}

func DefaultPlayback() Playback {
	return Playback{
		ChunkSize:        10000,
		FrameInterval:    3960 * time.Microsecond,
		WaitTimeout:      3 * time.Second,
		DisconnectPolicy: DisconnectLastViewer,
		StartFrame:       1,
		StopFrame:        450,
		SpeedFactor:      1.0,
	}
}
