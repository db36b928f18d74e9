package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var Conf Config

func Load(envFile string) {
	var err error

	if envFile == "" {
		envFile = ".env"
	}

	_, err = os.Stat(envFile)

	if err != nil {
		log.Printf("%s file does not exist\nReading from the environment directly", envFile)
	} else {
		err = godotenv.Load(envFile)

		if err != nil {
			log.Fatal(err)
		}
	}

	Conf = FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() Config {
	defaults := DefaultPlayback()

	return Config{
		Environment:   os.Getenv("ENVIRONMENT"),
		LogFolder:     stringOr("LOG_FOLDER", "logs"),
		VideosFolder:  stringOr("VIDEOS_FOLDER", "."),
		ExportsFolder: stringOr("EXPORTS_FOLDER", "exports"),
		S3Config: S3{
			Bucket:      os.Getenv("S3_BUCKET_NAME"),
			AccessKey:   os.Getenv("S3_ACCESS_KEY"),
			SecretKey:   os.Getenv("S3_SECRET_KEY"),
			Region:      os.Getenv("S3_REGION"),
			EndpointUrl: os.Getenv("S3_ENDPOINT_URL"),
		},
		Port: stringOr("PORT", "8000"),
		Playback: Playback{
			ChunkSize:        intOr("READ_CHUNK_SIZE", defaults.ChunkSize),
			FrameInterval:    durationOr("FRAME_INTERVAL", defaults.FrameInterval),
			WaitTimeout:      durationOr("FRAME_WAIT_TIMEOUT", defaults.WaitTimeout),
			DisconnectPolicy: policyOr("DISCONNECT_POLICY", defaults.DisconnectPolicy),
			Loop:             boolOr("LOOP_PLAYBACK", defaults.Loop),
			StartFrame:       intOr("DEFAULT_START_FRAME", defaults.StartFrame),
			StopFrame:        intOr("DEFAULT_STOP_FRAME", defaults.StopFrame),
			SpeedFactor:      floatOr("DEFAULT_SPEED_FACTOR", defaults.SpeedFactor),
		},
		ExportFPS: int32(intOr("EXPORT_FPS", 30)),
	}
}

func GetConfig() Config {
	return Conf
}

func stringOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func floatOr(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func boolOr(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func policyOr(key, fallback string) string {
	switch v := os.Getenv(key); v {
	case DisconnectAlways, DisconnectLastViewer, DisconnectNever:
		return v
	}
	return fallback
}
