package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t, "PORT", "VIDEOS_FOLDER", "READ_CHUNK_SIZE", "FRAME_INTERVAL", "FRAME_WAIT_TIMEOUT",
		"DISCONNECT_POLICY", "LOOP_PLAYBACK", "DEFAULT_START_FRAME", "DEFAULT_STOP_FRAME",
		"DEFAULT_SPEED_FACTOR", "EXPORT_FPS", "S3_BUCKET_NAME", "S3_REGION")

	c := FromEnv()

	assert.Equal(t, "8000", c.Port)
	assert.Equal(t, ".", c.VideosFolder)
	assert.Equal(t, DefaultPlayback(), c.Playback)
	assert.Equal(t, int32(30), c.ExportFPS)
	assert.False(t, c.S3Config.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("READ_CHUNK_SIZE", "512")
	t.Setenv("FRAME_WAIT_TIMEOUT", "10s")
	t.Setenv("DISCONNECT_POLICY", "always")
	t.Setenv("LOOP_PLAYBACK", "true")
	t.Setenv("DEFAULT_SPEED_FACTOR", "2.5")
	t.Setenv("DEFAULT_STOP_FRAME", "-3")

	c := FromEnv()

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 512, c.Playback.ChunkSize)
	assert.Equal(t, 10*time.Second, c.Playback.WaitTimeout)
	assert.Equal(t, DisconnectAlways, c.Playback.DisconnectPolicy)
	assert.True(t, c.Playback.Loop)
	assert.Equal(t, 2.5, c.Playback.SpeedFactor)
	assert.Equal(t, 450, c.Playback.StopFrame, "non-positive values fall back to the default")
}

func TestUnknownDisconnectPolicyFallsBack(t *testing.T) {
	t.Setenv("DISCONNECT_POLICY", "sometimes")

	assert.Equal(t, DisconnectLastViewer, FromEnv().Playback.DisconnectPolicy)
}

func TestLoadReadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "playback.env")
	assert.NoError(t, os.WriteFile(envFile, []byte("VIDEOS_FOLDER=/srv/clips\nS3_BUCKET_NAME=clips\nS3_REGION=eu-west-1\n"), 0644))

	// godotenv never overrides variables that are already set
	clearEnv(t, "VIDEOS_FOLDER", "S3_BUCKET_NAME", "S3_REGION")

	Load(envFile)

	assert.Equal(t, "/srv/clips", GetConfig().VideosFolder)
	assert.True(t, GetConfig().S3Config.Enabled())
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
