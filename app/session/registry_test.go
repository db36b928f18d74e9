package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mjpegplayback/app/video"
	"mjpegplayback/apperror"
	"mjpegplayback/config"
	"mjpegplayback/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeClip(t *testing.T, dir, name string, n int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 1; i <= n; i++ {
		buf.Write([]byte{0xFF, 0xD8})
		fmt.Fprintf(&buf, "%s-%03d", name, i)
		buf.Write([]byte{0xFF, 0xD9})
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func testSettings(interval time.Duration) config.Playback {
	settings := config.DefaultPlayback()
	settings.FrameInterval = interval
	return settings
}

func newTestRegistry(interval time.Duration) *Registry {
	return NewRegistry(testSettings(interval), logger.NewWithWriter(io.Discard))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestGetOrCreateAllocatesIncreasingIDs(t *testing.T) {
	r := newTestRegistry(time.Millisecond)

	first := r.GetOrCreate("a.mjpeg", 0)
	second := r.GetOrCreate("b.mjpeg", 0)
	third := r.GetOrCreate("c.mjpeg", 42)

	assert.Equal(t, []int{1, 2, 3}, []int{first, second, third})

	s, err := r.Lookup(second)
	require.NoError(t, err)
	assert.Equal(t, "b.mjpeg", s.FileName())
	assert.Equal(t, video.Params{StartFrame: 1, StopFrame: 450, SpeedFactor: 1}, s.Params())
	assert.Equal(t, video.NotStarted, s.Demuxer().State())
}

func TestGetOrCreateReusesSessionAndReplacesDemuxer(t *testing.T) {
	dir := t.TempDir()
	path := makeClip(t, dir, "a.mjpeg", 3)
	r := newTestRegistry(time.Minute)

	id := r.GetOrCreate(path, 0)
	require.NoError(t, r.StartIfNeeded(id))

	s, _ := r.Lookup(id)
	old := s.Demuxer()
	require.Eventually(t, func() bool { _, published := old.Stats(); return published == 1 }, time.Second, time.Millisecond)
	require.NoError(t, r.SetPlaybackParams(id, ParamsUpdate{SpeedFactor: floatPtr(2)}))

	again := r.GetOrCreate("ignored.mjpeg", id)

	assert.Equal(t, id, again)
	assert.Equal(t, video.Finished, old.State())
	assert.NotSame(t, old, s.Demuxer())
	assert.Equal(t, path, s.FileName(), "reuse keeps the previous file")
	assert.Equal(t, video.NotStarted, s.Demuxer().State())
	assert.Equal(t, 2.0, s.Params().SpeedFactor)
	assert.Len(t, r.Sessions(), 1)
}

func TestStartIfNeededStartsOnce(t *testing.T) {
	path := makeClip(t, t.TempDir(), "a.mjpeg", 3)
	r := newTestRegistry(time.Minute)
	id := r.GetOrCreate(path, 0)
	s, _ := r.Lookup(id)
	d := s.Demuxer()

	require.NoError(t, r.StartIfNeeded(id))
	require.NoError(t, r.StartIfNeeded(id))

	assert.Equal(t, video.Running, d.State())
	assert.Same(t, d, s.Demuxer())

	require.NoError(t, r.Stop(id))
	assert.Equal(t, video.Finished, d.State())
	require.NoError(t, r.StartIfNeeded(id))
	assert.Equal(t, video.Finished, d.State(), "a finished demuxer is never restarted")
}

func TestUnknownSession(t *testing.T) {
	r := newTestRegistry(time.Millisecond)
	r.GetOrCreate("a.mjpeg", 0)

	_, err := r.Lookup(7)
	assert.True(t, errors.Is(err, apperror.UnknownSession))
	assert.True(t, errors.Is(r.StartIfNeeded(7), apperror.UnknownSession))
	assert.True(t, errors.Is(r.SetFile(7, "b.mjpeg"), apperror.UnknownSession))
	assert.True(t, errors.Is(r.SetPlaybackParams(7, ParamsUpdate{StartFrame: intPtr(2)}), apperror.UnknownSession))
	assert.True(t, errors.Is(r.Stop(7), apperror.UnknownSession))
}

func TestSetFileStopsAndClears(t *testing.T) {
	dir := t.TempDir()
	first := makeClip(t, dir, "a.mjpeg", 3)
	second := makeClip(t, dir, "b.mjpeg", 3)
	r := newTestRegistry(time.Minute)

	id := r.GetOrCreate(first, 0)
	require.NoError(t, r.StartIfNeeded(id))
	s, _ := r.Lookup(id)
	old := s.Demuxer()
	cursor := s.Slot().Cursor()
	require.Eventually(t, func() bool { return s.Slot().Cursor() > cursor }, time.Second, time.Millisecond)

	require.NoError(t, r.SetFile(id, second))

	assert.Equal(t, video.Finished, old.State())
	assert.Equal(t, second, s.FileName())
	assert.Equal(t, video.NotStarted, s.Demuxer().State())

	_, _, err := s.Slot().AwaitNext(context.Background(), cursor, time.Second)
	assert.ErrorIs(t, err, video.ErrEndOfStream, "viewers of the old file see its end")

	_, _, err = s.Slot().AwaitNext(context.Background(), s.Slot().Cursor(), 20*time.Millisecond)
	assert.ErrorIs(t, err, video.ErrWaitTimeout, "nothing of the old file reaches new viewers")

	cursor = s.Slot().Cursor()
	require.NoError(t, r.StartIfNeeded(id))
	frame, _, err := s.Slot().AwaitNext(context.Background(), cursor, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b.mjpeg-001", string(frame[2:len(frame)-2]))
}

func TestSetPlaybackParamsStopsWithoutRestarting(t *testing.T) {
	path := makeClip(t, t.TempDir(), "a.mjpeg", 5)
	r := newTestRegistry(time.Millisecond)
	id := r.GetOrCreate(path, 0)
	require.NoError(t, r.StartIfNeeded(id))
	s, _ := r.Lookup(id)
	d := s.Demuxer()

	require.NoError(t, r.SetPlaybackParams(id, ParamsUpdate{StartFrame: intPtr(2), StopFrame: intPtr(4)}))

	assert.Equal(t, video.Finished, d.State())
	assert.Same(t, d, s.Demuxer(), "no replacement until the file is selected again")
	assert.Equal(t, video.Params{StartFrame: 2, StopFrame: 4, SpeedFactor: 1}, s.Params())

	r.GetOrCreate(path, id)
	require.NoError(t, r.StartIfNeeded(id))
	s.Demuxer().Wait()
	processed, published := s.Demuxer().Stats()
	assert.Equal(t, int64(5), processed)
	assert.Equal(t, int64(3), published)
}

func TestSetPlaybackParamsRejectsInvalidValues(t *testing.T) {
	r := newTestRegistry(time.Millisecond)
	id := r.GetOrCreate("a.mjpeg", 0)

	for _, u := range []ParamsUpdate{
		{StartFrame: intPtr(0)},
		{StopFrame: intPtr(-1)},
		{SpeedFactor: floatPtr(0)},
	} {
		assert.True(t, errors.Is(r.SetPlaybackParams(id, u), apperror.InvalidRequest))
	}

	s, _ := r.Lookup(id)
	assert.Equal(t, video.Params{StartFrame: 1, StopFrame: 450, SpeedFactor: 1}, s.Params())
}

func TestConcurrentCreationYieldsUniqueIDs(t *testing.T) {
	r := newTestRegistry(time.Millisecond)
	const workers = 50

	ids := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.GetOrCreate("a.mjpeg", 0)
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
	assert.Len(t, r.Sessions(), workers)
}

func TestCloseStopsEverySession(t *testing.T) {
	path := makeClip(t, t.TempDir(), "a.mjpeg", 5)
	r := newTestRegistry(time.Minute)

	for i := 0; i < 3; i++ {
		id := r.GetOrCreate(path, 0)
		require.NoError(t, r.StartIfNeeded(id))
	}

	r.Close()

	for _, s := range r.Sessions() {
		assert.Equal(t, video.Finished, s.Demuxer().State())
		assert.Equal(t, "finished", s.Info().State)
	}
}
