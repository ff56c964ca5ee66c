package camera

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

var testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0xFF, 0xD9}

func TestCompleteJPEG(t *testing.T) {
	assert.True(t, CompleteJPEG(testJPEG))
	assert.True(t, CompleteJPEG(append(append([]byte{}, testJPEG...), 0, 0)), "trailing padding")
	assert.False(t, CompleteJPEG(testJPEG[:len(testJPEG)-2]), "truncated")
	assert.False(t, CompleteJPEG([]byte("not an image")))
	assert.False(t, CompleteJPEG(nil))
}

func TestBuffer_LatestAndNext(t *testing.T) {
	b := NewBuffer()
	_, seq := b.Latest()
	assert.Zero(t, seq)

	got := make(chan Frame, 1)
	go func() {
		f, _, err := b.Next(t.Context(), 0)
		if err == nil {
			got <- f
		}
	}()

	b.Set(Frame{Data: testJPEG, Source: "a"})
	select {
	case f := <-got:
		assert.Equal(t, "a", f.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("reader was not woken")
	}

	b.Set(Frame{Source: "b"})
	f, seq := b.Latest()
	assert.Equal(t, "b", f.Source)
	assert.EqualValues(t, 2, seq)

	f, next, err := b.Next(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, "b", f.Source, "newer frame returns without blocking")
	assert.EqualValues(t, 2, next)
}

func TestBuffer_NextHonoursContext(t *testing.T) {
	b := NewBuffer()
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, _, err := b.Next(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPSource_Capture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "snapshot" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(testJPEG)
	}))
	defer srv.Close()

	f, err := NewHTTPSource(srv.URL+"/?action=snapshot", time.Second).Capture(t.Context())
	require.NoError(t, err)
	assert.Equal(t, testJPEG, f.Data)
	assert.Equal(t, "image/jpeg", f.ContentType)

	_, err = NewHTTPSource(srv.URL+"/missing", time.Second).Capture(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCamera))
}

func TestHTTPSource_RejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, time.Second).Capture(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCamera))
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jpg")
	require.NoError(t, os.WriteFile(old, testJPEG, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)
	require.NoError(t, src.Start(t.Context()))
	defer func() { _ = src.Stop() }()

	f, err := src.Capture(t.Context())
	require.NoError(t, err)
	assert.Equal(t, old, f.Source)

	fresh := filepath.Join(dir, "frame-0002.jpg")
	require.NoError(t, os.WriteFile(fresh, testJPEG, 0o600))
	require.Eventually(t, func() bool {
		f, err := src.Capture(t.Context())
		return err == nil && f.Source == fresh
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDirectorySource_IncompleteFrame(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.jpg"), testJPEG[:6], 0o600))

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)
	require.NoError(t, src.Start(t.Context()))
	defer func() { _ = src.Stop() }()

	_, err = src.Capture(t.Context())
	require.Error(t, err)
	assert.True(t, errors.CanRetry(err))
}

func TestDirectorySource_EmptyDirectory(t *testing.T) {
	src, err := NewDirectorySource(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, src.Start(t.Context()))
	defer func() { _ = src.Stop() }()

	_, err = src.Capture(t.Context())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestOpen(t *testing.T) {
	src, stop, err := Open(t.Context(), config.CameraConfig{Source: config.CameraNone})
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.NoError(t, stop())

	src, stop, err = Open(t.Context(), config.CameraConfig{Source: config.CameraHTTP, URL: "http://cam/snap", Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)
	assert.NoError(t, stop())
}
