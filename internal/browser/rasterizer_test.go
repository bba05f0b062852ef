package browser

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardrender/internal/pkg/errors"
)

type fakeSession struct {
	capture func(ctx context.Context) ([]byte, error)
	closed  atomic.Int32
}

func (s *fakeSession) Capture(ctx context.Context, html string, w, h int) ([]byte, error) {
	return s.capture(ctx)
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return nil
}

type fakeLauncher struct {
	sess      *fakeSession
	err       error
	launches  atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (l *fakeLauncher) Launch(ctx context.Context) (Session, error) {
	l.launches.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	n := l.active.Add(1)
	for {
		m := l.maxActive.Load()
		if n <= m || l.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return &trackingSession{fakeSession: l.sess, l: l}, nil
}

type trackingSession struct {
	*fakeSession
	l *fakeLauncher
}

func (s *trackingSession) Close() error {
	s.l.active.Add(-1)
	return s.fakeSession.Close()
}

func TestRasterizeSuccess(t *testing.T) {
	sess := &fakeSession{capture: func(ctx context.Context) ([]byte, error) {
		return []byte("\x89PNG"), nil
	}}
	r := New(&fakeLauncher{sess: sess}, Options{Timeout: time.Second}, nil)

	png, err := r.Rasterize(context.Background(), "<p>hi</p>", 1080, 1350)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png)
	assert.EqualValues(t, 1, sess.closed.Load())
}

func TestRasterizeClosesSessionOnCaptureError(t *testing.T) {
	sess := &fakeSession{capture: func(ctx context.Context) ([]byte, error) {
		return nil, stderrors.New("cdp: target crashed")
	}}
	r := New(&fakeLauncher{sess: sess}, Options{Timeout: time.Second}, nil)

	_, err := r.Rasterize(context.Background(), "<p>hi</p>", 100, 100)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRasterize), "got %v", err)
	assert.EqualValues(t, 1, sess.closed.Load(), "session must be closed before the error propagates")
}

func TestRasterizeTimeout(t *testing.T) {
	sess := &fakeSession{capture: func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := New(&fakeLauncher{sess: sess}, Options{Timeout: 50 * time.Millisecond}, nil)

	_, err := r.Rasterize(context.Background(), "<p>slow</p>", 100, 100)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRenderTimeout), "got %v", err)
	assert.EqualValues(t, 1, sess.closed.Load())
}

func TestRasterizeLaunchError(t *testing.T) {
	l := &fakeLauncher{err: stderrors.New("exec: \"google-chrome\": executable file not found")}
	r := New(l, Options{Timeout: time.Second}, nil)

	_, err := r.Rasterize(context.Background(), "<p>hi</p>", 100, 100)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeBrowserLaunch), "got %v", err)
	assert.Equal(t, 500, errors.GetHTTPStatus(err))
}

func TestRasterizeRejectsBadViewport(t *testing.T) {
	l := &fakeLauncher{}
	r := New(l, Options{}, nil)

	_, err := r.Rasterize(context.Background(), "", 0, 100)
	assert.True(t, errors.IsCode(err, errors.CodeBadRequest))
	assert.Zero(t, l.launches.Load())
}

func TestRasterizeBoundsConcurrency(t *testing.T) {
	sess := &fakeSession{capture: func(ctx context.Context) ([]byte, error) {
		time.Sleep(20 * time.Millisecond)
		return []byte("png"), nil
	}}
	l := &fakeLauncher{sess: sess}
	r := New(l, Options{Timeout: 5 * time.Second, MaxConcurrency: 2}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Rasterize(context.Background(), "<p/>", 10, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, l.maxActive.Load(), int32(2))
	assert.EqualValues(t, 8, sess.closed.Load())
}

func TestChromeCapture(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	var execPath string
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			execPath = p
			break
		}
	}
	if execPath == "" {
		t.Skip("no chrome binary on PATH")
	}

	launcher := NewIsolated(ChromeOptions{ExecPath: execPath, NoSandbox: true, DeviceScaleFactor: 1})
	r := New(launcher, Options{Timeout: 30 * time.Second}, nil)

	png, err := r.Rasterize(context.Background(), `<html><body style="margin:0;background:#0a0">ok</body></html>`, 200, 100)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestIsolatedLaunchHonorsContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script as the browser binary")
	}
	// A browser that never prints its DevTools URL.
	stuck := filepath.Join(t.TempDir(), "stuck-chrome")
	require.NoError(t, os.WriteFile(stuck, []byte("#!/bin/sh\nexec sleep 60\n"), 0o755))

	launcher := NewIsolated(ChromeOptions{ExecPath: stuck})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	begin := time.Now()
	sess, err := launcher.Launch(ctx)
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), 5*time.Second)

	r := New(launcher, Options{Timeout: 200 * time.Millisecond}, nil)
	_, err = r.Rasterize(context.Background(), "<p>x</p>", 10, 10)
	assert.True(t, errors.IsCode(err, errors.CodeRenderTimeout), "got %v", err)
}
