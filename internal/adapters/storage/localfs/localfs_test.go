package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardrender/internal/ports"
)

func TestPutGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	fs := New(root)
	ctx := context.Background()

	out, err := fs.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   "reports/personal-Anh_A-1.png",
		ContentType: "image/png",
		Reader:      bytes.NewReader([]byte("\x89PNG data")),
	})
	require.NoError(t, err)
	assert.Equal(t, "reports/personal-Anh_A-1.png", out.ObjectKey)
	assert.EqualValues(t, 9, out.Size)

	rc, ct, size, err := fs.GetObject(ctx, "reports/personal-Anh_A-1.png")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)

	assert.Equal(t, "image/png", ct)
	assert.EqualValues(t, 9, size)
	assert.Equal(t, "\x89PNG data", string(body))

	entries, err := os.ReadDir(filepath.Join(root, "reports"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestKeysStayInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "store")
	fs := New(root)

	_, err := fs.PutObject(context.Background(), ports.PutObjectInput{
		ObjectKey: "../../escape.png",
		Reader:    bytes.NewReader([]byte("x")),
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "escape.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "escape.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestEmptyKey(t *testing.T) {
	_, err := New(t.TempDir()).PutObject(context.Background(), ports.PutObjectInput{Reader: bytes.NewReader(nil)})
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	fs := New(t.TempDir())
	_, _, _, err := fs.GetObject(context.Background(), "reports/nope.png")
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.MkdirAll(filepath.Join(fs.root, "reports"), 0o755))
	_, _, _, err = fs.GetObject(context.Background(), "reports")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fresh")
	assert.NoError(t, New(root).Ping(context.Background()))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, New(file).Ping(context.Background()))
}
