package storage

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-stickerconv/internal/errs"
)

func TestWorkDir(t *testing.T) {
	parent := t.TempDir()
	wd, err := NewWorkDir(parent, "sticker")
	require.NoError(t, err)
	assert.Equal(t, parent, filepath.Dir(wd.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(wd.Path), "temp-"))

	other, err := NewWorkDir(parent, "sticker")
	require.NoError(t, err)
	assert.NotEqual(t, wd.Path, other.Path)

	for _, i := range []int{2, 0, 1} {
		_, err := wd.SaveFrame(i, []byte{byte(i)})
		require.NoError(t, err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	master, err := wd.SaveMaster(img)
	require.NoError(t, err)
	assert.Equal(t, "sticker_master.png", filepath.Base(master))

	f, err := os.Open(master)
	require.NoError(t, err)
	got, err := png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())

	list, err := wd.ScanFrames()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "sticker_frame000.png", filepath.Base(list[0]))
	assert.Equal(t, "sticker_frame002.png", filepath.Base(list[2]))

	require.NoError(t, wd.Remove())
	_, err = os.Stat(wd.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, wd.Remove())
}

func TestScanFramesEmpty(t *testing.T) {
	wd, err := NewWorkDir(t.TempDir(), "x")
	require.NoError(t, err)
	_, err = wd.ScanFrames()
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestAssetReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.webp")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0o644))

	require.NoError(t, WriteAsset(path, []byte("new")))
	data, err := ReadAsset(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	_, err = ReadAsset(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, errs.ErrIO)
}
