// All files related functions
package storage

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/1F47E/go-stickerconv/internal/errs"
	cfg "github.com/1F47E/go-stickerconv/pkg/config"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

// WorkDir is the scratch area of one transcode.
// It is created next to the source asset and removed when the transcode ends.
type WorkDir struct {
	Path string
	stem string
}

func NewWorkDir(parent, stem string) (*WorkDir, error) {
	dir := filepath.Join(parent, cfg.PathTempPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("%w: creating work dir: %v", errs.ErrIO, err)
	}
	logger.Log.WithField("scope", "storage").Debugf("work dir %s", dir)
	return &WorkDir{Path: dir, stem: stem}, nil
}

func (w *WorkDir) MasterPath() string {
	return filepath.Join(w.Path, w.stem+cfg.SuffixMaster)
}

func (w *WorkDir) FramePath(i int) string {
	return filepath.Join(w.Path, fmt.Sprintf(cfg.FrameNameFmt, w.stem, i))
}

// SaveMaster writes the quantized master raster for inspection.
func (w *WorkDir) SaveMaster(img image.Image) (string, error) {
	path := w.MasterPath()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot create %s: %v", errs.ErrIO, path, err)
	}
	defer f.Close()

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		return "", fmt.Errorf("%w: cannot encode master: %v", errs.ErrIO, err)
	}
	return path, nil
}

func (w *WorkDir) SaveFrame(i int, data []byte) (string, error) {
	path := w.FramePath(i)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: cannot write frame %d: %v", errs.ErrIO, i, err)
	}
	return path, nil
}

// ScanFrames lists the frame files in index order.
func (w *WorkDir) ScanFrames() ([]string, error) {
	files, err := os.ReadDir(w.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	prefix := w.stem + "_frame"
	list := make([]string, 0, len(files))
	for _, file := range files {
		if strings.HasPrefix(file.Name(), prefix) {
			list = append(list, filepath.Join(w.Path, file.Name()))
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", errs.ErrIO, w.Path)
	}
	// frame numbers may outgrow their zero padding
	sort.Slice(list, func(i, j int) bool {
		if len(list[i]) != len(list[j]) {
			return len(list[i]) < len(list[j])
		}
		return list[i] < list[j]
	})
	return list, nil
}

// Remove deletes the work dir with everything in it. Safe to call twice.
func (w *WorkDir) Remove() error {
	if w == nil || w.Path == "" {
		return nil
	}
	if err := os.RemoveAll(w.Path); err != nil {
		return fmt.Errorf("%w: removing %s: %v", errs.ErrIO, w.Path, err)
	}
	return nil
}

func ReadAsset(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return data, nil
}

// WriteAsset replaces path with data through a temp file in the same dir,
// so a failed write never leaves a half written asset behind.
func WriteAsset(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), cfg.PathTempPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	defer os.Remove(tmp.Name())
	if fi, err := os.Stat(path); err == nil {
		_ = tmp.Chmod(fi.Mode().Perm())
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}
