package core

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/internal/frames"
	"github.com/1F47E/go-stickerconv/internal/job"
	"github.com/1F47E/go-stickerconv/internal/meta"
	"github.com/1F47E/go-stickerconv/internal/quantize"
	"github.com/1F47E/go-stickerconv/internal/storage"
	"github.com/1F47E/go-stickerconv/internal/workers"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

// Transcode turns the asset at path into <stem>.apng next to it.
func (c *Core) Transcode(ctx context.Context, path string) (Result, error) {
	return c.TranscodeJob(ctx, job.New(path))
}

// 1. decrypt the asset in place and extract its frames
// 2. quantize the frames onto one palette, save the master raster
// 3. encode the frames into an apng next to the asset
// Scratch files live in a work dir that is removed on every return.
func (c *Core) TranscodeJob(ctx context.Context, j job.Job) (res Result, err error) {
	log := logger.Log.WithFields(logrus.Fields{"scope": "core transcode", "asset": j.Path})
	now := time.Now()
	res = Result{Source: j.Path}
	defer func() {
		res.Elapsed = time.Since(now)
		res.Err = err
		res.Stage = errs.StageOf(err)
	}()

	// cancellation is only observed between assets
	if err := ctx.Err(); err != nil {
		return res, err
	}

	m := meta.New(j.Path)
	if !m.IsAnimated() {
		log.Debug("not animated, passing through")
		res.Skipped = true
		return res, nil
	}

	anim, err := c.load(m)
	if err != nil {
		return res, err
	}

	wd, err := storage.NewWorkDir(m.Dir, m.Stem)
	if err != nil {
		return res, errs.Wrap(j.Path, errs.StageExtract, err)
	}
	defer func() {
		rmErr := wd.Remove()
		if rmErr == nil {
			return
		}
		if err != nil {
			log.Warnf("cleanup: %v", rmErr)
			return
		}
		err = errs.Wrap(j.Path, errs.StageCleanup, rmErr)
	}()

	if j.ExpectedFrames > 0 && anim.Len() != j.ExpectedFrames {
		log.Warnf("expected %d frames, extracted %d", j.ExpectedFrames, anim.Len())
	}
	res.Frames = anim.Len()

	q, err := quantize.Quantize(anim, c.quantizeOptions())
	if err != nil {
		return res, errs.Wrap(j.Path, errs.StageQuantize, err)
	}
	res.Colors = len(q.Palette)
	res.Quality = q.Quality
	if _, err := wd.SaveMaster(q.Master); err != nil {
		return res, errs.Wrap(j.Path, errs.StageQuantize, err)
	}

	out := m.OutputPath()
	n, err := c.encoder.Encode(q, c.opts.Frame.Delay, out, wd)
	if err != nil {
		return res, errs.Wrap(j.Path, errs.StageEncode, err)
	}
	written, err := storage.ReadAsset(out)
	if err != nil {
		return res, errs.Wrap(j.Path, errs.StageEncode, err)
	}
	res.Output = out
	res.Bytes = n
	res.Checksum = meta.Checksum(written)

	if limit := int64(c.opts.Compression.MaxSizeAnimated); limit > 0 && n > limit {
		log.Warnf("output is %d bytes, over the %d byte budget", n, limit)
	}
	log.WithFields(logrus.Fields{
		"frames":  res.Frames,
		"colors":  res.Colors,
		"quality": res.Quality,
		"bytes":   n,
	}).Debug("transcoded")
	return res, nil
}

// load decrypts the asset in place when configured and extracts its frames.
// Plain assets are extracted straight from disk.
func (c *Core) load(m meta.Metadata) (*frames.Animation, error) {
	path := m.Path()
	if !c.opts.Decrypt {
		anim, err := frames.ExtractFile(path, c.frameOptions())
		if err != nil {
			stage := errs.StageExtract
			if errors.Is(err, errs.ErrIO) {
				stage = errs.StageRead
			}
			return nil, errs.Wrap(path, stage, err)
		}
		return anim, nil
	}

	data, err := storage.ReadAsset(path)
	if err != nil {
		return nil, errs.Wrap(path, errs.StageRead, err)
	}
	data = c.scheme.Decrypt(data)
	if err := storage.WriteAsset(path, data); err != nil {
		return nil, errs.Wrap(path, errs.StageDecrypt, err)
	}
	logger.Log.WithField("asset", path).Debug("decrypted in place")

	anim, err := frames.Extract(data, m.Ext, c.frameOptions())
	if err != nil {
		return nil, errs.Wrap(path, errs.StageExtract, err)
	}
	return anim, nil
}

// TranscodeAll transcodes paths on the configured number of workers.
// Results are in the order of paths and a failed asset never stops the rest.
func (c *Core) TranscodeAll(ctx context.Context, paths []string) []Result {
	return c.TranscodeJobs(ctx, job.FromPaths(paths), nil)
}

// TranscodeJobs is TranscodeAll for queue jobs. onDone, if set, sees every
// result in batch order as soon as it is available.
func (c *Core) TranscodeJobs(ctx context.Context, jobs []job.Job, onDone func(Result)) []Result {
	pool := workers.NewPool(c.opts.Workers, func(ctx context.Context, j job.Job) Result {
		res, _ := c.TranscodeJob(ctx, j)
		return res
	})
	if onDone != nil {
		pool.OnDone(onDone)
	}
	return pool.Run(ctx, jobs)
}
