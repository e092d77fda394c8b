package core

import (
	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/internal/meta"
	"github.com/1F47E/go-stickerconv/internal/storage"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

// Decrypt removes the vendor obfuscation from the asset at path, in place.
// Formats that are never obfuscated are left alone and reported as false.
func (c *Core) Decrypt(path string) (bool, error) {
	log := logger.Log.WithField("scope", "core decrypt")
	m := meta.New(path)
	if !m.IsAnimated() {
		log.Debugf("%s is not obfuscated", m.Filename)
		return false, nil
	}
	data, err := storage.ReadAsset(path)
	if err != nil {
		return false, errs.Wrap(path, errs.StageRead, err)
	}
	if err := storage.WriteAsset(path, c.scheme.Decrypt(data)); err != nil {
		return false, errs.Wrap(path, errs.StageDecrypt, err)
	}
	log.Debugf("decrypted %s (%d bytes)", m.Filename, len(data))
	return true, nil
}
