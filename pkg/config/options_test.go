package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	o, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), o)
	assert.Equal(t, 230, o.Frame.Width)
	assert.Equal(t, 100, o.Frame.Delay)
	assert.Equal(t, 256, o.Compression.Color)
	assert.Equal(t, 1, o.Workers)
	assert.True(t, o.Decrypt)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stickerconv.yaml")
	yaml := `
compression:
  color: 64
  dither: false
frame:
  width: 0
  height: 0
optimize:
  strip: none
kafka:
  brokers: ["k1:9092", "k2:9092"]
workers: 4
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	o, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, o.Compression.Color)
	assert.False(t, o.Compression.Dither)
	assert.Equal(t, 100, o.Compression.QualityMax, "unset keys keep defaults")
	assert.Zero(t, o.Frame.Width)
	assert.Equal(t, StripNone, o.Optimize.Strip)
	assert.True(t, o.Optimize.Brute)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, o.Kafka.Brokers)
	assert.Equal(t, 4, o.Workers)
	assert.Equal(t, "debug", o.LogLevel)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("STICKERCONV_WORKERS", "3")
	t.Setenv("STICKERCONV_DECRYPT", "false")
	t.Setenv("STICKERCONV_COMPRESSION_MAX_SIZE_ANIMATED", "1000")

	o, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, o.Workers)
	assert.False(t, o.Decrypt)
	assert.Equal(t, 1000, o.Compression.MaxSizeAnimated)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("STICKERCONV_OPTIMIZE_STRIP", "everything")
	_, err = Load("")
	assert.ErrorContains(t, err, "strip")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(*Options)
		wantErr bool
	}{
		{"defaults", func(*Options) {}, false},
		{"no resize", func(o *Options) { o.Frame.Width, o.Frame.Height = 0, 0 }, false},
		{"half resize", func(o *Options) { o.Frame.Height = 0 }, true},
		{"negative", func(o *Options) { o.Frame.Width = -1 }, true},
		{"zero delay", func(o *Options) { o.Frame.Delay = 0 }, true},
		{"no workers", func(o *Options) { o.Workers = 0 }, true},
		{"strip all", func(o *Options) { o.Optimize.Strip = StripAll }, false},
		{"bad strip", func(o *Options) { o.Optimize.Strip = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Default()
			tt.mod(&o)
			err := o.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
