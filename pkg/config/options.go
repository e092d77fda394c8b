package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Options struct {
	Compression Compression `mapstructure:"compression"`
	Frame       Frame       `mapstructure:"frame"`
	Optimize    Optimize    `mapstructure:"optimize"`
	Kafka       Kafka       `mapstructure:"kafka"`
	Workers     int         `mapstructure:"workers"`
	Decrypt     bool        `mapstructure:"decrypt"`
	LogLevel    string      `mapstructure:"log_level"`
}

// Compression holds the palette and budget knobs of a single transcode.
// Size budgets are reported against, never enforced.
type Compression struct {
	Color           int  `mapstructure:"color"`
	MaxSizeStatic   int  `mapstructure:"max_size_static"`
	MaxSizeAnimated int  `mapstructure:"max_size_animated"`
	QualityMin      int  `mapstructure:"quality_min"`
	QualityMax      int  `mapstructure:"quality_max"`
	Dither          bool `mapstructure:"dither"`
}

type Frame struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	Delay  int `mapstructure:"delay"`
}

type Optimize struct {
	Enabled       bool   `mapstructure:"enabled"`
	Brute         bool   `mapstructure:"brute"`
	OptimizeAlpha bool   `mapstructure:"optimize_alpha"`
	Strip         string `mapstructure:"strip"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// Default returns the options used when no config file is given.
func Default() Options {
	return Options{
		Compression: Compression{
			Color:           PaletteColors,
			MaxSizeStatic:   MaxSizeStatic,
			MaxSizeAnimated: MaxSizeAnimated,
			QualityMin:      QualityMin,
			QualityMax:      QualityMax,
			Dither:          true,
		},
		Frame: Frame{
			Width:  FrameWidth,
			Height: FrameHeight,
			Delay:  FrameDelayMs,
		},
		Optimize: Optimize{
			Enabled:       true,
			Brute:         true,
			OptimizeAlpha: true,
			Strip:         StripSafe,
		},
		Kafka: Kafka{
			Brokers: []string{"localhost:9094"},
			Topic:   "stickers",
			GroupID: "stickerconv",
		},
		Workers: 1,
		Decrypt: true,
	}
}

// Load reads options from an optional yaml file and STICKERCONV_* env vars
// on top of Default. An empty path means env and defaults only.
func Load(path string) (Options, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var o Options
	if err := v.Unmarshal(&o); err != nil {
		return Options{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

func setDefaults(v *viper.Viper, d Options) {
	v.SetDefault("compression.color", d.Compression.Color)
	v.SetDefault("compression.max_size_static", d.Compression.MaxSizeStatic)
	v.SetDefault("compression.max_size_animated", d.Compression.MaxSizeAnimated)
	v.SetDefault("compression.quality_min", d.Compression.QualityMin)
	v.SetDefault("compression.quality_max", d.Compression.QualityMax)
	v.SetDefault("compression.dither", d.Compression.Dither)

	v.SetDefault("frame.width", d.Frame.Width)
	v.SetDefault("frame.height", d.Frame.Height)
	v.SetDefault("frame.delay", d.Frame.Delay)

	v.SetDefault("optimize.enabled", d.Optimize.Enabled)
	v.SetDefault("optimize.brute", d.Optimize.Brute)
	v.SetDefault("optimize.optimize_alpha", d.Optimize.OptimizeAlpha)
	v.SetDefault("optimize.strip", d.Optimize.Strip)

	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)

	v.SetDefault("workers", d.Workers)
	v.SetDefault("decrypt", d.Decrypt)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate catches values that would only fail deep inside a transcode.
// Palette and quality bounds are checked again by the quantizer.
func (o Options) Validate() error {
	if o.Frame.Width < 0 || o.Frame.Height < 0 {
		return fmt.Errorf("frame size must not be negative: %dx%d", o.Frame.Width, o.Frame.Height)
	}
	if (o.Frame.Width == 0) != (o.Frame.Height == 0) {
		return fmt.Errorf("frame width and height must both be set or both be 0")
	}
	if o.Frame.Delay <= 0 {
		return fmt.Errorf("frame delay must be positive, got %d", o.Frame.Delay)
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	switch o.Optimize.Strip {
	case StripSafe, StripNone, StripAll:
	default:
		return fmt.Errorf("unknown strip mode %q", o.Optimize.Strip)
	}
	return nil
}
