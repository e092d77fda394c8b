package config

// NOTE: defaults mirror what the vendor client expects from a converted sticker
const (
	// frames
	FrameWidth   = 230
	FrameHeight  = 230
	FrameDelayMs = 100 // used for every frame, source timing is ignored

	// palette
	PaletteColors = 256
	QualityMin    = 10
	QualityMax    = 100

	// all sizes are in bytes, advisory only
	MaxSizeStatic   = 300000
	MaxSizeAnimated = 300000

	// lossless png pass
	StripSafe = "safe"
	StripNone = "none"
	StripAll  = "all"

	// vendor cipher covers only the head of the file
	CipherSpan = 128
	CipherKey  = "a271730728cbe141e47fd9d677e9006d"

	// Path
	PathTempPrefix = "temp-"
	ExtOutput      = ".apng"
	SuffixMaster   = "_master.png"
	FrameNameFmt   = "%s_frame%03d.png"

	// env
	EnvPrefix = "STICKERCONV"
)

// extensions of the animated assets, the only ones shipped obfuscated
const (
	ExtWebp = ".webp"
	ExtGif  = ".gif"
)
