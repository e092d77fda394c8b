package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

var Progress = progressCreate(-1, "", os.Stderr) // init as spinner

// Reset starts a new bar with max steps, -1 for a spinner.
func Reset(max int, desc string) {
	Progress = progressCreate(max, desc, os.Stderr)
}

// ResetTo is Reset rendering into w.
func ResetTo(w io.Writer, max int, desc string) {
	Progress = progressCreate(max, desc, w)
}

func Add(n int) {
	_ = Progress.Add(n)
}

func Describe(desc string) {
	Progress.Describe(desc)
}

func Finish() {
	_ = Progress.Finish()
}

func progressCreate(max int, desc string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]/[reset]",
			SaucerHead:    "[green]/[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
