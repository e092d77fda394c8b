// Package errs holds the failure kinds a transcode can end with.
//
// Stage packages wrap one of the sentinel kinds with fmt.Errorf("%w: ...").
// The orchestrator wraps that again in a *StageError carrying the asset path
// and the stage name. Callers branch with errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrFormat   = errors.New("format error")
	ErrDecode   = errors.New("decode error")
	ErrQuantize = errors.New("quantization error")
	ErrEncode   = errors.New("encode error")
	ErrIO       = errors.New("io error")
)

// Stage names used in StageError and in logs.
const (
	StageRead     = "read"
	StageDecrypt  = "decrypt"
	StageExtract  = "extract"
	StageQuantize = "quantize"
	StageEncode   = "encode"
	StageCleanup  = "cleanup"
)

type StageError struct {
	Path  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Path, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Wrap(path, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Path: path, Stage: stage, Err: err}
}

// StageOf returns the failed stage name, or "" if err carries none.
func StageOf(err error) string {
	var se *StageError
	if !errors.As(err, &se) {
		return ""
	}
	return se.Stage
}

// Kind returns the sentinel kind wrapped by err, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrFormat, ErrDecode, ErrQuantize, ErrEncode, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
