package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageError(t *testing.T) {
	inner := fmt.Errorf("%w: no frames", ErrDecode)
	err := Wrap("pack/1_001.webp", StageExtract, inner)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.False(t, errors.Is(err, ErrEncode))
	assert.Equal(t, StageExtract, StageOf(err))
	assert.Equal(t, ErrDecode, Kind(err))
	assert.Contains(t, err.Error(), "pack/1_001.webp")
	assert.Contains(t, err.Error(), "extract")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap("a", StageEncode, nil))
	assert.Equal(t, "", StageOf(errors.New("plain")))
	assert.Nil(t, Kind(errors.New("plain")))
}
