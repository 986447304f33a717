package player

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/replaykit/replaykit/internal/script"
)

func TestScaler_InactiveWhenResolutionMatches(t *testing.T) {
	s := newScaler(&script.Resolution{Width: 1920, Height: 1080}, 1920, 1080)
	x, y, warn := s.apply(500, 600)
	assert.Equal(t, 500, x)
	assert.Equal(t, 600, y)
	assert.Empty(t, warn)
}

func TestScaler_InactiveWhenUnrecorded(t *testing.T) {
	s := newScaler(nil, 800, 600)
	x, y, warn := s.apply(100, 100)
	assert.Equal(t, 100, x)
	assert.Equal(t, 100, y)
	assert.Empty(t, warn)
}

func TestScaler_CenterMapsToCenter(t *testing.T) {
	s := newScaler(&script.Resolution{Width: 1920, Height: 1080}, 3840, 2160)
	x, y, warn := s.apply(960, 540)
	assert.Equal(t, 1920, x)
	assert.Equal(t, 1080, y)
	assert.Empty(t, warn)
}

func TestScaler_DownscalesProportionally(t *testing.T) {
	s := newScaler(&script.Resolution{Width: 1920, Height: 1080}, 960, 540)
	x, y, _ := s.apply(480, 270)
	assert.Equal(t, 240, x)
	assert.Equal(t, 135, y)
}

func TestScaler_ClampsOutOfBoundsWithWarning(t *testing.T) {
	s := newScaler(&script.Resolution{Width: 800, Height: 600}, 800, 600)

	x, y, warn := s.apply(900, -5)
	assert.Equal(t, 799, x)
	assert.Equal(t, 0, y)
	assert.NotEmpty(t, warn, "clamping must be recorded, never silent")
	assert.Contains(t, warn, "clamped")
}

func TestScaler_ZeroRecordedDimensionsIgnored(t *testing.T) {
	s := newScaler(&script.Resolution{Width: 0, Height: 0}, 800, 600)
	x, y, warn := s.apply(10, 20)
	assert.Equal(t, 10, x)
	assert.Equal(t, 20, y)
	assert.Empty(t, warn)
}
