package player

import (
	"fmt"

	"github.com/replaykit/replaykit/internal/script"
)

// scaler maps recorded coordinates onto the current display.
type scaler struct {
	recorded script.Resolution
	current  script.Resolution
	active   bool
}

// newScaler builds a scaler for a session. Scaling activates only when
// the script recorded its resolution and it differs from the live one.
func newScaler(recorded *script.Resolution, currentW, currentH int) scaler {
	s := scaler{current: script.Resolution{Width: currentW, Height: currentH}}
	if recorded == nil || recorded.Width <= 0 || recorded.Height <= 0 {
		return s
	}
	s.recorded = *recorded
	s.active = recorded.Width != currentW || recorded.Height != currentH
	return s
}

// apply rescales (x, y) proportionally per axis and clamps the result
// to the current screen bounds. The returned warning is non-empty when
// clamping occurred; clamping is never a failure.
func (s scaler) apply(x, y int) (int, int, string) {
	if s.active {
		x = x * s.current.Width / s.recorded.Width
		y = y * s.current.Height / s.recorded.Height
	}

	clampedX := clamp(x, 0, s.current.Width-1)
	clampedY := clamp(y, 0, s.current.Height-1)

	var warn string
	if clampedX != x || clampedY != y {
		warn = fmt.Sprintf("coordinate (%d, %d) outside %dx%d screen, clamped to (%d, %d)",
			x, y, s.current.Width, s.current.Height, clampedX, clampedY)
	}
	return clampedX, clampedY, warn
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
