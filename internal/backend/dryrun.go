package backend

import (
	"context"
	"log/slog"
)

// DryRun is a Capability that performs no real input injection. Every
// primitive logs the operation it would have executed and succeeds.
//
// It stands in for a platform backend when none is wired up (CI, the
// `play` command on a headless host) and lets the full orchestration
// path run end to end.
type DryRun struct {
	id     Identity
	width  int
	height int
	logger *slog.Logger
}

// NewDryRun builds a dry-run capability reporting the given identity
// and a fixed screen size.
func NewDryRun(id Identity, width, height int, logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{id: id, width: width, height: height, logger: logger}
}

func (d *DryRun) Identity() Identity { return d.id }

func (d *DryRun) log(op string, args ...any) {
	d.logger.Debug("dry-run "+op, append([]any{"backend", d.id}, args...)...)
}

func (d *DryRun) MouseMove(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("mouse_move", "x", x, "y", y)
	return nil
}

func (d *DryRun) MouseClick(ctx context.Context, x, y int, button MouseButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("mouse_click", "x", x, "y", y, "button", button)
	return nil
}

func (d *DryRun) MouseDoubleClick(ctx context.Context, x, y int, button MouseButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("mouse_double_click", "x", x, "y", y, "button", button)
	return nil
}

func (d *DryRun) MouseDrag(ctx context.Context, x, y, toX, toY int, button MouseButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("mouse_drag", "x", x, "y", y, "to_x", toX, "to_y", toY, "button", button)
	return nil
}

func (d *DryRun) MouseScroll(ctx context.Context, x, y, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("mouse_scroll", "x", x, "y", y, "amount", amount)
	return nil
}

func (d *DryRun) KeyPress(ctx context.Context, key string, modifiers []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("key_press", "key", key, "modifiers", modifiers)
	return nil
}

func (d *DryRun) KeyRelease(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("key_release", "key", key)
	return nil
}

func (d *DryRun) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log("type_text", "chars", len(text))
	return nil
}

func (d *DryRun) ScreenSize(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	return d.width, d.height, nil
}

func (d *DryRun) Probe(ctx context.Context) error { return ctx.Err() }
