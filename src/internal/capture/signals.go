package capture

import (
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/debounce"
)

// Signal kinds accepted by Dispatch.
const (
	SignalClick      = "click"
	SignalSubmit     = "submit"
	SignalInput      = "input"
	SignalBlur       = "blur"
	SignalScroll     = "scroll"
	SignalResize     = "resize"
	SignalNavigation = "navigation"
)

// FormControl is one control's state at submit time.
type FormControl struct {
	Name    string
	Type    string
	Value   string
	Checked bool
}

// Signal is a normalized UI-level event pushed by the instrumented
// application. Only the fields relevant to the kind are set.
type Signal struct {
	Kind string

	// click
	TargetID   string
	TargetText string
	X, Y       int

	// input / blur
	FieldID   string
	InputType string
	Value     string

	// submit
	FormID   string
	Controls []FormControl

	// scroll
	ScrollX, ScrollY int

	// resize
	Width, Height int

	// navigation
	From, To, Trigger string
}

// Attach consumes signals from a source channel until it closes or the
// logger stops, mirroring document-level listeners.
func (l *Logger) Attach(src <-chan Signal) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case sig, ok := <-src:
				if !ok {
					return
				}
				l.Dispatch(sig)
			case <-l.done:
				return
			}
		}
	}()
}

// Dispatch routes one signal to its handler.
func (l *Logger) Dispatch(sig Signal) {
	switch sig.Kind {
	case SignalClick:
		l.HandleClick(sig.TargetID, sig.TargetText, sig.X, sig.Y)
	case SignalSubmit:
		l.HandleSubmit(sig.FormID, sig.Controls)
	case SignalInput:
		l.HandleInput(sig.FieldID, sig.InputType, sig.Value)
	case SignalBlur:
		l.HandleBlur(sig.FieldID, sig.InputType, sig.Value)
	case SignalScroll:
		l.HandleScroll(sig.ScrollX, sig.ScrollY)
	case SignalResize:
		l.HandleResize(sig.Width, sig.Height)
	case SignalNavigation:
		l.HandleNavigation(sig.From, sig.To, sig.Trigger)
	default:
		l.logger.Debug("msg", "Unknown signal kind ignored",
			"component", "capture",
			"kind", sig.Kind)
	}
}

// HandleClick records a document-level click with pixel coordinates.
func (l *Logger) HandleClick(targetID, targetText string, x, y int) {
	l.LogInteraction(core.EventClick, map[string]any{
		"target_id":   targetID,
		"target_text": targetText,
		"x":           x,
		"y":           y,
	})
}

// HandleSubmit records a form submit with a field-presence map: for
// every control, whether it held a non-empty value (checked state for
// checkboxes and radios) at submit time. Values themselves are not
// stored, which keeps partial-completion analysis free of form data.
func (l *Logger) HandleSubmit(formID string, controls []FormControl) {
	presence := make(map[string]any, len(controls))
	for _, c := range controls {
		switch c.Type {
		case "checkbox", "radio":
			presence[c.Name] = c.Checked
		default:
			presence[c.Name] = c.Value != ""
		}
	}
	l.LogInteraction(core.EventFormSubmit, map[string]any{
		"form_id":        formID,
		"field_count":    len(controls),
		"field_presence": presence,
	})
}

// HandleInput feeds a raw input event into the debounce tracker.
func (l *Logger) HandleInput(fieldID, inputType, value string) {
	if !l.enabled.Load() {
		return
	}
	l.tracker.Input(debounce.Field{ID: fieldID, Type: inputType}, value)
}

// HandleBlur flushes the field's pending debounce state synchronously.
func (l *Logger) HandleBlur(fieldID, inputType, liveValue string) {
	if !l.enabled.Load() {
		return
	}
	l.tracker.Blur(debounce.Field{ID: fieldID, Type: inputType}, liveValue)
}

// HandleScroll records scroll position, throttled trailing-edge.
func (l *Logger) HandleScroll(x, y int) {
	l.scrollThrottle.Call(func() {
		l.LogInteraction(core.EventScroll, map[string]any{
			"scroll_x": x,
			"scroll_y": y,
		})
	})
}

// HandleResize records the new window size, throttled trailing-edge,
// and refreshes the viewport snapshot for subsequent records.
func (l *Logger) HandleResize(width, height int) {
	l.SetViewport(core.Viewport{Width: width, Height: height})
	l.resizeThrottle.Call(func() {
		l.LogInteraction(core.EventWindowResize, map[string]any{
			"width":  width,
			"height": height,
		})
	})
}

// HandleNavigation records a route change, including browser
// back/forward traversal when the application reports it.
func (l *Logger) HandleNavigation(from, to, trigger string) {
	l.SetPage(to, to)
	l.LogInteraction(core.EventNavigation, map[string]any{
		"from":    from,
		"to":      to,
		"trigger": trigger,
	})
}
