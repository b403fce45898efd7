package debounce

import (
	"sync"
	"time"

	"uxtrace/src/internal/core"
)

// Emission triggers.
const (
	TriggerSettle = "settle"
	TriggerBlur   = "blur"
	TriggerFlush  = "flush"
)

// Field identifies one tracked input: element identity plus input type.
type Field struct {
	ID   string
	Type string
}

// Emission is the single input_change produced for a burst of raw input
// events on one field. Value is already masked for password fields.
type Emission struct {
	Field       Field
	Value       string
	FinalLength int
	Trigger     string
}

// EmitFunc receives emissions. Called without tracker locks held.
type EmitFunc func(Emission)

type pending struct {
	value string
	timer *time.Timer
	fired bool
}

// Tracker coalesces rapid input events into one emission per field,
// either after a settle gap or synchronously on blur. Overlapping
// timers for the same field are canceled and replaced, never raced.
type Tracker struct {
	mu      sync.Mutex
	settle  time.Duration
	emit    EmitFunc
	pending map[Field]*pending
}

func NewTracker(settle time.Duration, emit EmitFunc) *Tracker {
	if settle <= 0 {
		settle = core.DefaultSettleDelayMS * time.Millisecond
	}
	return &Tracker{
		settle:  settle,
		emit:    emit,
		pending: make(map[Field]*pending),
	}
}

// Input records a raw input event, restarting the settle timer for the
// field with the latest value.
func (t *Tracker) Input(f Field, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[f]; ok {
		p.timer.Stop()
		p.fired = true
	}

	p := &pending{value: value}
	p.timer = time.AfterFunc(t.settle, func() {
		t.expire(f, p)
	})
	t.pending[f] = p
}

// Blur flushes any pending state for the field synchronously, canceling
// its timer. With nothing pending it is a no-op, so a blur arriving
// after the settle emission never duplicates it. liveValue stands in
// when no value was stored for the field.
func (t *Tracker) Blur(f Field, liveValue string) {
	t.mu.Lock()
	p, ok := t.pending[f]
	if !ok {
		t.mu.Unlock()
		return
	}
	p.timer.Stop()
	p.fired = true
	delete(t.pending, f)

	value := p.value
	if value == "" {
		value = liveValue
	}
	t.mu.Unlock()

	t.emit(t.emission(f, value, TriggerBlur))
}

// Stop flushes every pending field and cancels all timers. Pending
// values are emitted rather than dropped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	var out []Emission
	for f, p := range t.pending {
		p.timer.Stop()
		p.fired = true
		out = append(out, t.emission(f, p.value, TriggerFlush))
	}
	t.pending = make(map[Field]*pending)
	t.mu.Unlock()

	for _, e := range out {
		t.emit(e)
	}
}

// Pending reports how many fields currently await emission.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) expire(f Field, p *pending) {
	t.mu.Lock()
	// A replaced or blurred entry keeps its fired mark; the stale timer
	// callback must not emit for it.
	if p.fired || t.pending[f] != p {
		t.mu.Unlock()
		return
	}
	p.fired = true
	delete(t.pending, f)
	value := p.value
	t.mu.Unlock()

	t.emit(t.emission(f, value, TriggerSettle))
}

func (t *Tracker) emission(f Field, value, trigger string) Emission {
	e := Emission{
		Field:       f,
		Value:       value,
		FinalLength: len(value),
		Trigger:     trigger,
	}
	if f.Type == "password" {
		e.Value = core.MaskToken
	}
	return e
}
