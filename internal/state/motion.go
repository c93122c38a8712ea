package state

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/fieldops/fieldtrace/internal/models"
)

// Motion states
const (
	StateMoving  = "moving"
	StateStopped = "stopped"
)

// Motion events
const (
	EventHalt   = "halt"
	EventResume = "resume"
)

// MotionTracker folds an ordered sample stream into runs of low-speed
// samples. Whenever motion resumes (or the stream ends) the accumulated run
// is handed to onFlush exactly once and discarded, so the pass stays a single
// forward sweep over the input.
type MotionTracker struct {
	fsm     *fsm.FSM
	run     []models.LocationSample
	onFlush func(run []models.LocationSample)
}

// NewMotionTracker creates a tracker. The initial state is moving so that the
// first low-speed sample opens a candidate run.
func NewMotionTracker(onFlush func(run []models.LocationSample)) *MotionTracker {
	t := &MotionTracker{onFlush: onFlush}

	t.fsm = fsm.NewFSM(
		StateMoving,
		fsm.Events{
			{Name: EventHalt, Src: []string{StateMoving}, Dst: StateStopped},
			{Name: EventResume, Src: []string{StateStopped}, Dst: StateMoving},
		},
		fsm.Callbacks{
			"enter_" + StateMoving: func(_ context.Context, _ *fsm.Event) {
				t.flush()
			},
		},
	)

	return t
}

// Observe feeds the next sample in timestamp order. stopped reports whether
// the sample's speed is below the stop threshold.
func (t *MotionTracker) Observe(p models.LocationSample, stopped bool) {
	if stopped {
		if t.fsm.Can(EventHalt) {
			_ = t.fsm.Event(context.Background(), EventHalt)
		}
		t.run = append(t.run, p)
		return
	}

	if t.fsm.Can(EventResume) {
		// Entering moving flushes the pending run via the fsm callback.
		_ = t.fsm.Event(context.Background(), EventResume)
	}
}

// Finish flushes a run left pending at the end of the stream.
func (t *MotionTracker) Finish() {
	t.flush()
}

// Current returns the tracker's state name.
func (t *MotionTracker) Current() string {
	return t.fsm.Current()
}

func (t *MotionTracker) flush() {
	if len(t.run) == 0 {
		return
	}
	run := t.run
	t.run = nil
	t.onFlush(run)
}
