// Package detector decides when a streaming chat reply has finished. Chat
// UIs expose no structured "done" event, so the detector combines a primary
// signal (the stop affordance disappearing) with a fallback signal (response
// text stability across poll ticks) and hard time bounds. The imprecision
// is documented behavior, not a bug: every path terminates.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatharvest/internal/logging"
)

// State of the per-turn machine.
type State int

const (
	StateInit State = iota
	StateSubmitted
	StateGenerating
	StateStabilizing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSubmitted:
		return "submitted"
	case StateGenerating:
		return "generating"
	case StateStabilizing:
		return "stabilizing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrOverallTimeout marks a turn that hit the per-prompt ceiling without
// resolving. Recovered per prompt by the driver.
var ErrOverallTimeout = errors.New("completion detection timed out")

// Probe samples the live page. Both methods are best-effort reads; a flaky
// read should return the zero value rather than an error.
type Probe interface {
	// StopVisible reports whether a stop/cancel affordance is visible.
	StopVisible() bool
	// ResponseText returns the current text of the latest reply.
	ResponseText() string
}

// Config holds the timing knobs. All fields must be positive.
type Config struct {
	PollTick    time.Duration // sampling interval (~0.4s)
	StableTicks int           // consecutive no-change ticks to complete (~3)
	IdleTimeout time.Duration // force-complete after no text change (~10s)
	StartGrace  time.Duration // max wait for generation to begin (~30s)
	SoftStop    time.Duration // attempt a forced stop after this (~240s)
	Overall     time.Duration // per-prompt ceiling (~300s)
}

// Result is the terminal outcome of one turn.
type Result struct {
	Text    string
	State   State
	Elapsed time.Duration
}

// Detector drives one conversational turn to a terminal state. Not safe for
// concurrent use; create one per prompt.
type Detector struct {
	cfg       Config
	probe     Probe
	forceStop func()

	state State

	// Injectable clock for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithForceStop supplies the action invoked once when the soft bound passes
// with the stop affordance still visible (clicking the site's stop button).
func WithForceStop(fn func()) Option {
	return func(d *Detector) { d.forceStop = fn }
}

// WithClock replaces the wall clock; used by tests to simulate long turns.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Detector) {
		d.now = now
		d.sleep = sleep
	}
}

// New creates a detector for one turn.
func New(probe Probe, cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:   cfg,
		probe: probe,
		state: StateInit,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current state.
func (d *Detector) State() State { return d.state }

// Wait drives the machine from Submitted to a terminal state. The caller
// must have delivered the prompt and issued the submit action already; Wait
// marks the Init->Submitted transition and polls from there.
func (d *Detector) Wait(ctx context.Context) (Result, error) {
	start := d.now()
	d.transition(StateSubmitted)

	prevText := ""
	lastChange := start
	stable := 0
	forcedStop := false

	for {
		now := d.now()
		elapsed := now.Sub(start)

		if elapsed >= d.cfg.Overall {
			d.transition(StateFailed)
			return Result{Text: prevText, State: StateFailed, Elapsed: elapsed},
				fmt.Errorf("%w after %v", ErrOverallTimeout, elapsed.Round(time.Second))
		}

		stop := d.probe.StopVisible()
		text := d.probe.ResponseText()

		changed := text != prevText
		if changed {
			stable = 0
			if text != "" {
				lastChange = now
			}
			prevText = text
		}

		// Transitions cascade within one tick so a fast reply does not pay
		// an extra poll interval per state.
		if d.state == StateSubmitted {
			if stop || (changed && text != "") {
				d.transition(StateGenerating)
			} else if elapsed >= d.cfg.StartGrace {
				// Nothing ever started; let the idle bound terminate us.
				d.transition(StateStabilizing)
			}
		}
		if d.state == StateGenerating && !stop {
			d.transition(StateStabilizing)
			stable = 0
		}
		if d.state == StateStabilizing && stop {
			d.transition(StateGenerating)
		}

		if d.state == StateStabilizing && !changed && text != "" {
			stable++
			if stable >= d.cfg.StableTicks {
				d.transition(StateCompleted)
				logging.Detector("turn completed in %v (%d chars)", now.Sub(start), len(text))
				return Result{Text: text, State: StateCompleted, Elapsed: now.Sub(start)}, nil
			}
		}

		// Safety timeout: no text change beyond the hard idle bound forces
		// completion even if the stop affordance state is ambiguous.
		if d.state != StateSubmitted && now.Sub(lastChange) >= d.cfg.IdleTimeout {
			logging.Detector("no text change for %v, forcing completion", d.cfg.IdleTimeout)
			d.transition(StateCompleted)
			return Result{Text: text, State: StateCompleted, Elapsed: now.Sub(start)}, nil
		}

		if !forcedStop && stop && elapsed >= d.cfg.SoftStop && d.forceStop != nil {
			logging.Detector("soft bound %v passed with stop affordance visible, forcing stop", d.cfg.SoftStop)
			d.forceStop()
			forcedStop = true
		}

		if err := d.sleep(ctx, d.cfg.PollTick); err != nil {
			d.transition(StateFailed)
			return Result{Text: prevText, State: StateFailed, Elapsed: d.now().Sub(start)}, err
		}
	}
}

func (d *Detector) transition(next State) {
	if d.state == next {
		return
	}
	logging.DetectorDebug("state %s -> %s", d.state, next)
	d.state = next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
