// Package engine advances simulated time by promoting the earliest pending
// event among the registered interrupt managers.
package engine

import (
	"math"

	"neurowombat/internal/interrupt"
	"neurowombat/internal/kernel"
)

// Event describes one promoted step.
type Event struct {
	Time    float64
	Manager kernel.Handle
	Source  int
	Step    uint64
}

// Engine is single-threaded: callers drive it with StepOver and nothing runs
// in the background.
type Engine struct {
	managers    []kernel.Ref[interrupt.Manager]
	currentTime float64
	current     int
	steps       uint64
	onStep      []func(Event)
}

func New() *Engine {
	return &Engine{current: -1}
}

// AppendManager takes ownership of ref. A manager whose pending event lies
// before the current time is rescheduled from the current time.
func (e *Engine) AppendManager(ref kernel.Ref[interrupt.Manager]) bool {
	if !ref.Valid() {
		return false
	}
	m := ref.Value()
	if e.steps > 0 && m.FutureTime() < e.currentTime {
		m.Reschedule(e.currentTime)
	}
	e.managers = append(e.managers, ref)
	return true
}

// OnStep registers an observer called synchronously after every step.
func (e *Engine) OnStep(fn func(Event)) {
	if fn != nil {
		e.onStep = append(e.onStep, fn)
	}
}

// StepOver promotes the earliest pending event, triggers its manager and
// looks ahead to the next one. It returns false once nothing is pending.
func (e *Engine) StepOver() bool {
	winner := e.lookAhead()
	if winner < 0 {
		return false
	}
	m := e.managers[winner].Value()
	e.currentTime = m.FutureTime()
	e.current = winner
	m.Trigger(e.currentTime)
	e.steps++

	if len(e.onStep) > 0 {
		ev := Event{
			Time:    e.currentTime,
			Manager: e.managers[winner].Handle(),
			Source:  m.LastIntSource(),
			Step:    e.steps,
		}
		for _, fn := range e.onStep {
			fn(ev)
		}
	}
	return true
}

// RunUntil steps while the next pending event is not later than horizon and
// returns the number of steps taken.
func (e *Engine) RunUntil(horizon float64) int {
	steps := 0
	for {
		next := e.FutureTime()
		if next < 0 || next > horizon {
			return steps
		}
		if !e.StepOver() {
			return steps
		}
		steps++
	}
}

// lookAhead returns the index of the manager with the earliest finite
// pending time. The strict comparison keeps the first registered manager on
// ties. A shared manager can be triggered by another engine between calls,
// so nothing here is cached.
func (e *Engine) lookAhead() int {
	best := -1
	bestTime := math.Inf(1)
	for i, ref := range e.managers {
		t := ref.Value().FutureTime()
		if !isPending(t) {
			continue
		}
		if best < 0 || t < bestTime {
			best = i
			bestTime = t
		}
	}
	return best
}

// CurrentTime is zero before the first step.
func (e *Engine) CurrentTime() float64 { return e.currentTime }

// FutureTime returns -1 when no event is pending.
func (e *Engine) FutureTime() float64 {
	next := e.lookAhead()
	if next < 0 {
		return -1
	}
	return e.managers[next].Value().FutureTime()
}

// CurrentSource identifies the manager and source code of the last promoted
// event, or (0, -1) before the first step.
func (e *Engine) CurrentSource() (kernel.Handle, int) {
	if e.current < 0 {
		return kernel.None, interrupt.NoSource
	}
	ref := e.managers[e.current]
	return ref.Handle(), ref.Value().LastIntSource()
}

// FutureSource identifies the manager and source code of the pending event,
// or (0, -1) when nothing is pending.
func (e *Engine) FutureSource() (kernel.Handle, int) {
	next := e.lookAhead()
	if next < 0 {
		return kernel.None, interrupt.NoSource
	}
	ref := e.managers[next]
	return ref.Handle(), ref.Value().IntSource()
}

func (e *Engine) Steps() uint64 { return e.steps }

func (e *Engine) Managers() int { return len(e.managers) }

// Destroy releases every captured manager.
func (e *Engine) Destroy() {
	for _, ref := range e.managers {
		ref.Release()
	}
	e.managers = nil
	e.current = -1
	e.onStep = nil
}

func isPending(t float64) bool {
	return !math.IsInf(t, 0) && !math.IsNaN(t)
}
