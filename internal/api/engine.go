package api

import (
	"neurowombat/internal/engine"
	"neurowombat/internal/interrupt"
	"neurowombat/internal/kernel"
	"neurowombat/internal/params"
)

func (s *Session) engine(op string, h kernel.Handle) (*engine.Engine, bool) {
	e, ok := kernel.Lookup[*engine.Engine](s.reg, h)
	if !ok {
		s.fail(op, "engine", h.String())
	}
	return e, ok
}

// AppendManager hands a captured manager to the engine.
func (s *Session) AppendManager(engineHandle, managerHandle kernel.Handle) bool {
	e, ok := s.engine("append manager", engineHandle)
	if !ok {
		return false
	}
	m, ok := kernel.Acquire[interrupt.Manager](s.reg, managerHandle)
	if !ok {
		s.fail("append manager", "manager", managerHandle.String())
		return false
	}
	return e.AppendManager(m)
}

// StepOver advances the engine by one event. False means the simulation is
// exhausted or the handle is not an engine.
func (s *Session) StepOver(h kernel.Handle) bool {
	e, ok := s.engine("step over", h)
	if !ok {
		return false
	}
	return e.StepOver()
}

// RunUntil steps while the next event is not later than horizon.
func (s *Session) RunUntil(h kernel.Handle, horizon float64) int {
	e, ok := s.engine("run until", h)
	if !ok {
		return 0
	}
	return e.RunUntil(horizon)
}

func (s *Session) CurrentTime(h kernel.Handle) float64 {
	e, ok := s.engine("current time", h)
	if !ok {
		return 0
	}
	return e.CurrentTime()
}

// FutureTime is -1 when nothing is pending or h is not an engine.
func (s *Session) FutureTime(h kernel.Handle) float64 {
	e, ok := s.engine("future time", h)
	if !ok {
		return -1
	}
	return e.FutureTime()
}

func (s *Session) CurrentSource(h kernel.Handle) (kernel.Handle, int) {
	e, ok := s.engine("current source", h)
	if !ok {
		return kernel.None, interrupt.NoSource
	}
	return e.CurrentSource()
}

func (s *Session) FutureSource(h kernel.Handle) (kernel.Handle, int) {
	e, ok := s.engine("future source", h)
	if !ok {
		return kernel.None, interrupt.NoSource
	}
	return e.FutureSource()
}

// Steps returns the number of events the engine has executed.
func (s *Session) Steps(h kernel.Handle) uint64 {
	e, ok := s.engine("steps", h)
	if !ok {
		return 0
	}
	return e.Steps()
}

func (s *Session) vector(op string, h kernel.Handle) (params.Vector, bool) {
	v, ok := kernel.Lookup[params.Vector](s.reg, h)
	if !ok {
		s.fail(op, "array", h.String())
	}
	return v, ok
}

// Value reads one entry of any parameter array.
func (s *Session) Value(h kernel.Handle, index int) (float64, bool) {
	v, ok := s.vector("value", h)
	if !ok {
		return 0, false
	}
	x, ok := v.At(index)
	if !ok {
		s.fail("value", "array", h.String(), "index", index)
	}
	return x, ok
}

func (s *Session) SetValue(h kernel.Handle, index int, x float64) bool {
	v, ok := s.vector("set value", h)
	if !ok {
		return false
	}
	if err := v.Set(index, x); err != nil {
		s.fail("set value", "error", err)
		return false
	}
	return true
}

// Values copies count entries starting at base; entries past the end read
// as NaN. It returns nil when h is not a parameter array.
func (s *Session) Values(h kernel.Handle, base, count int) []float64 {
	v, ok := s.vector("values", h)
	if !ok {
		return nil
	}
	return v.Slice(base, count)
}

// SetValues writes values starting at base and returns how many landed
// inside the array.
func (s *Session) SetValues(h kernel.Handle, base int, values []float64) int {
	v, ok := s.vector("set values", h)
	if !ok {
		return 0
	}
	return v.Assign(base, values)
}

// Len returns the length of a parameter array, 0 when h is not one.
func (s *Session) Len(h kernel.Handle) int {
	v, ok := s.vector("len", h)
	if !ok {
		return 0
	}
	return v.Len()
}
