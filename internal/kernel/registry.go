// Package kernel stores simulator objects behind opaque generational handles
// and tracks shared ownership between them.
package kernel

import (
	"errors"
	"fmt"
	"sync"
)

// Handle identifies one live object. The zero Handle means "none".
//
// The low 32 bits hold the slot index plus one and the high 32 bits hold the
// slot generation, so a handle to a destroyed object never resolves to an
// unrelated object placed in the same slot later.
type Handle uint64

// None is the invalid handle.
const None Handle = 0

var ErrOwnershipUnderflow = errors.New("ownership count underflow")

// Destroyer is implemented by objects that hold captured references to other
// registry objects. Destroy is called exactly once, when the object is freed.
type Destroyer interface {
	Destroy()
}

type slot struct {
	obj        any
	gen        uint32
	captures   int
	registered bool
	live       bool
}

// Registry is the object store. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	order []Handle
	live  int

	onDestroy func(Handle, any)
}

func NewRegistry() *Registry {
	return &Registry{}
}

// OnDestroy installs a hook invoked after an object has been destroyed.
func (r *Registry) OnDestroy(fn func(Handle, any)) {
	r.mu.Lock()
	r.onDestroy = fn
	r.mu.Unlock()
}

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) split() (uint32, uint32, bool) {
	low := uint32(uint64(h) & 0xffffffff)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(uint64(h) >> 32), true
}

func (h Handle) String() string {
	index, gen, ok := h.split()
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%d@%d", index, gen)
}

// Insert stores obj and returns a fresh handle. A nil obj yields None.
func (r *Registry) Insert(obj any) Handle {
	if obj == nil {
		return None
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		index = uint32(len(r.slots) - 1)
	}
	s := &r.slots[index]
	s.obj = obj
	s.captures = 0
	s.registered = true
	s.live = true
	r.live++

	h := makeHandle(index, s.gen)
	r.order = append(r.order, h)
	return h
}

// resolve returns the slot for h if it is live and of the current generation.
func (r *Registry) resolve(h Handle) (*slot, bool) {
	index, gen, ok := h.split()
	if !ok || int(index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[index]
	if !s.live || s.gen != gen {
		return nil, false
	}
	return s, true
}

// Get returns the object registered under h. Deleted, destroyed and unknown
// handles report false.
func (r *Registry) Get(h Handle) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.resolve(h)
	if !ok || !s.registered {
		return nil, false
	}
	return s.obj, true
}

// Lookup resolves h and checks that the object has capability T.
func Lookup[T any](r *Registry, h Handle) (T, bool) {
	var zero T
	obj, ok := r.Get(h)
	if !ok {
		return zero, false
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Delete drops the registry's own hold on h. The object is destroyed at once
// when nobody captured it, otherwise when the last holder releases it.
func (r *Registry) Delete(h Handle) bool {
	r.mu.Lock()
	s, ok := r.resolve(h)
	if !ok || !s.registered {
		r.mu.Unlock()
		return false
	}
	s.registered = false
	r.dropOrder(h)
	if s.captures > 0 {
		r.mu.Unlock()
		return true
	}
	obj := r.freeSlot(h, s)
	hook := r.onDestroy
	r.mu.Unlock()

	destroy(h, obj, hook)
	return true
}

// Capture increments the shared-ownership count of a live object.
func (r *Registry) Capture(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.resolve(h)
	if !ok {
		return false
	}
	s.captures++
	return true
}

// Release decrements the shared-ownership count. Releasing more than was
// captured panics with ErrOwnershipUnderflow.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	s, ok := r.resolve(h)
	if !ok {
		r.mu.Unlock()
		panic(fmt.Errorf("%w: release of dead handle %s", ErrOwnershipUnderflow, h))
	}
	if s.captures == 0 {
		r.mu.Unlock()
		panic(fmt.Errorf("%w: handle %s", ErrOwnershipUnderflow, h))
	}
	s.captures--
	if s.captures > 0 || s.registered {
		r.mu.Unlock()
		return
	}
	obj := r.freeSlot(h, s)
	hook := r.onDestroy
	r.mu.Unlock()

	destroy(h, obj, hook)
}

// Captures reports the current shared-ownership count of h.
func (r *Registry) Captures(h Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.resolve(h)
	if !ok {
		return 0
	}
	return s.captures
}

// Alive reports whether the object behind h has not been destroyed yet, even
// if the registry no longer hands it out.
func (r *Registry) Alive(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.resolve(h)
	return ok
}

// Len returns the number of objects not yet destroyed.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Handles lists registered handles in insertion order.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Handle(nil), r.order...)
}

// Clear deletes every registered handle, newest first, so holders are torn
// down before the objects they captured.
func (r *Registry) Clear() {
	handles := r.Handles()
	for i := len(handles) - 1; i >= 0; i-- {
		r.Delete(handles[i])
	}
}

// freeSlot must be called with r.mu held.
func (r *Registry) freeSlot(h Handle, s *slot) any {
	index, _, _ := h.split()
	obj := s.obj
	s.obj = nil
	s.live = false
	s.gen++
	r.live--
	r.free = append(r.free, index)
	return obj
}

// dropOrder must be called with r.mu held.
func (r *Registry) dropOrder(h Handle) {
	for i, candidate := range r.order {
		if candidate == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func destroy(h Handle, obj any, hook func(Handle, any)) {
	if d, ok := obj.(Destroyer); ok {
		d.Destroy()
	}
	if hook != nil {
		hook(h, obj)
	}
}
