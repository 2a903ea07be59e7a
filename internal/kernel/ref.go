package kernel

import "sync"

// Ref is a captured reference to a registry object. Holding a Ref keeps the
// object alive after its handle is deleted; Release gives the hold back.
type Ref[T any] struct {
	reg    *Registry
	handle Handle
	value  T
	once   *sync.Once
}

// Acquire looks up h as capability T and captures it.
func Acquire[T any](r *Registry, h Handle) (Ref[T], bool) {
	value, ok := Lookup[T](r, h)
	if !ok {
		return Ref[T]{}, false
	}
	if !r.Capture(h) {
		return Ref[T]{}, false
	}
	return Ref[T]{reg: r, handle: h, value: value, once: new(sync.Once)}, true
}

// Handle returns the handle the reference was acquired from.
func (r Ref[T]) Handle() Handle { return r.handle }

// Value returns the referenced object.
func (r Ref[T]) Value() T { return r.value }

// Valid reports whether the reference was successfully acquired.
func (r Ref[T]) Valid() bool { return r.reg != nil }

// Release drops the captured hold. Copies of a Ref share one release, so a
// second call is a no-op.
func (r Ref[T]) Release() {
	if r.reg == nil {
		return
	}
	r.once.Do(func() { r.reg.Release(r.handle) })
}
