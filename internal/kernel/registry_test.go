package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	name      string
	destroyed int
}

func (p *probe) Destroy() { p.destroyed++ }

type other struct{}

func TestInsertReturnsDistinctNonZeroHandles(t *testing.T) {
	reg := NewRegistry()
	seen := make(map[Handle]bool)
	for i := 0; i < 64; i++ {
		h := reg.Insert(&probe{})
		require.NotEqual(t, None, h)
		require.False(t, seen[h], "duplicate handle %s", h)
		seen[h] = true
	}
	assert.Equal(t, 64, reg.Len())
}

func TestInsertNilReturnsNone(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, None, reg.Insert(nil))
	assert.Equal(t, 0, reg.Len())
}

func TestLookupChecksCapability(t *testing.T) {
	reg := NewRegistry()
	h := reg.Insert(&probe{name: "p"})

	p, ok := Lookup[*probe](reg, h)
	require.True(t, ok)
	assert.Equal(t, "p", p.name)

	_, ok = Lookup[*other](reg, h)
	assert.False(t, ok, "wrong capability must be absent")

	_, ok = Lookup[*probe](reg, Handle(12345))
	assert.False(t, ok, "unknown handle must be absent")

	_, ok = Lookup[*probe](reg, None)
	assert.False(t, ok)
}

func TestDeleteWithoutCapturesDestroysImmediately(t *testing.T) {
	reg := NewRegistry()
	p := &probe{}
	h := reg.Insert(p)

	require.True(t, reg.Delete(h))
	assert.Equal(t, 1, p.destroyed)
	assert.False(t, reg.Alive(h))
	_, ok := reg.Get(h)
	assert.False(t, ok)
	assert.False(t, reg.Delete(h), "second delete must be rejected")
	assert.Equal(t, 1, p.destroyed)
}

func TestDeleteDefersUntilLastRelease(t *testing.T) {
	reg := NewRegistry()
	p := &probe{}
	h := reg.Insert(p)

	require.True(t, reg.Capture(h))
	require.True(t, reg.Capture(h))
	require.True(t, reg.Delete(h))

	_, ok := reg.Get(h)
	assert.False(t, ok, "deleted handle must not resolve")
	assert.True(t, reg.Alive(h))
	assert.Equal(t, 0, p.destroyed)

	reg.Release(h)
	assert.Equal(t, 0, p.destroyed)
	reg.Release(h)
	assert.Equal(t, 1, p.destroyed)
	assert.False(t, reg.Alive(h))
	assert.Equal(t, 0, reg.Len())
}

func TestBalancedCaptureReleaseNeverDestroysRegisteredObject(t *testing.T) {
	reg := NewRegistry()
	p := &probe{}
	h := reg.Insert(p)

	for i := 0; i < 5; i++ {
		require.True(t, reg.Capture(h))
	}
	for i := 0; i < 5; i++ {
		reg.Release(h)
	}
	assert.Equal(t, 0, p.destroyed)
	got, ok := Lookup[*probe](reg, h)
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestReleaseUnderflowPanics(t *testing.T) {
	reg := NewRegistry()
	h := reg.Insert(&probe{})

	assert.PanicsWithError(t, "ownership count underflow: handle "+h.String(), func() {
		reg.Release(h)
	})
}

func TestStaleHandleDoesNotAliasReusedSlot(t *testing.T) {
	reg := NewRegistry()
	first := reg.Insert(&probe{name: "first"})
	require.True(t, reg.Delete(first))

	second := reg.Insert(&probe{name: "second"})
	require.NotEqual(t, first, second)

	_, ok := reg.Get(first)
	assert.False(t, ok, "stale handle resolved after slot reuse")
	p, ok := Lookup[*probe](reg, second)
	require.True(t, ok)
	assert.Equal(t, "second", p.name)
	assert.False(t, reg.Capture(first))
}

func TestAcquireAndRefRelease(t *testing.T) {
	reg := NewRegistry()
	p := &probe{}
	h := reg.Insert(p)

	ref, ok := Acquire[*probe](reg, h)
	require.True(t, ok)
	assert.True(t, ref.Valid())
	assert.Equal(t, h, ref.Handle())
	assert.Equal(t, 1, reg.Captures(h))

	require.True(t, reg.Delete(h))
	assert.Equal(t, 0, p.destroyed)

	ref.Release()
	ref.Release()
	assert.Equal(t, 1, p.destroyed)

	_, ok = Acquire[*other](reg, reg.Insert(&probe{}))
	assert.False(t, ok)
}

type holder struct {
	dep Ref[*probe]
}

func (h *holder) Destroy() { h.dep.Release() }

func TestClearTearsDownHoldersBeforeDependencies(t *testing.T) {
	reg := NewRegistry()
	p := &probe{}
	ph := reg.Insert(p)
	ref, ok := Acquire[*probe](reg, ph)
	require.True(t, ok)
	reg.Insert(&holder{dep: ref})

	var destroyed []Handle
	reg.OnDestroy(func(h Handle, _ any) { destroyed = append(destroyed, h) })

	reg.Clear()
	assert.Equal(t, 1, p.destroyed)
	assert.Equal(t, 0, reg.Len())
	assert.Len(t, destroyed, 2)
	assert.Empty(t, reg.Handles())
}
