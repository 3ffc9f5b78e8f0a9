package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/confgrid/internal/schema"
)

func noop(context.Context, *schema.Object) error { return nil }

func TestCollector_RecordsDeclarationOrder(t *testing.T) {
	t.Parallel()

	reg := New()
	c := reg.Begin("/mods/a.lua")
	c.Add("first", noop)
	c.Add("second", noop)
	c.Add("third", noop)
	entries := c.Done()

	require.Len(t, entries, 3)
	for i, name := range []string{"first", "second", "third"} {
		require.Equal(t, name, entries[i].Name)
		require.Equal(t, i, entries[i].Index, "Index must capture declaration order")
	}

	require.Equal(t, entries, reg.EntriesFor("/mods/a.lua"), "EntriesFor must return the sealed marks")
}

func TestCollector_SealedAfterDone(t *testing.T) {
	t.Parallel()

	reg := New()
	c := reg.Begin("/mods/a.lua")
	c.Done()

	require.True(t, c.Sealed())
	require.Panics(t, func() { c.Add("late", noop) }, "marking after the execution window must panic")
}

func TestRegistry_BeginTwicePanics(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Begin("/mods/a.lua").Done()

	require.Panics(t, func() { reg.Begin("/mods/a.lua") }, "a module body executes at most once per session")
}

func TestRegistry_EntriesForUnknownModule(t *testing.T) {
	t.Parallel()

	reg := New()
	require.Nil(t, reg.EntriesFor("/never/loaded.lua"))
}

func TestRegistry_WindowsAreIndependentAcrossModules(t *testing.T) {
	t.Parallel()

	reg := New()

	// Nested inclusion opens a second window while the first is still open.
	outer := reg.Begin("/mods/outer.lua")
	outer.Add("outer-1", noop)
	inner := reg.Begin("/mods/inner.lua")
	inner.Add("inner-1", noop)
	inner.Done()
	outer.Add("outer-2", noop)
	outer.Done()

	require.Len(t, reg.EntriesFor("/mods/outer.lua"), 2)
	require.Len(t, reg.EntriesFor("/mods/inner.lua"), 1)
}
