package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestObject_DeclaredFieldRoundTrip(t *testing.T) {
	t.Parallel()

	obj := New("runtime", map[string]any{"test": nil, "workers": 4})

	require.NoError(t, obj.Set("test", "v1"))
	got, err := obj.Get("test")
	require.NoError(t, err)
	require.Equal(t, "v1", got, "a write must be immediately observable by a subsequent read")

	// Values are untyped: any type may replace any other.
	require.NoError(t, obj.Set("test", 42))
	got, err = obj.Get("test")
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestObject_DefaultsVisibleBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	obj := New("runtime", map[string]any{"workers": 4, "name": nil})

	got, err := obj.Get("workers")
	require.NoError(t, err)
	require.Equal(t, 4, got)

	got, err = obj.Get("name")
	require.NoError(t, err)
	require.Nil(t, got, "a field declared without a value defaults to nil")
}

func TestObject_UnknownFieldWrite(t *testing.T) {
	t.Parallel()

	obj := New("runtime", map[string]any{"test": nil})

	err := obj.Set("test1", "x")
	require.Error(t, err)

	var ufe *UnknownFieldError
	require.True(t, errors.As(err, &ufe), "error must be an UnknownFieldError")
	require.Equal(t, "test1", ufe.Field, "the error must name the offending field")
	require.Equal(t, "runtime", ufe.Object, "the error must name the object")

	// The failed write must not have changed anything.
	got, err := obj.Get("test")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestObject_UnknownFieldRead(t *testing.T) {
	t.Parallel()

	obj := New("runtime", map[string]any{"test": nil})

	_, err := obj.Get("nope")
	var ufe *UnknownFieldError
	require.True(t, errors.As(err, &ufe), "reads of undeclared names fail with the same error kind as writes")
	require.Equal(t, "nope", ufe.Field)
}

func TestObject_FieldsSortedAndStable(t *testing.T) {
	t.Parallel()

	obj := New("runtime", map[string]any{"b": 1, "a": 2, "c": 3})
	require.Equal(t, []string{"a", "b", "c"}, obj.Fields())

	// Writing values never changes the schema.
	require.NoError(t, obj.Set("b", "changed"))
	require.Equal(t, []string{"a", "b", "c"}, obj.Fields())
}

func TestObject_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	obj := New("runtime", map[string]any{"a": 1})
	snap := obj.Snapshot()
	snap["a"] = 99

	got, err := obj.Get("a")
	require.NoError(t, err)
	require.Equal(t, 1, got, "mutating a snapshot must not affect the object")
}

func TestNew_CopiesInitialFields(t *testing.T) {
	t.Parallel()

	initial := map[string]any{"a": 1}
	obj := New("runtime", initial)
	initial["b"] = 2

	require.False(t, obj.Has("b"), "mutating the caller's map after construction must not widen the schema")
	if diff := cmp.Diff(map[string]any{"a": 1}, obj.Snapshot()); diff != "" {
		t.Errorf("unexpected snapshot (-want +got):\n%s", diff)
	}
}
