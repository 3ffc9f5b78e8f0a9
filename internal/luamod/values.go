package luamod

import (
	"fmt"

	"github.com/Shopify/go-lua"
)

// pushNative pushes a configuration field value onto the Lua stack.
// Collections are the []any and map[string]any shapes the engines produce.
func pushNative(state *lua.State, v any) error {
	switch tv := v.(type) {
	case nil:
		state.PushNil()
	case bool:
		state.PushBoolean(tv)
	case string:
		state.PushString(tv)
	case int:
		state.PushInteger(tv)
	case int64:
		state.PushInteger(int(tv))
	case float64:
		state.PushNumber(tv)
	case []any:
		state.NewTable()
		for i, elem := range tv {
			if err := pushNative(state, elem); err != nil {
				state.Pop(1)
				return err
			}
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.NewTable()
		for k, elem := range tv {
			if err := pushNative(state, elem); err != nil {
				state.Pop(1)
				return err
			}
			state.SetField(-2, k)
		}
	default:
		return fmt.Errorf("value of type %T cannot be exposed to Lua", v)
	}
	return nil
}

// toNative converts the Lua value at index into its plain Go
// representation: nil, bool, string, int64 or float64, []any, or
// map[string]any.
func toNative(state *lua.State, index int) (any, error) {
	switch state.TypeOf(index) {
	case lua.TypeNil:
		return nil, nil
	case lua.TypeBoolean:
		return state.ToBoolean(index), nil
	case lua.TypeNumber:
		f, _ := state.ToNumber(index)
		if i := int64(f); float64(i) == f {
			return i, nil
		}
		return f, nil
	case lua.TypeString:
		s, _ := state.ToString(index)
		return s, nil
	case lua.TypeTable:
		return tableToNative(state, index)
	default:
		return nil, fmt.Errorf("lua %s values cannot be stored in a configuration field", lua.TypeNameOf(state, index))
	}
}

// tableToNative converts a table with sequential integer keys into a
// slice, and any other table into a string-keyed map.
func tableToNative(state *lua.State, index int) (any, error) {
	idx := state.AbsIndex(index)

	if n, ok := sequenceLength(state, idx); ok && n > 0 {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			state.RawGetInt(idx, i)
			elem, err := toNative(state, -1)
			state.Pop(1)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	}

	out := make(map[string]any)
	state.PushNil()
	for state.Next(idx) {
		if state.TypeOf(-2) != lua.TypeString {
			state.Pop(2)
			return nil, fmt.Errorf("table keys must be strings")
		}
		key, _ := state.ToString(-2)
		elem, err := toNative(state, -1)
		if err != nil {
			state.Pop(2)
			return nil, err
		}
		out[key] = elem
		state.Pop(1)
	}
	return out, nil
}

// sequenceLength reports whether the table at index is a dense 1..n
// sequence, and n when it is.
func sequenceLength(state *lua.State, index int) (int, bool) {
	maxIndex, count := 0, 0
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) != lua.TypeNumber {
			state.Pop(2)
			return 0, false
		}
		i, ok := state.ToInteger(-2)
		if !ok || i < 1 {
			state.Pop(2)
			return 0, false
		}
		count++
		if i > maxIndex {
			maxIndex = i
		}
		state.Pop(1)
	}
	if maxIndex != count {
		return 0, false
	}
	return count, true
}
