// Package luamod implements the Lua module format: a module file is an
// executable Lua script run in its own interpreter state. The body sees
// three things from the host: the `config` userdata whose reads and writes
// go through the sealed schema accessors, the `entrypoint` function for
// marking configuration entry points, and `add_modules` for nested
// inclusion relative to the module's own directory.
//
//	add_modules{"base.lua"}
//
//	entrypoint("defaults", function(config)
//	  config.workers = config.workers + 2
//	end)
package luamod

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Shopify/go-lua"

	"github.com/vk/confgrid/internal/loader"
	"github.com/vk/confgrid/internal/schema"
)

const (
	// configTypeName is the metatable name for the config userdata.
	configTypeName = "confgrid.config"
	// entryTableKey is the registry slot holding marked entry point functions.
	entryTableKey = "confgrid.entrypoints"
)

// Engine implements loader.Engine for .lua module files.
type Engine struct{}

// New creates the Lua module engine.
func New() *Engine {
	return &Engine{}
}

// Extensions implements loader.Engine.
func (e *Engine) Extensions() []string {
	return []string{".lua"}
}

// Execute runs the module body in a fresh interpreter state. The state
// stays reachable through the entry point closures marked during the body,
// which the loader invokes immediately after Execute returns.
func (e *Engine) Execute(ctx context.Context, mod *loader.ModuleContext) error {
	state := lua.NewState()
	lua.OpenLibraries(state)

	run := &moduleRun{mod: mod, state: state, ctx: ctx}
	run.install()

	if err := state.Load(bytes.NewReader(mod.Source), "@"+mod.Path, ""); err != nil {
		return run.surface(err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return run.surface(err)
	}
	return nil
}

// moduleRun is the host side of one module execution: the interpreter
// state, the loader grants, and the typed Go error carried across the
// protected-call boundary when a host callback raises.
type moduleRun struct {
	mod     *loader.ModuleContext
	state   *lua.State
	ctx     context.Context
	entries int
	pending error
}

// install registers the config userdata and the entrypoint/add_modules
// globals in the run's interpreter state.
func (r *moduleRun) install() {
	state := r.state

	lua.NewMetaTable(state, configTypeName)
	state.PushGoFunction(r.configIndex)
	state.SetField(-2, "__index")
	state.PushGoFunction(r.configNewIndex)
	state.SetField(-2, "__newindex")
	state.Pop(1)

	state.PushUserData(r.mod.Object)
	lua.SetMetaTableNamed(state, configTypeName)
	state.SetGlobal("config")

	state.NewTable()
	state.SetField(lua.RegistryIndex, entryTableKey)

	state.PushGoFunction(r.luaEntrypoint)
	state.SetGlobal("entrypoint")
	state.PushGoFunction(r.luaAddModules)
	state.SetGlobal("add_modules")
}

// surface prefers the typed Go error remembered by raise over the
// stringified Lua error the protected call reports.
func (r *moduleRun) surface(err error) error {
	if r.pending != nil {
		return r.pending
	}
	return err
}

// raise remembers err so the host sees it typed, then aborts the running
// Lua code. It never returns.
func (r *moduleRun) raise(state *lua.State, err error) int {
	r.pending = err
	lua.Errorf(state, "%s", err.Error())
	return 0
}

// configIndex is the __index metamethod: a read of a declared field.
func (r *moduleRun) configIndex(state *lua.State) int {
	field := lua.CheckString(state, 2)
	v, err := r.mod.Object.Get(field)
	if err != nil {
		return r.raise(state, err)
	}
	if err := pushNative(state, v); err != nil {
		return r.raise(state, fmt.Errorf("field %q: %w", field, err))
	}
	return 1
}

// configNewIndex is the __newindex metamethod: a write through the sealed
// accessor. Writes to undeclared names abort the module.
func (r *moduleRun) configNewIndex(state *lua.State) int {
	field := lua.CheckString(state, 2)
	v, err := toNative(state, 3)
	if err != nil {
		return r.raise(state, fmt.Errorf("field %q: %w", field, err))
	}
	if err := r.mod.Object.Set(field, v); err != nil {
		return r.raise(state, err)
	}
	return 0
}

// luaEntrypoint implements entrypoint([name,] fn). The function value is
// parked in the interpreter registry; the mark handed to the loader is a
// closure that calls it back with the config object.
func (r *moduleRun) luaEntrypoint(state *lua.State) int {
	name := ""
	fnIndex := 1
	if state.TypeOf(1) == lua.TypeString {
		name = lua.CheckString(state, 1)
		fnIndex = 2
	}
	if state.TypeOf(fnIndex) != lua.TypeFunction {
		lua.Errorf(state, "entrypoint expects a function")
	}
	if r.mod.Collector.Sealed() {
		return r.raise(state, fmt.Errorf("entrypoint called after module %s finished executing", r.mod.Path))
	}

	r.entries++
	slot := r.entries
	if name == "" {
		name = fmt.Sprintf("entrypoint#%d", slot)
	}

	state.Field(lua.RegistryIndex, entryTableKey)
	state.PushValue(fnIndex)
	state.RawSetInt(-2, slot)
	state.Pop(1)

	r.mod.Collector.Add(name, func(ctx context.Context, obj *schema.Object) error {
		return r.invoke(ctx, slot)
	})
	return 0
}

// invoke calls a parked entry point function with the config userdata. The
// caller's context replaces the run's current one for the duration, so
// add_modules inside the entry point loads under the invoking context.
func (r *moduleRun) invoke(ctx context.Context, slot int) error {
	prev := r.ctx
	r.ctx = ctx
	defer func() { r.ctx = prev }()

	state := r.state
	state.Field(lua.RegistryIndex, entryTableKey)
	state.RawGetInt(-1, slot)
	state.Remove(-2)
	state.Global("config")

	r.pending = nil
	if err := state.ProtectedCall(1, 0, 0); err != nil {
		return r.surface(err)
	}
	return nil
}

// luaAddModules implements add_modules(path) and add_modules{paths...}.
// Paths resolve against the module's own directory; already-visited
// modules are skipped silently by the loader.
func (r *moduleRun) luaAddModules(state *lua.State) int {
	var paths []string
	switch state.TypeOf(1) {
	case lua.TypeString:
		paths = append(paths, lua.CheckString(state, 1))
	case lua.TypeTable:
		n, ok := sequenceLength(state, 1)
		if !ok {
			lua.Errorf(state, "add_modules expects a sequence of paths")
		}
		for i := 1; i <= n; i++ {
			state.RawGetInt(1, i)
			if state.TypeOf(-1) != lua.TypeString {
				lua.Errorf(state, "add_modules: element %d is not a string", i)
			}
			s, _ := state.ToString(-1)
			state.Pop(1)
			paths = append(paths, s)
		}
	default:
		lua.Errorf(state, "add_modules expects a path or a table of paths")
	}

	if err := r.mod.Include(r.ctx, paths); err != nil {
		return r.raise(state, err)
	}
	return 0
}
