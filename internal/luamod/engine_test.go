package luamod_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/confgrid/internal/loader"
	"github.com/vk/confgrid/internal/schema"
	"github.com/vk/confgrid/internal/testutil"
)

func TestLua_EntrypointWritesField(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint(function(config)
			  config.test = "v1"
			end)
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"test": nil}, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	got, err := result.Object.Get("test")
	require.NoError(t, err)
	require.Equal(t, "v1", got)
}

func TestLua_TwoEntrypointsLastWriteWins(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint("e1", function(config)
			  config.test = "a"
			end)
			entrypoint("e2", function(config)
			  config.test = "b"
			end)
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"test": nil}, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	got, _ := result.Object.Get("test")
	require.Equal(t, "b", got)
}

func TestLua_EntrypointReadsEarlierWrites(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint(function(config)
			  config.workers = 4
			end)
			entrypoint(function(config)
			  config.workers = config.workers * 2
			end)
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"workers": nil}, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	got, _ := result.Object.Get("workers")
	require.Equal(t, int64(8), got)
}

func TestLua_UnknownFieldWriteIsTyped(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint("bad", function(config)
			  config.test1 = "x"
			end)
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"test": nil}, files, []string{"main.lua"})
	require.Error(t, result.Err)

	var ufe *schema.UnknownFieldError
	require.True(t, errors.As(result.Err, &ufe), "the sealed-schema error must survive the interpreter boundary")
	require.Equal(t, "test1", ufe.Field)

	var epErr *loader.EntryPointError
	require.True(t, errors.As(result.Err, &epErr))
	require.Equal(t, "bad", epErr.Name)
}

func TestLua_UnknownFieldReadInBody(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			local x = config.missing
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"test": nil}, files, []string{"main.lua"})
	require.Error(t, result.Err)

	var ufe *schema.UnknownFieldError
	require.True(t, errors.As(result.Err, &ufe))
	var modErr *loader.ModuleError
	require.True(t, errors.As(result.Err, &modErr), "a body-time fault is a module execution error")
}

func TestLua_AddModulesStringAndTable(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			add_modules("one.lua")
			add_modules{"two.lua", "three.lua"}
		`,
		"one.lua":   `entrypoint(function(config) config.trace = config.trace .. "1" end)`,
		"two.lua":   `entrypoint(function(config) config.trace = config.trace .. "2" end)`,
		"three.lua": `entrypoint(function(config) config.trace = config.trace .. "3" end)`,
	}

	result := testutil.RunComposition(t, map[string]any{"trace": ""}, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	got, _ := result.Object.Get("trace")
	require.Equal(t, "123", got)
}

func TestLua_AddModulesInsideEntrypoint(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint(function(config)
			  config.trace = "main"
			  add_modules("late.lua")
			end)
		`,
		"late.lua": `
			entrypoint(function(config)
			  config.trace = config.trace .. "+late"
			end)
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"trace": nil}, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	got, _ := result.Object.Get("trace")
	require.Equal(t, "main+late", got, "entry points may call back into the loader within the same session")
}

func TestLua_DefaultEntrypointNames(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint(function(config) end)
			entrypoint(function(config) error("second fails") end)
		`,
	}

	result := testutil.RunComposition(t, map[string]any{}, files, []string{"main.lua"})
	require.Error(t, result.Err)

	var epErr *loader.EntryPointError
	require.True(t, errors.As(result.Err, &epErr))
	require.Equal(t, "entrypoint#2", epErr.Name, "unnamed entry points get order-derived names")
}

func TestLua_ScriptErrorInBody(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `error("body exploded")`,
	}

	result := testutil.RunComposition(t, map[string]any{}, files, []string{"main.lua"})
	require.Error(t, result.Err)

	var modErr *loader.ModuleError
	require.True(t, errors.As(result.Err, &modErr))
	require.Contains(t, result.Err.Error(), "body exploded")
}

func TestLua_ValueBridging(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			entrypoint(function(config)
			  config.flag  = true
			  config.count = 3
			  config.ratio = 0.5
			  config.tags  = {"a", "b"}
			  config.limits = {cpu = 2, mem = 512}
			  config.cleared = nil
			end)
		`,
	}

	fields := map[string]any{
		"flag": nil, "count": nil, "ratio": nil,
		"tags": nil, "limits": nil, "cleared": "preset",
	}
	result := testutil.RunComposition(t, fields, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	snap := result.Object.Snapshot()
	require.Equal(t, true, snap["flag"])
	require.Equal(t, int64(3), snap["count"])
	require.Equal(t, 0.5, snap["ratio"])
	require.Equal(t, []any{"a", "b"}, snap["tags"])
	require.Equal(t, map[string]any{"cpu": int64(2), "mem": int64(512)}, snap["limits"])
	require.Nil(t, snap["cleared"], "assigning nil clears the value, not the field")
}

func TestLua_BodyCanReadDefaults(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.lua": `
			if config.mode == "dev" then
			  entrypoint(function(config)
			    config.verbose = true
			  end)
			end
		`,
	}

	result := testutil.RunComposition(t, map[string]any{"mode": "dev", "verbose": false}, files, []string{"main.lua"})
	require.NoError(t, result.Err)

	got, _ := result.Object.Get("verbose")
	require.Equal(t, true, got, "module bodies may branch on current configuration values")
}
