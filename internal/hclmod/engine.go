// Package hclmod implements the HCL module format: a restrained expression
// DSL for module bodies that never needs a general-purpose interpreter. A
// module file consists of `include` blocks, processed at body-execution
// time, and `entrypoint` blocks, each of which becomes one entry point
// whose attributes are evaluated against the live configuration object
// when the entry point is invoked.
//
//	include {
//	  paths = ["base.hcl"]
//	}
//
//	entrypoint "defaults" {
//	  workers = config.workers + 2
//	}
package hclmod

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/confgrid/internal/ctyconv"
	"github.com/vk/confgrid/internal/loader"
	"github.com/vk/confgrid/internal/schema"
)

// Engine implements loader.Engine for .hcl module files.
type Engine struct{}

// New creates the HCL module engine.
func New() *Engine {
	return &Engine{}
}

// Extensions implements loader.Engine.
func (e *Engine) Extensions() []string {
	return []string{".hcl"}
}

// Execute parses the module file and walks its top-level blocks in source
// order: includes load immediately, entrypoint blocks are marked for later
// invocation.
func (e *Engine) Execute(ctx context.Context, mod *loader.ModuleContext) error {
	file, diags := hclsyntax.ParseConfig(mod.Source, mod.Path, hcl.InitialPos)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL module: %w", diags)
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		// ParseConfig always yields a *hclsyntax.Body; guard anyway.
		return fmt.Errorf("unexpected HCL body type %T", file.Body)
	}

	for name, attr := range body.Attributes {
		return fmt.Errorf("%s: unexpected top-level attribute %q; only include and entrypoint blocks are allowed", attr.SrcRange, name)
	}

	for _, block := range body.Blocks {
		switch block.Type {
		case "include":
			paths, err := includePaths(block)
			if err != nil {
				return err
			}
			if err := mod.Include(ctx, paths); err != nil {
				return err
			}

		case "entrypoint":
			if len(block.Labels) != 1 {
				return fmt.Errorf("%s: entrypoint block requires exactly one name label", block.DefRange())
			}
			if len(block.Body.Blocks) != 0 {
				return fmt.Errorf("%s: entrypoint block must contain only attributes", block.Body.Blocks[0].DefRange())
			}
			blk := block
			mod.Collector.Add(block.Labels[0], func(ctx context.Context, obj *schema.Object) error {
				return applyEntrypoint(blk, obj)
			})

		default:
			return fmt.Errorf("%s: unsupported block type %q", block.DefRange(), block.Type)
		}
	}

	return nil
}

// includePaths evaluates the `paths` attribute of an include block. Paths
// must be constant expressions; they resolve against the including module's
// directory, not the process working directory.
func includePaths(block *hclsyntax.Block) ([]string, error) {
	if len(block.Labels) != 0 {
		return nil, fmt.Errorf("%s: include block takes no labels", block.DefRange())
	}
	attr, ok := block.Body.Attributes["paths"]
	if !ok {
		return nil, fmt.Errorf("%s: include block requires a paths attribute", block.DefRange())
	}
	for name, extra := range block.Body.Attributes {
		if name != "paths" {
			return nil, fmt.Errorf("%s: unexpected attribute %q in include block", extra.SrcRange, name)
		}
	}

	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate include paths: %w", diags)
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("%s: paths must be a list of strings", attr.SrcRange)
	}

	var paths []string
	for it := val.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.Type() != cty.String || ev.IsNull() {
			return nil, fmt.Errorf("%s: paths must be a list of strings", attr.SrcRange)
		}
		paths = append(paths, ev.AsString())
	}
	return paths, nil
}

// applyEntrypoint evaluates the block's attributes in source order against
// an EvalContext exposing the object's current values as `config`, writing
// each result back through the sealed accessor. The config variable is
// rebuilt after every write so later attributes observe earlier ones.
func applyEntrypoint(block *hclsyntax.Block, obj *schema.Object) error {
	attrs := orderedAttributes(block.Body)

	for _, attr := range attrs {
		configVal, err := objectValue(obj)
		if err != nil {
			return err
		}
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{"config": configVal},
		}

		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("failed to evaluate attribute %q: %w", attr.Name, diags)
		}
		native, err := ctyconv.ToNative(val)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		if err := obj.Set(attr.Name, native); err != nil {
			return err
		}
	}
	return nil
}

// orderedAttributes returns a body's attributes sorted by source position,
// restoring the write order the module author laid out.
func orderedAttributes(body *hclsyntax.Body) []*hclsyntax.Attribute {
	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, attr := range body.Attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})
	return attrs
}

// objectValue materializes the object's current field values as a single
// cty object for expression evaluation.
func objectValue(obj *schema.Object) (cty.Value, error) {
	snapshot := obj.Snapshot()
	if len(snapshot) == 0 {
		return cty.EmptyObjectVal, nil
	}
	attrs := make(map[string]cty.Value, len(snapshot))
	for name, v := range snapshot {
		cv, err := ctyconv.FromNative(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("field %q: %w", name, err)
		}
		attrs[name] = cv
	}
	return cty.ObjectVal(attrs), nil
}
