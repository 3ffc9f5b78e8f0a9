// Package schemafile reads the schema declaration handed to a composition
// run: the embedding application's single place to fix the sealed field set
// and its defaults before any module executes.
//
//	schema "runtime" {
//	  field "test" {}
//	  field "workers" { default = 4 }
//	}
package schemafile

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/confgrid/internal/ctxlog"
	"github.com/vk/confgrid/internal/ctyconv"
	"github.com/vk/confgrid/internal/schema"
)

// Load parses the schema declaration file at path and constructs the sealed
// configuration object it declares. A field without a default starts nil.
func Load(ctx context.Context, path string) (*schema.Object, error) {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	file, diags := hclsyntax.ParseConfig(src, path, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, diags)
	}
	body := file.Body.(*hclsyntax.Body)

	for name, attr := range body.Attributes {
		return nil, fmt.Errorf("%s: unexpected top-level attribute %q in schema file", attr.SrcRange, name)
	}

	var block *hclsyntax.Block
	for _, b := range body.Blocks {
		if b.Type != "schema" {
			return nil, fmt.Errorf("%s: unsupported block type %q in schema file", b.DefRange(), b.Type)
		}
		if block != nil {
			return nil, fmt.Errorf("%s: duplicate schema block; a schema file declares exactly one object", b.DefRange())
		}
		block = b
	}
	if block == nil {
		return nil, fmt.Errorf("schema file %s declares no schema block", path)
	}
	if len(block.Labels) != 1 {
		return nil, fmt.Errorf("%s: schema block requires exactly one name label", block.DefRange())
	}

	fields, err := declaredFields(block)
	if err != nil {
		return nil, err
	}

	logger.Debug("Schema declaration loaded.", "object", block.Labels[0], "fields", len(fields))
	return schema.New(block.Labels[0], fields), nil
}

// declaredFields collects the field blocks of a schema block into the
// name-to-default mapping handed to schema.New. Defaults must be constant
// expressions; no configuration exists yet to reference.
func declaredFields(block *hclsyntax.Block) (map[string]any, error) {
	for name, attr := range block.Body.Attributes {
		return nil, fmt.Errorf("%s: unexpected attribute %q in schema block", attr.SrcRange, name)
	}

	fields := make(map[string]any)
	for _, fb := range block.Body.Blocks {
		if fb.Type != "field" {
			return nil, fmt.Errorf("%s: unsupported block type %q in schema block", fb.DefRange(), fb.Type)
		}
		if len(fb.Labels) != 1 {
			return nil, fmt.Errorf("%s: field block requires exactly one name label", fb.DefRange())
		}
		name := fb.Labels[0]
		if _, exists := fields[name]; exists {
			return nil, fmt.Errorf("%s: field %q declared twice", fb.DefRange(), name)
		}

		var def any
		for attrName, attr := range fb.Body.Attributes {
			if attrName != "default" {
				return nil, fmt.Errorf("%s: unexpected attribute %q in field block", attr.SrcRange, attrName)
			}
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to evaluate default for field %q: %w", name, diags)
			}
			native, err := ctyconv.ToNative(val)
			if err != nil {
				return nil, fmt.Errorf("default for field %q: %w", name, err)
			}
			def = native
		}
		if len(fb.Body.Blocks) != 0 {
			return nil, fmt.Errorf("%s: field block must contain only a default attribute", fb.Body.Blocks[0].DefRange())
		}
		fields[name] = def
	}
	return fields, nil
}
