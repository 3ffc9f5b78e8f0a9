// Package schema implements the sealed configuration object that a
// composition run mutates. The set of addressable fields is fixed when the
// object is constructed; field values stay freely mutable for the object's
// whole lifetime. There is deliberately no way to add or remove a field
// after construction.
package schema

import (
	"fmt"
	"sort"
)

// Object is a configuration object with a sealed field set. The zero value
// is not usable; construct one with New.
type Object struct {
	name   string
	fields map[string]any
}

// New constructs an Object whose schema is exactly the key set of fields.
// The given values become the field defaults. The map is copied, so the
// caller may reuse it.
func New(name string, fields map[string]any) *Object {
	vals := make(map[string]any, len(fields))
	for k, v := range fields {
		vals[k] = v
	}
	return &Object{name: name, fields: vals}
}

// Name returns the identity the object was constructed with. It appears in
// UnknownFieldError messages so failures are attributable when an
// application composes more than one object.
func (o *Object) Name() string {
	return o.name
}

// Has reports whether field is part of the sealed schema.
func (o *Object) Has(field string) bool {
	_, ok := o.fields[field]
	return ok
}

// Set stores value under field. Any value type is accepted; only the field
// name is checked against the schema.
func (o *Object) Set(field string, value any) error {
	if _, ok := o.fields[field]; !ok {
		return &UnknownFieldError{Object: o.name, Field: field}
	}
	o.fields[field] = value
	return nil
}

// Get returns the current value of a declared field.
func (o *Object) Get(field string) (any, error) {
	v, ok := o.fields[field]
	if !ok {
		return nil, &UnknownFieldError{Object: o.name, Field: field}
	}
	return v, nil
}

// Fields returns the declared field names in sorted order.
func (o *Object) Fields() []string {
	names := make([]string, 0, len(o.fields))
	for k := range o.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the current field values. Mutating the
// returned map does not affect the object.
func (o *Object) Snapshot() map[string]any {
	vals := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		vals[k] = v
	}
	return vals
}

// UnknownFieldError reports an access to a field name that is not part of
// an object's sealed schema. The loader wraps it with module and entry
// point attribution before it reaches the caller.
type UnknownFieldError struct {
	// Object is the identity of the configuration object.
	Object string
	// Field is the offending field name.
	Field string
}

// Error implements the error interface.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on configuration object %q", e.Field, e.Object)
}
