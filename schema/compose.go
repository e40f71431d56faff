/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package schema composes the borrowed upstream schema with the wrapper's
// extension fields into one executable schema, and carries the GraphQL
// request/response model used by the resolver.
package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/derive"
)

// ErrComposition marks an extension field that names a type or field the
// upstream schema doesn't have.  Composition runs eagerly at startup; this
// error must never surface at query time.
var ErrComposition = errors.New("schema composition failed")

// extension binds one registered field to its parsed fragment selection.
type extension struct {
	spec      derive.FieldSpec
	selection ast.SelectionSet
}

// Schema is the composed, executable schema: the upstream types plus the
// extension fields, with a lookup from (type, field) to the registered
// fragment and resolver.
type Schema struct {
	schema     *ast.Schema
	extensions map[string]map[string]*extension
}

// AST exposes the underlying gqlparser schema.
func (s *Schema) AST() *ast.Schema {
	return s.schema
}

// Extension looks up the registration for typeName.fieldName.  The second
// result is the parsed fragment selection that must be fetched upstream
// before the resolver can run.
func (s *Schema) Extension(typeName, fieldName string) (derive.FieldSpec, ast.SelectionSet, bool) {
	ext, ok := s.extensions[typeName][fieldName]
	if !ok {
		return derive.FieldSpec{}, nil, false
	}
	return ext.spec, ext.selection, true
}

// ExtensionSDL renders the extension declarations generated from the field
// registry: the Decimal scalar plus one extend block per upstream type.
// Decimal serializes as a decimal string, never a native float.
func ExtensionSDL(fields []derive.FieldSpec) string {
	var b strings.Builder
	b.WriteString("scalar Decimal\n")

	var order []string
	byParent := map[string][]derive.FieldSpec{}
	for _, spec := range fields {
		if _, ok := byParent[spec.Parent]; !ok {
			order = append(order, spec.Parent)
		}
		byParent[spec.Parent] = append(byParent[spec.Parent], spec)
	}

	for _, parent := range order {
		fmt.Fprintf(&b, "extend type %s {\n", parent)
		for _, spec := range byParent[parent] {
			fmt.Fprintf(&b, "\t%s: %s\n", spec.Name, spec.Type)
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// Compose merges the upstream SDL with the extension declarations built
// from fields, attaching each field's fragment and resolver.  Upstream
// fields are extended, never replaced or shadowed.  Any reference to a
// type or field the upstream schema doesn't have fails with ErrComposition.
func Compose(upstreamSDL string, fields []derive.FieldSpec) (*Schema, error) {
	upstreamSource := &ast.Source{Name: "upstream.graphql", Input: upstreamSDL}

	upstream, err := gqlparser.LoadSchema(upstreamSource)
	if err != nil {
		return nil, errors.Wrapf(ErrComposition, "invalid upstream schema: %v", err)
	}

	extensions := map[string]map[string]*extension{}
	for _, spec := range fields {
		parent, ok := upstream.Types[spec.Parent]
		if !ok {
			return nil, errors.Wrapf(ErrComposition,
				"extension field %s.%s: upstream schema has no type %s",
				spec.Parent, spec.Name, spec.Parent)
		}
		if parent.Kind != ast.Object {
			return nil, errors.Wrapf(ErrComposition,
				"extension field %s.%s: upstream type %s is not an object",
				spec.Parent, spec.Name, spec.Parent)
		}
		if parent.Fields.ForName(spec.Name) != nil {
			return nil, errors.Wrapf(ErrComposition,
				"extension field %s.%s would shadow an upstream field",
				spec.Parent, spec.Name)
		}

		selection, err := parseFragment(spec.Fragment)
		if err != nil {
			return nil, errors.Wrapf(ErrComposition,
				"extension field %s.%s: bad fragment: %v", spec.Parent, spec.Name, err)
		}
		if err := validateSelection(upstream, parent, selection); err != nil {
			return nil, errors.Wrapf(ErrComposition,
				"extension field %s.%s: %v", spec.Parent, spec.Name, err)
		}

		if extensions[spec.Parent] == nil {
			extensions[spec.Parent] = map[string]*extension{}
		}
		spec := spec
		extensions[spec.Parent][spec.Name] = &extension{spec: spec, selection: selection}
	}

	composed, err := gqlparser.LoadSchema(
		upstreamSource,
		&ast.Source{Name: "extensions.graphql", Input: ExtensionSDL(fields)},
	)
	if err != nil {
		return nil, errors.Wrapf(ErrComposition, "merging extensions: %v", err)
	}

	return &Schema{schema: composed, extensions: extensions}, nil
}

func parseFragment(fragment string) (ast.SelectionSet, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: "{" + fragment + "}"})
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 {
		return nil, errors.New("fragment must be a single selection set")
	}
	return doc.Operations[0].SelectionSet, nil
}

// validateSelection checks that every field a fragment names exists on the
// upstream type, recursively through nested selections.
func validateSelection(sch *ast.Schema, parent *ast.Definition, selection ast.SelectionSet) error {
	for _, sel := range selection {
		field, ok := sel.(*ast.Field)
		if !ok {
			return errors.New("fragments may only contain plain field selections")
		}
		def := parent.Fields.ForName(field.Name)
		if def == nil {
			return errors.Errorf("upstream type %s has no field %s", parent.Name, field.Name)
		}
		if len(field.SelectionSet) == 0 {
			continue
		}
		child, ok := sch.Types[def.Type.Name()]
		if !ok {
			return errors.Errorf("upstream schema has no type %s", def.Type.Name())
		}
		if err := validateSelection(sch, child, field.SelectionSet); err != nil {
			return err
		}
	}
	return nil
}
