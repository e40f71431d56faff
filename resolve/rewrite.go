/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"bytes"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/upstream"
)

// rewrite turns the client's operation into the operation actually sent
// upstream: extension fields are replaced by their registered fragments,
// fragment spreads and inline fragments are flattened, and selections that
// end up naming the same response key are merged.  The result is always a
// valid operation on the bare upstream schema.
func (rr *RequestResolver) rewrite(op *schema.Operation) *upstream.Request {
	root := rr.rootType(op)

	doc := &ast.QueryDocument{
		Operations: ast.OperationList{{
			Operation:           op.Def().Operation,
			Name:                op.Def().Name,
			VariableDefinitions: op.Def().VariableDefinitions,
			SelectionSet:        rr.rewriteSelection(root, op.Def().SelectionSet, op.Doc().Fragments),
		}},
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)

	return &upstream.Request{
		Query:         buf.String(),
		OperationName: op.Def().Name,
		Variables:     op.Vars(),
		Header:        op.Header(),
	}
}

// rewriteSelection flattens and rewrites one selection level on the given
// parent type.  Extension fields never reach the output; the raw upstream
// fields their resolvers read are injected in their place and merged with
// whatever the client selected directly.
func (rr *RequestResolver) rewriteSelection(parent *ast.Definition, sel ast.SelectionSet,
	frags ast.FragmentDefinitionList) ast.SelectionSet {

	type slot struct {
		field    *ast.Field
		children ast.SelectionSet
	}
	var order []string
	slots := map[string]*slot{}

	add := func(f *ast.Field) {
		key := f.Alias
		if key == "" {
			key = f.Name
		}
		s, ok := slots[key]
		if !ok {
			s = &slot{field: &ast.Field{Alias: f.Alias, Name: f.Name, Arguments: f.Arguments}}
			slots[key] = s
			order = append(order, key)
		}
		s.children = append(s.children, f.SelectionSet...)
	}

	var walk func(sel ast.SelectionSet)
	walk = func(sel ast.SelectionSet) {
		for _, s := range sel {
			switch f := s.(type) {
			case *ast.Field:
				if _, fragSel, ok := rr.schema.Extension(parent.Name, f.Name); ok {
					// The fragment is a plain field selection on parent,
					// validated at composition time.
					walk(fragSel)
					continue
				}
				add(f)
			case *ast.InlineFragment:
				walk(f.SelectionSet)
			case *ast.FragmentSpread:
				if def := frags.ForName(f.Name); def != nil {
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(sel)

	out := make(ast.SelectionSet, 0, len(order))
	for _, key := range order {
		s := slots[key]
		if len(s.children) > 0 {
			def := parent.Fields.ForName(s.field.Name)
			child := rr.schema.AST().Types[def.Type.Name()]
			s.field.SelectionSet = rr.rewriteSelection(child, s.children, frags)
		}
		out = append(out, s.field)
	}
	return out
}
