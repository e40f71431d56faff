/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"bytes"
	"encoding/json"

	"github.com/golang/glog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/upstream"
)

// complete builds the response for op from the upstream execution result,
// walking the client's original selection set.  Upstream fields are copied
// through; extension fields are computed from the sibling data the rewrite
// fetched.  A failed extension field completes to null with an error at its
// path, leaving its siblings intact.
func (rr *RequestResolver) complete(op *schema.Operation, result *upstream.Result) *schema.Response {
	resp := &schema.Response{}
	resp.Errors = append(resp.Errors, result.Errors...)

	if len(result.Data) == 0 || bytes.Equal(result.Data, []byte("null")) {
		return resp
	}

	var data map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(result.Data))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		glog.Errorf("couldn't decode upstream data: %v", err)
		resp.WithError(gqlerror.Errorf("Internal error - couldn't decode the upstream response."))
		return resp
	}

	c := &completer{rr: rr, resp: resp, frags: op.Doc().Fragments}

	root := rr.rootType(op)
	for _, field := range c.collectFields(root, op.Def().SelectionSet) {
		key := responseKey(field)

		var buf bytes.Buffer
		buf.WriteString(`"`)
		buf.WriteString(key)
		buf.WriteString(`": `)
		c.completeField(&buf, ast.Path{ast.PathName(key)}, root, field, data)
		resp.AddData(buf.Bytes())
	}
	return resp
}

type completer struct {
	rr    *RequestResolver
	resp  *schema.Response
	frags ast.FragmentDefinitionList
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// collectFields flattens one selection level: fragment spreads and inline
// fragments are expanded, and selections with the same response key are
// merged with their child selections concatenated.  Deeper merging happens
// when the walk recurses.
func (c *completer) collectFields(parent *ast.Definition, sel ast.SelectionSet) []*ast.Field {
	var order []string
	merged := map[string]*ast.Field{}

	var walk func(sel ast.SelectionSet)
	walk = func(sel ast.SelectionSet) {
		for _, s := range sel {
			switch f := s.(type) {
			case *ast.Field:
				key := responseKey(f)
				if got, ok := merged[key]; ok {
					got.SelectionSet = append(got.SelectionSet, f.SelectionSet...)
					continue
				}
				cp := *f
				merged[key] = &cp
				order = append(order, key)
			case *ast.InlineFragment:
				walk(f.SelectionSet)
			case *ast.FragmentSpread:
				if def := c.frags.ForName(f.Name); def != nil {
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(sel)

	out := make([]*ast.Field, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

// completeField writes the value of one field of an object whose upstream
// data is parentData.
func (c *completer) completeField(buf *bytes.Buffer, path ast.Path,
	parent *ast.Definition, field *ast.Field, parentData map[string]interface{}) {

	if spec, _, ok := c.rr.schema.Extension(parent.Name, field.Name); ok {
		m, err := spec.Resolve(parentData)
		if err != nil {
			glog.V(2).Infof("extension field %s failed: %v", path.String(), err)
			c.resp.WithError(&gqlerror.Error{
				Message: "couldn't compute " + spec.Name + ": " + err.Error(),
				Path:    pathCopy(path),
			})
			buf.WriteString("null")
			return
		}
		if m == nil {
			buf.WriteString("null")
			return
		}
		b, err := json.Marshal(m)
		if err != nil {
			c.resp.WithError(&gqlerror.Error{Message: err.Error(), Path: pathCopy(path)})
			buf.WriteString("null")
			return
		}
		buf.Write(b)
		return
	}

	if field.Name == "__typename" {
		if name, ok := parentData["__typename"].(string); ok {
			buf.WriteString(`"` + name + `"`)
			return
		}
		buf.WriteString(`"` + parent.Name + `"`)
		return
	}

	c.completeValue(buf, path, parent.Fields.ForName(field.Name), field,
		parentData[responseKey(field)])
}

// completeValue writes one upstream value, recursing through lists and
// objects so nested extension fields get computed.
func (c *completer) completeValue(buf *bytes.Buffer, path ast.Path,
	def *ast.FieldDefinition, field *ast.Field, val interface{}) {

	switch v := val.(type) {
	case nil:
		buf.WriteString("null")

	case []interface{}:
		buf.WriteString("[")
		for i, item := range v {
			if i != 0 {
				buf.WriteString(", ")
			}
			c.completeValue(buf, append(path, ast.PathIndex(i)), def, field, item)
		}
		buf.WriteString("]")

	case map[string]interface{}:
		typ := c.rr.schema.AST().Types[def.Type.Name()]
		if typ == nil {
			c.resp.WithError(&gqlerror.Error{
				Message: "Internal error - no type for field " + field.Name,
				Path:    pathCopy(path),
			})
			buf.WriteString("null")
			return
		}
		c.completeObject(buf, path, typ, field.SelectionSet, v)

	default:
		b, err := json.Marshal(v)
		if err != nil {
			c.resp.WithError(&gqlerror.Error{Message: err.Error(), Path: pathCopy(path)})
			buf.WriteString("null")
			return
		}
		buf.Write(b)
	}
}

func (c *completer) completeObject(buf *bytes.Buffer, path ast.Path,
	typ *ast.Definition, sel ast.SelectionSet, data map[string]interface{}) {

	buf.WriteString("{")
	for i, field := range c.collectFields(typ, sel) {
		if i != 0 {
			buf.WriteString(", ")
		}
		key := responseKey(field)
		buf.WriteString(`"`)
		buf.WriteString(key)
		buf.WriteString(`": `)
		c.completeField(buf, append(path, ast.PathName(key)), typ, field, data)
	}
	buf.WriteString("}")
}

// pathCopy detaches a path from the walk's shared backing array before it
// is retained by an error.
func pathCopy(p ast.Path) ast.Path {
	out := make(ast.Path, len(p))
	copy(out, p)
	return out
}
