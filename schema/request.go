/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// A Request represents a GraphQL request.  It makes no guarantees that the
// request is valid.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Header        http.Header            `json:"-"`
}

// An Operation is a validated request bound to the composed schema.
type Operation struct {
	op     *ast.OperationDefinition
	doc    *ast.QueryDocument
	vars   map[string]interface{}
	header http.Header
}

// Kind is the top-level operation kind.  The transport channel is chosen
// from this, per operation: subscriptions go over the streaming channel,
// everything else over request/response.
func (o *Operation) Kind() ast.Operation {
	return o.op.Operation
}

func (o *Operation) Def() *ast.OperationDefinition { return o.op }
func (o *Operation) Doc() *ast.QueryDocument       { return o.doc }
func (o *Operation) Vars() map[string]interface{}  { return o.vars }
func (o *Operation) Header() http.Header           { return o.header }

// Operation finds the operation in req, if it is a valid request for the
// composed schema.  If either the request is malformed or doesn't contain a
// valid operation, all GraphQL errors encountered are returned.
func (s *Schema) Operation(req *Request) (*Operation, error) {
	if req == nil || req.Query == "" {
		return nil, errors.New("no query string supplied in request")
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		return nil, err
	}

	if listErr := validator.Validate(s.schema, doc); len(listErr) != 0 {
		return nil, listErr
	}

	if len(doc.Operations) > 1 && req.OperationName == "" {
		return nil, errors.New(
			"operation name must be supplied when the query has more than 1 operation")
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, errors.Errorf("supplied operation name %q isn't present in the request",
			req.OperationName)
	}

	if op.Operation == ast.Subscription && s.schema.Subscription == nil {
		return nil, errors.New("the upstream schema has no subscription support")
	}

	vars, gqlErr := validator.VariableValues(s.schema, op, req.Variables)
	if gqlErr != nil {
		return nil, gqlErr
	}

	return &Operation{op: op, doc: doc, vars: vars, header: req.Header}, nil
}
