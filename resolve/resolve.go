/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package resolve runs GraphQL requests against the composed schema: the
// incoming operation is rewritten into a pure upstream operation, executed
// against the subgraph, and the result is completed with the computed
// extension fields spliced in.
package resolve

import (
	"context"

	"github.com/golang/glog"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/upstream"
)

// RequestResolver can process GraphQL requests and write GraphQL JSON
// responses.
type RequestResolver struct {
	schema *schema.Schema
	client upstream.Client
}

// New creates a request resolver for the composed schema, executing
// upstream operations through client.
func New(s *schema.Schema, client upstream.Client) *RequestResolver {
	return &RequestResolver{schema: s, client: client}
}

// Resolve processes req over the request/response channel.  Subscriptions
// must arrive through Subscribe; everything else is rewritten, executed
// upstream once and completed.
func (rr *RequestResolver) Resolve(ctx context.Context, req *schema.Request) *schema.Response {
	if rr == nil {
		glog.Error("call to Resolve with nil RequestResolver")
		return schema.ErrorResponsef("Internal error - resolver not initialized.")
	}

	op, err := rr.schema.Operation(req)
	if err != nil {
		return schema.ErrorResponse(err)
	}

	if op.Kind() == ast.Subscription {
		return schema.ErrorResponsef(
			"subscriptions are only supported over a websocket connection")
	}

	result, err := rr.client.Execute(ctx, rr.rewrite(op))
	if err != nil {
		return schema.ErrorResponse(err)
	}

	return rr.complete(op, result)
}

// Subscribe starts req as a streaming operation.  Subscriptions open an
// upstream subscription and complete every event; queries arriving over the
// websocket resolve once and close the stream.  The signature matches the
// graphqlws service interface.
func (rr *RequestResolver) Subscribe(ctx context.Context, document, operationName string,
	variableValues map[string]interface{}) (<-chan interface{}, error) {

	req := &schema.Request{
		Query:         document,
		OperationName: operationName,
		Variables:     variableValues,
	}

	op, err := rr.schema.Operation(req)
	if err != nil {
		return nil, err
	}

	if op.Kind() != ast.Subscription {
		out := make(chan interface{}, 1)
		out <- rr.Resolve(ctx, req).Output()
		close(out)
		return out, nil
	}

	results, err := rr.client.Subscribe(ctx, rr.rewrite(op))
	if err != nil {
		return nil, err
	}

	out := make(chan interface{})
	go func() {
		defer close(out)
		for result := range results {
			select {
			case out <- rr.complete(op, result).Output():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (rr *RequestResolver) rootType(op *schema.Operation) *ast.Definition {
	switch op.Kind() {
	case ast.Subscription:
		return rr.schema.AST().Subscription
	case ast.Mutation:
		return rr.schema.AST().Mutation
	default:
		return rr.schema.AST().Query
	}
}
