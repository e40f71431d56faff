/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package upstream speaks GraphQL to the subgraph endpoint the wrapper
// fronts: introspection and query execution over HTTP, subscriptions over
// the graphql-ws websocket protocol.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
)

// ErrUnavailable marks a failure to reach the upstream endpoint or to read
// a well-formed GraphQL response from it.  GraphQL errors returned by a
// reachable upstream are not ErrUnavailable; those pass through in
// Result.Errors.
var ErrUnavailable = errors.New("upstream unavailable")

// A Request is the GraphQL payload posted upstream.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`

	// Header carries the forwardable headers of the originating client
	// request.  Never serialized into the GraphQL payload.
	Header http.Header `json:"-"`
}

// A Result is one GraphQL execution result from upstream, either the
// single response to a query or one event on a subscription stream.
type Result struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors,omitempty"`
}

// Client executes GraphQL operations against the upstream endpoint.
type Client interface {
	Introspect(ctx context.Context) (*schema.IntrospectedSchema, error)
	Execute(ctx context.Context, req *Request) (*Result, error)
	Subscribe(ctx context.Context, req *Request) (<-chan *Result, error)
}

// HeaderFilter reports whether a client header may be forwarded upstream.
type HeaderFilter func(name string) bool

// ForwardHeaders builds a HeaderFilter from a comma separated allowlist,
// matched case-insensitively.  An empty list forwards nothing.
func ForwardHeaders(list string) HeaderFilter {
	allowed := map[string]bool{}
	for _, h := range strings.Split(list, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			allowed[strings.ToLower(h)] = true
		}
	}
	return func(name string) bool {
		return allowed[strings.ToLower(name)]
	}
}

// HTTPClient is the production Client.  Queries and mutations go to the
// HTTP endpoint; Subscribe dials the websocket endpoint per subscription.
type HTTPClient struct {
	endpoint   string
	wsEndpoint string
	forward    HeaderFilter
	http       *http.Client
}

// NewHTTPClient returns a client for the given HTTP and websocket endpoint
// URLs.  Headers accepted by forward are copied onto every upstream call.
func NewHTTPClient(endpoint, wsEndpoint string, forward HeaderFilter, timeout time.Duration) *HTTPClient {
	if forward == nil {
		forward = func(string) bool { return false }
	}
	return &HTTPClient{
		endpoint:   endpoint,
		wsEndpoint: wsEndpoint,
		forward:    forward,
		http:       &http.Client{Timeout: timeout},
	}
}

// Introspect runs the full introspection query against the upstream
// endpoint and decodes the typed schema model from the response.
func (c *HTTPClient) Introspect(ctx context.Context) (*schema.IntrospectedSchema, error) {
	body, err := c.post(ctx, &Request{Query: schema.IntrospectionQuery})
	if err != nil {
		return nil, err
	}

	var is schema.IntrospectedSchema
	if err := json.Unmarshal(body, &is); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "decoding introspection response: %v", err)
	}
	return &is, nil
}

// Execute posts req upstream and returns the execution result.  GraphQL
// errors from upstream are carried in the result, not the error return.
func (c *HTTPClient) Execute(ctx context.Context, req *Request) (*Result, error) {
	body, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "decoding upstream response: %v", err)
	}
	return &result, nil
}

func (c *HTTPClient) post(ctx context.Context, req *Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling upstream request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building upstream request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.copyHeaders(httpReq.Header, req.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrUnavailable, "unexpected status %s from %s",
			resp.Status, c.endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "reading upstream response: %v", err)
	}
	return body, nil
}

func (c *HTTPClient) copyHeaders(dst, src http.Header) {
	for name, vals := range src {
		if !c.forward(name) {
			continue
		}
		for _, v := range vals {
			dst.Add(name, v)
		}
	}
}
