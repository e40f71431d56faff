/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package web is the HTTP shell around the resolver: one endpoint serving
// GET and POST GraphQL requests, with subscriptions upgraded onto the same
// endpoint via the graphql-transport-ws protocol.
package web

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/golang/glog"
	"github.com/graph-gophers/graphql-transport-ws/graphqlws"
	"github.com/pkg/errors"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/resolve"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
)

// GraphQLHandler returns the handler for the GraphQL endpoint.  Websocket
// upgrade requests become graphql-ws subscriptions; everything else is
// served over plain HTTP.
func GraphQLHandler(rr *resolve.RequestResolver) http.Handler {
	gh := recoveryHandler(commonHeaders(&graphqlHandler{resolver: rr}))
	return graphqlws.NewHandlerFunc(rr, gh)
}

type graphqlHandler struct {
	resolver *resolve.RequestResolver
}

func (gh *graphqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var res *schema.Response

	gqlReq, err := getRequest(r)
	if err != nil {
		res = schema.ErrorResponse(err)
	} else {
		res = gh.resolver.Resolve(r.Context(), gqlReq)
	}

	write(w, res, strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"))
}

// getRequest decodes a GraphQL request from an HTTP one.  GET carries the
// query in URL parameters; POST carries a JSON document, possibly
// gzip-compressed.  Numbers decode as json.Number so big on-chain values
// survive the trip.
func getRequest(r *http.Request) (*schema.Request, error) {
	gqlReq := &schema.Request{Header: r.Header}

	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		gqlReq.Query = query.Get("query")
		gqlReq.OperationName = query.Get("operationName")
		if vars := query.Get("variables"); vars != "" {
			d := json.NewDecoder(strings.NewReader(vars))
			d.UseNumber()
			if err := d.Decode(&gqlReq.Variables); err != nil {
				return nil, errors.Wrap(err, "unable to parse the variables parameter")
			}
		}

	case http.MethodPost:
		body, err := requestBody(r)
		if err != nil {
			return nil, err
		}
		defer body.Close()

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			return nil, errors.Wrap(err, "unable to parse the content type header")
		}

		switch mediaType {
		case "application/json":
			d := json.NewDecoder(body)
			d.UseNumber()
			if err := d.Decode(gqlReq); err != nil {
				return nil, errors.Wrap(err, "unable to parse a valid GraphQL request body")
			}
		case "application/graphql":
			b, err := io.ReadAll(body)
			if err != nil {
				return nil, errors.Wrap(err, "unable to read the request body")
			}
			gqlReq.Query = string(b)
		default:
			return nil, errors.New(
				"unrecognised Content-Type, please use application/json or application/graphql")
		}

	default:
		return nil, errors.New("unrecognised request method, please use GET or POST")
	}

	return gqlReq, nil
}

func requestBody(r *http.Request) (io.ReadCloser, error) {
	if r.Header.Get("Content-Encoding") != "gzip" {
		return r.Body, nil
	}
	zr, err := gzip.NewReader(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decompress the request body")
	}
	return zr, nil
}

func write(w http.ResponseWriter, res *schema.Response, acceptGzip bool) {
	var out io.Writer = w
	w.Header().Set("Content-Type", "application/json")

	if acceptGzip {
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		defer zw.Close()
		out = zw
	}

	if _, err := res.WriteTo(out); err != nil {
		glog.Error(err)
	}
}

func commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization")
		w.Header().Set("Connection", "Keep-Alive")

		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				glog.Errorf("panic while serving %s: %v\n%s", r.URL.Path, rec, debug.Stack())
				write(w, schema.ErrorResponsef("Internal Server Error - a panic was trapped. "+
					"This indicates a bug in the server. The panic has been logged."), false)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// HealthHandler reports liveness and, when the upstream pinger is set,
// whether the upstream endpoint is reachable.
func HealthHandler(ping func(ctx context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("OK"))
	})
}
