/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/derive"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/resolve"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/upstream"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/web"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/x"
)

// Serve is the subcommand that runs the gateway.
var Serve x.SubCommand

func init() {
	Serve.Cmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the extended subgraph GraphQL API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
	Serve.EnvPrefix = "LENS"

	flag := Serve.Cmd.Flags()
	flag.String("upstream", "",
		"HTTP URL of the upstream subgraph GraphQL endpoint. Required.")
	flag.String("upstream-ws", "",
		"Websocket URL of the upstream subscription endpoint. Required.")
	flag.IntP("port", "p", 8080, "Port to listen on.")
	flag.Bool("bindall", true,
		"Use 0.0.0.0 instead of localhost to bind to the listening port.")
	flag.String("forward-headers", "",
		"Comma separated list of client request headers forwarded upstream.")
	flag.Duration("upstream-timeout", 30*time.Second,
		"Timeout for each upstream HTTP call.")
}

func runServe() {
	upstreamURL := Serve.Conf.GetString("upstream")
	wsURL := Serve.Conf.GetString("upstream-ws")
	x.AssertTruef(upstreamURL != "",
		"the upstream endpoint is required; set --upstream or LENS_UPSTREAM")
	x.AssertTruef(wsURL != "",
		"the upstream websocket endpoint is required; set --upstream-ws or LENS_UPSTREAM_WS")

	client := upstream.NewHTTPClient(
		upstreamURL,
		wsURL,
		upstream.ForwardHeaders(Serve.Conf.GetString("forward-headers")),
		Serve.Conf.GetDuration("upstream-timeout"),
	)

	glog.Infof("Introspecting upstream schema at %s", upstreamURL)
	is, err := client.Introspect(context.Background())
	x.Checkf(err, "while introspecting the upstream schema")

	sdl, err := is.SDL()
	x.Checkf(err, "while rebuilding the upstream schema")

	sch, err := schema.Compose(sdl, derive.Fields())
	x.Checkf(err, "while composing the extended schema")

	rr := resolve.New(sch, client)

	mux := http.NewServeMux()
	mux.Handle("/graphql", web.GraphQLHandler(rr))
	mux.Handle("/health", web.HealthHandler(func(ctx context.Context) error {
		_, err := client.Execute(ctx, &upstream.Request{Query: "{ __typename }"})
		return err
	}))

	host := "127.0.0.1"
	if Serve.Conf.GetBool("bindall") {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, Serve.GetIntP("port", "p", 8080))

	glog.Infof("Serving the extended GraphQL API at %s/graphql", addr)
	x.Checkf(http.ListenAndServe(addr, mux), "while serving on %s", addr)
}
