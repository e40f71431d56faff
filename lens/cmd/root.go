/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package cmd wires up the lensd command line.
package cmd

import (
	goflag "flag"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/x"
)

// RootCmd is the lensd base command.
var RootCmd = &cobra.Command{
	Use:   "lensd",
	Short: "lensd serves the Lodestar subgraph with computed financial fields",
	Long: `lensd sits in front of a lending-protocol subgraph endpoint and serves
its GraphQL API extended with exact-decimal financial fields: underlying
balances, ETH valuations, lifetime interest and account health.`,
}

var rootConf = viper.New()

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// Allocates the glog flags (-v, -logtostderr, ...) before cobra takes
	// over argument parsing.
	x.Check(goflag.CommandLine.Parse([]string{}))
	x.Check(RootCmd.Execute())
}

var subcommands = []*x.SubCommand{&Serve, &Version}

func init() {
	RootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
	x.Check(rootConf.BindPFlags(RootCmd.PersistentFlags()))

	for _, sc := range subcommands {
		RootCmd.AddCommand(sc.Cmd)
		sc.Conf = viper.New()
		x.Check(sc.Conf.BindPFlags(sc.Cmd.Flags()))
		x.Check(sc.Conf.BindPFlags(RootCmd.PersistentFlags()))
		sc.Conf.SetEnvPrefix(sc.EnvPrefix)
		sc.Conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		sc.Conf.AutomaticEnv()
	}
}
