/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/x"
)

// Set by the build with -ldflags "-X ...cmd.version=...".
var version = "dev"

// Version prints build information.
var Version x.SubCommand

func init() {
	Version.Cmd = &cobra.Command{
		Use:   "version",
		Short: "Print the lensd version and build details",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lensd %s\n", version)
			fmt.Printf("go version %s %s/%s\n",
				runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
	Version.EnvPrefix = "LENS"
}
