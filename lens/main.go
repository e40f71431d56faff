/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/lens/cmd"
)

func main() {
	cmd.Execute()
}
