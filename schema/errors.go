/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// AsGQLErrors formats an error as a list of GraphQL errors.  A
// gqlerror.List gets returned as is, a *gqlerror.Error gets returned as a
// one item list, and all other errors get printed into a gqlerror.Error.
// A nil input results in nil output.
func AsGQLErrors(err error) gqlerror.List {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case *gqlerror.Error:
		return gqlerror.List{e}
	case gqlerror.List:
		return e
	default:
		return gqlerror.List{&gqlerror.Error{Message: e.Error()}}
	}
}
