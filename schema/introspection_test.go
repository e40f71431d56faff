/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// introspectionJSON is the wire shape a subgraph endpoint returns for
// IntrospectionQuery, cut down to a few representative types.
const introspectionJSON = `{
  "data": {
    "__schema": {
      "queryType": { "name": "Query" },
      "mutationType": null,
      "subscriptionType": { "name": "Subscription" },
      "types": [
        {
          "kind": "OBJECT",
          "name": "Query",
          "fields": [
            {
              "name": "account",
              "args": [
                { "name": "id", "type": { "kind": "NON_NULL", "name": null, "ofType": { "kind": "SCALAR", "name": "ID", "ofType": null } }, "defaultValue": null }
              ],
              "type": { "kind": "OBJECT", "name": "Account", "ofType": null }
            },
            {
              "name": "accounts",
              "args": [
                { "name": "first", "type": { "kind": "SCALAR", "name": "Int", "ofType": null }, "defaultValue": null }
              ],
              "type": {
                "kind": "NON_NULL", "name": null,
                "ofType": {
                  "kind": "LIST", "name": null,
                  "ofType": { "kind": "NON_NULL", "name": null, "ofType": { "kind": "OBJECT", "name": "Account", "ofType": null } }
                }
              }
            }
          ]
        },
        {
          "kind": "OBJECT",
          "name": "Subscription",
          "fields": [
            {
              "name": "accounts",
              "args": [],
              "type": {
                "kind": "NON_NULL", "name": null,
                "ofType": {
                  "kind": "LIST", "name": null,
                  "ofType": { "kind": "NON_NULL", "name": null, "ofType": { "kind": "OBJECT", "name": "Account", "ofType": null } }
                }
              }
            }
          ]
        },
        {
          "kind": "OBJECT",
          "name": "Account",
          "fields": [
            { "name": "id", "args": [], "type": { "kind": "NON_NULL", "name": null, "ofType": { "kind": "SCALAR", "name": "ID", "ofType": null } } },
            { "name": "hasBorrowed", "args": [], "type": { "kind": "NON_NULL", "name": null, "ofType": { "kind": "SCALAR", "name": "Boolean", "ofType": null } } },
            { "name": "balance", "args": [], "type": { "kind": "NON_NULL", "name": null, "ofType": { "kind": "SCALAR", "name": "BigDecimal", "ofType": null } } }
          ]
        },
        { "kind": "SCALAR", "name": "BigDecimal" },
        { "kind": "SCALAR", "name": "Boolean" },
        { "kind": "SCALAR", "name": "ID" },
        { "kind": "SCALAR", "name": "Int" },
        {
          "kind": "ENUM",
          "name": "OrderDirection",
          "enumValues": [ { "name": "asc" }, { "name": "desc" } ]
        },
        {
          "kind": "INPUT_OBJECT",
          "name": "Account_filter",
          "inputFields": [
            { "name": "id", "type": { "kind": "SCALAR", "name": "ID", "ofType": null }, "defaultValue": null },
            { "name": "hasBorrowed", "type": { "kind": "SCALAR", "name": "Boolean", "ofType": null }, "defaultValue": null }
          ]
        },
        {
          "kind": "OBJECT",
          "name": "__Type",
          "fields": [ { "name": "kind", "args": [], "type": { "kind": "SCALAR", "name": "String", "ofType": null } } ]
        }
      ]
    }
  }
}`

func TestSDLRoundTripsThroughParser(t *testing.T) {
	var is IntrospectedSchema
	require.NoError(t, json.Unmarshal([]byte(introspectionJSON), &is))

	sdl, err := is.SDL()
	require.NoError(t, err)

	sch, err := gqlparser.LoadSchema(&ast.Source{Name: "upstream.graphql", Input: sdl})
	require.NoError(t, err)

	require.Equal(t, "Query", sch.Query.Name)
	require.Nil(t, sch.Mutation)
	require.Equal(t, "Subscription", sch.Subscription.Name)

	account := sch.Types["Account"]
	require.NotNil(t, account)
	require.Equal(t, "ID!", account.Fields.ForName("id").Type.String())
	require.Equal(t, "BigDecimal!", account.Fields.ForName("balance").Type.String())

	accounts := sch.Types["Query"].Fields.ForName("accounts")
	require.Equal(t, "[Account!]!", accounts.Type.String())
	require.Equal(t, "Int", accounts.Arguments.ForName("first").Type.String())
}

func TestSDLSkipsIntrospectionAndBuiltins(t *testing.T) {
	var is IntrospectedSchema
	require.NoError(t, json.Unmarshal([]byte(introspectionJSON), &is))

	sdl, err := is.SDL()
	require.NoError(t, err)

	require.NotContains(t, sdl, "__Type")
	require.NotContains(t, sdl, "scalar ID")
	require.Contains(t, sdl, "scalar BigDecimal")
	require.Contains(t, sdl, "enum OrderDirection")
	require.Contains(t, sdl, "input Account_filter")
}

func TestSDLNeedsQueryType(t *testing.T) {
	var is IntrospectedSchema
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"__schema":{"types":[]}}}`), &is))

	_, err := is.SDL()
	require.Error(t, err)
}
