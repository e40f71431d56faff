/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func TestAddData(t *testing.T) {
	var resp Response
	resp.AddData([]byte(`"accounts": [{"id": "0xabc"}]`))
	resp.AddData([]byte(`"markets": []`))

	require.JSONEq(t,
		`{"accounts": [{"id": "0xabc"}], "markets": []}`,
		resp.Data.String())
}

func TestAddDataEmptyPayload(t *testing.T) {
	var resp Response
	resp.AddData(nil)
	require.Zero(t, resp.Data.Len())
}

func TestWriteTo(t *testing.T) {
	resp := &Response{}
	resp.AddData([]byte(`"accounts": []`))
	resp.WithError(gqlerror.Errorf("something failed"))

	var buf bytes.Buffer
	_, err := resp.WriteTo(&buf)
	require.NoError(t, err)

	var out struct {
		Errors gqlerror.List   `json:"errors"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Errors, 1)
	require.JSONEq(t, `{"accounts": []}`, string(out.Data))
}

func TestWriteToNilResponse(t *testing.T) {
	var resp *Response
	var buf bytes.Buffer
	_, err := resp.WriteTo(&buf)
	require.NoError(t, err)
	require.True(t, json.Valid(buf.Bytes()))
}

func TestAsGQLErrors(t *testing.T) {
	require.Nil(t, AsGQLErrors(nil))

	one := gqlerror.Errorf("bad")
	require.Equal(t, gqlerror.List{one}, AsGQLErrors(one))

	list := gqlerror.List{gqlerror.Errorf("a"), gqlerror.Errorf("b")}
	require.Equal(t, list, AsGQLErrors(list))

	plain := AsGQLErrors(errors.New("plain"))
	require.Len(t, plain, 1)
	require.Equal(t, "plain", plain[0].Message)
}
