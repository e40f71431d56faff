/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package derive

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/money"
)

func specFor(t *testing.T, name string) FieldSpec {
	t.Helper()
	for _, spec := range Fields() {
		if spec.Name == name {
			return spec
		}
	}
	t.Fatalf("no field registered as %s", name)
	return FieldSpec{}
}

func result(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var obj map[string]interface{}
	d := json.NewDecoder(strings.NewReader(raw))
	d.UseNumber()
	require.NoError(t, d.Decode(&obj))
	return obj
}

// Each fixture below contains exactly the fields the registered fragment
// declares and nothing else.  A resolver that dereferenced an undeclared
// field would compute from a zero value and fail these assertions.
func TestFieldsResolveFromFragment(t *testing.T) {
	tests := []struct {
		field string
		obj   string
		want  string
	}{
		{
			field: "supplyBalanceUnderlying",
			obj:   `{"cTokenBalance": "10", "market": {"exchangeRate": "2"}}`,
			want:  "20",
		},
		{
			field: "supplyBalanceETH",
			obj:   `{"cTokenBalance": "10", "market": {"exchangeRate": "2", "underlyingPrice": "0.5"}}`,
			want:  "10.0",
		},
		{
			field: "lifetimeSupplyInterestAccrued",
			obj: `{"cTokenBalance": "10", "totalUnderlyingSupplied": "15",
				"totalUnderlyingRedeemed": "3", "market": {"exchangeRate": "2"}}`,
			want: "8",
		},
		{
			field: "borrowBalanceUnderlying",
			obj: `{"storedBorrowBalance": "100", "accountBorrowIndex": "1.0",
				"market": {"borrowIndex": "1.1"}}`,
			want: "110.000000000000000000",
		},
		{
			field: "borrowBalanceETH",
			obj: `{"storedBorrowBalance": "100", "accountBorrowIndex": "1.0",
				"market": {"borrowIndex": "1.1", "underlyingPrice": "2"}}`,
			want: "220.000000000000000000",
		},
		{
			field: "lifetimeBorrowInterestAccrued",
			obj: `{"storedBorrowBalance": "100", "accountBorrowIndex": "1",
				"totalUnderlyingBorrowed": "90", "totalUnderlyingRepaid": "5",
				"market": {"borrowIndex": "1.2"}}`,
			want: "35.000000000000000000",
		},
		{
			field: "totalCollateralValueInEth",
			obj: `{"tokens": [
				{"cTokenBalance": "10", "market": {"collateralFactor": "1", "exchangeRate": "1", "underlyingPrice": "5"}},
				{"cTokenBalance": "30", "market": {"collateralFactor": "1", "exchangeRate": "1", "underlyingPrice": "1"}}
			]}`,
			want: "80",
		},
		{
			field: "totalBorrowValueInEth",
			obj: `{"hasBorrowed": true, "tokens": [
				{"storedBorrowBalance": "40", "accountBorrowIndex": "1",
				 "market": {"borrowIndex": "1", "underlyingPrice": "2"}}
			]}`,
			want: "80.000000000000000000",
		},
		{
			field: "health",
			obj: `{"hasBorrowed": true, "tokens": [
				{"cTokenBalance": "80", "storedBorrowBalance": "40", "accountBorrowIndex": "1",
				 "market": {"collateralFactor": "1", "exchangeRate": "1", "borrowIndex": "1", "underlyingPrice": "1"}}
			]}`,
			want: "2.000000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			spec := specFor(t, tt.field)
			got, err := spec.Resolve(result(t, tt.obj))
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestHealthFieldIsNullWithoutBorrows(t *testing.T) {
	spec := specFor(t, "health")
	got, err := spec.Resolve(result(t, `{"hasBorrowed": false, "tokens": []}`))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestResolveRejectsMalformedDecimal(t *testing.T) {
	spec := specFor(t, "supplyBalanceUnderlying")
	_, err := spec.Resolve(result(t,
		`{"cTokenBalance": "not-a-number", "market": {"exchangeRate": "2"}}`))
	require.Error(t, err)
	require.True(t, errors.Is(err, money.ErrInvalidDecimal))
}

func TestRegistryShape(t *testing.T) {
	seen := map[string]bool{}
	for _, spec := range Fields() {
		require.NotEmpty(t, spec.Fragment, "field %s has no fragment", spec.Name)
		require.NotNil(t, spec.Resolve, "field %s has no resolver", spec.Name)
		require.Contains(t, []string{"Account", "AccountCToken"}, spec.Parent)
		key := spec.Parent + "." + spec.Name
		require.False(t, seen[key], "field %s registered twice", key)
		seen[key] = true
	}
	require.Len(t, seen, 9)
}
