/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package derive

import (
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/money"
)

// A FieldSpec declares one extension field: where it hangs off the upstream
// schema, the exact upstream sub-selection that must be fetched before it
// can be computed, and the resolver that runs the pure computation.
//
// The fragment must be a superset of every field the resolver dereferences,
// recursively - including fields consumed transitively (SupplyBalanceETH's
// fragment carries everything SupplyBalanceUnderlying needs plus
// underlyingPrice).  The composer validates each fragment against the
// introspected upstream schema at startup, and TestFieldsResolveFromFragment
// runs every resolver against a fixture shaped exactly like its fragment.
type FieldSpec struct {
	// Parent is the upstream object type the field extends.
	Parent string
	// Name is the field name on the extension surface.
	Name string
	// Type is the GraphQL type of the field, e.g. "Decimal!".
	Type string
	// Fragment is the upstream selection the resolver needs, as the body
	// of a selection set on Parent.
	Fragment string
	// Resolve computes the field from the fetched object.  A nil result is
	// GraphQL null.
	Resolve func(obj map[string]interface{}) (*money.Money, error)
}

func positionField(name, fragment string, fn func(Position) (money.Money, error)) FieldSpec {
	return FieldSpec{
		Parent:   "AccountCToken",
		Name:     name,
		Type:     "Decimal!",
		Fragment: fragment,
		Resolve: func(obj map[string]interface{}) (*money.Money, error) {
			pos, err := PositionFromResult(obj)
			if err != nil {
				return nil, err
			}
			m, err := fn(pos)
			if err != nil {
				return nil, err
			}
			return &m, nil
		},
	}
}

func accountField(name, typ, fragment string, fn func(Account) (*money.Money, error)) FieldSpec {
	return FieldSpec{
		Parent:   "Account",
		Name:     name,
		Type:     typ,
		Fragment: fragment,
		Resolve: func(obj map[string]interface{}) (*money.Money, error) {
			acc, err := AccountFromResult(obj)
			if err != nil {
				return nil, err
			}
			return fn(acc)
		},
	}
}

func total(fn func(Account) (money.Money, error)) func(Account) (*money.Money, error) {
	return func(acc Account) (*money.Money, error) {
		m, err := fn(acc)
		if err != nil {
			return nil, err
		}
		return &m, nil
	}
}

func infallible(fn func(Position) money.Money) func(Position) (money.Money, error) {
	return func(pos Position) (money.Money, error) {
		return fn(pos), nil
	}
}

// Fields returns the full extension-field registry.  This table is the
// single source for the extension type declarations the composer appends to
// the upstream schema and for the resolver wiring; a fragment and its
// computation can only be registered together.
func Fields() []FieldSpec {
	return []FieldSpec{
		positionField("supplyBalanceUnderlying",
			"cTokenBalance market { exchangeRate }",
			infallible(SupplyBalanceUnderlying)),

		positionField("supplyBalanceETH",
			"cTokenBalance market { exchangeRate underlyingPrice }",
			infallible(SupplyBalanceETH)),

		positionField("lifetimeSupplyInterestAccrued",
			"cTokenBalance totalUnderlyingSupplied totalUnderlyingRedeemed market { exchangeRate }",
			infallible(LifetimeSupplyInterest)),

		positionField("borrowBalanceUnderlying",
			"storedBorrowBalance accountBorrowIndex market { borrowIndex }",
			BorrowBalanceUnderlying),

		positionField("borrowBalanceETH",
			"storedBorrowBalance accountBorrowIndex market { borrowIndex underlyingPrice }",
			BorrowBalanceETH),

		positionField("lifetimeBorrowInterestAccrued",
			"storedBorrowBalance accountBorrowIndex totalUnderlyingBorrowed totalUnderlyingRepaid market { borrowIndex }",
			LifetimeBorrowInterest),

		accountField("totalCollateralValueInEth", "Decimal!",
			"tokens { cTokenBalance market { collateralFactor exchangeRate underlyingPrice } }",
			func(acc Account) (*money.Money, error) {
				m := TotalCollateralValueETH(acc)
				return &m, nil
			}),

		accountField("totalBorrowValueInEth", "Decimal!",
			"hasBorrowed tokens { storedBorrowBalance accountBorrowIndex market { borrowIndex underlyingPrice } }",
			total(TotalBorrowValueETH)),

		accountField("health", "Decimal",
			"hasBorrowed tokens { cTokenBalance storedBorrowBalance accountBorrowIndex "+
				"market { collateralFactor exchangeRate borrowIndex underlyingPrice } }",
			HealthRatio),
	}
}
