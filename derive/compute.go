/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package derive computes the financial fields the wrapper adds on top of
// the subgraph schema: underlying balances, reference-currency (ETH)
// values, lifetime interest and the account health ratio.
//
// Every function here is pure.  Each one reads only the entity fields its
// registered fragment fetches (see fields.go) - a function that quietly
// depended on an undeclared field would break under schema composition
// without any static signal, so the fragment and the computation for a
// field are kept side by side and exercised together in tests.
package derive

import "github.com/Lodestar-Finance/lodestar-subgraph-wrapper/money"

// SupplyBalanceUnderlying converts a cToken balance into underlying-asset
// units at the market's current exchange rate.
func SupplyBalanceUnderlying(pos Position) money.Money {
	return pos.Balance.Mul(pos.Market.ExchangeRate)
}

// BorrowBalanceUnderlying is the borrow balance accrued to the market's
// current borrow index.  A position that never borrowed in this market has
// an uninitialised (zero) account borrow index; its borrow balance is zero,
// and dividing by the index would be a spurious division by zero.
func BorrowBalanceUnderlying(pos Position) (money.Money, error) {
	if pos.AccountBorrowIndex.IsZero() {
		return money.Zero(), nil
	}
	return pos.StoredBorrowBalance.
		Mul(pos.Market.BorrowIndex).
		Div(pos.AccountBorrowIndex, money.Scale)
}

// SupplyBalanceETH is the supply balance valued in the reference currency.
func SupplyBalanceETH(pos Position) money.Money {
	return SupplyBalanceUnderlying(pos).Mul(pos.Market.UnderlyingPrice)
}

// BorrowBalanceETH is the borrow balance valued in the reference currency.
func BorrowBalanceETH(pos Position) (money.Money, error) {
	borrow, err := BorrowBalanceUnderlying(pos)
	if err != nil {
		return money.Money{}, err
	}
	return borrow.Mul(pos.Market.UnderlyingPrice), nil
}

// LifetimeSupplyInterest is everything the position earned supplying:
// current underlying balance minus net lifetime deposits.
func LifetimeSupplyInterest(pos Position) money.Money {
	return SupplyBalanceUnderlying(pos).
		Sub(pos.TotalUnderlyingSupplied).
		Add(pos.TotalUnderlyingRedeemed)
}

// LifetimeBorrowInterest is everything the position paid borrowing:
// current borrow balance minus net lifetime draws.
func LifetimeBorrowInterest(pos Position) (money.Money, error) {
	borrow, err := BorrowBalanceUnderlying(pos)
	if err != nil {
		return money.Money{}, err
	}
	return borrow.
		Sub(pos.TotalUnderlyingBorrowed).
		Add(pos.TotalUnderlyingRepaid), nil
}

// CollateralValueETH is the position's collateral capacity in the reference
// currency: collateralFactor × exchangeRate × underlyingPrice × balance.
func CollateralValueETH(pos Position) money.Money {
	return pos.Market.CollateralFactor.
		Mul(pos.Market.ExchangeRate).
		Mul(pos.Market.UnderlyingPrice).
		Mul(pos.Balance)
}

// TotalCollateralValueETH sums CollateralValueETH over the account's
// positions, folded left from zero.
func TotalCollateralValueETH(acc Account) money.Money {
	total := money.Zero()
	for _, pos := range acc.Positions {
		total = total.Add(CollateralValueETH(pos))
	}
	return total
}

// TotalBorrowValueETH sums the reference-currency borrow balances over the
// account's positions.  An account that never borrowed short-circuits to
// zero; its positions carry stale borrow fields that must not be summed.
func TotalBorrowValueETH(acc Account) (money.Money, error) {
	if !acc.HasBorrowed {
		return money.Zero(), nil
	}
	total := money.Zero()
	for _, pos := range acc.Positions {
		borrow, err := BorrowBalanceUnderlying(pos)
		if err != nil {
			return money.Money{}, err
		}
		total = total.Add(pos.Market.UnderlyingPrice.Mul(borrow))
	}
	return total, nil
}

// HealthRatio is total collateral over total borrow, both in the reference
// currency.  A borrow-free account has no health ratio at all, reported as
// nil rather than zero or infinity.  When the account borrowed historically
// but currently owes nothing, the ratio collapses to the raw collateral
// value - a convention inherited from the original service, not a generic
// ratio (see DESIGN.md).
func HealthRatio(acc Account) (*money.Money, error) {
	if !acc.HasBorrowed {
		return nil, nil
	}
	totalBorrow, err := TotalBorrowValueETH(acc)
	if err != nil {
		return nil, err
	}
	totalCollateral := TotalCollateralValueETH(acc)
	if totalBorrow.IsZero() {
		return &totalCollateral, nil
	}
	health, err := totalCollateral.Div(totalBorrow, money.Scale)
	if err != nil {
		return nil, err
	}
	return &health, nil
}
