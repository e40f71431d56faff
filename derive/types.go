/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package derive

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/money"
)

// The subgraph returns every numeric field as a decimal string.  These
// structs are populated strictly from the fields a registered fragment
// names; anything the fragment didn't ask for stays at the zero value.
// Entities live for one fetch + one computation, there is no caching and
// no identity.

// Market is a lending pool, shared read-only by many positions.
type Market struct {
	ExchangeRate     money.Money
	BorrowIndex      money.Money
	CollateralFactor money.Money
	UnderlyingPrice  money.Money
}

// Position is one account's stake in one market (an AccountCToken in the
// subgraph schema).
type Position struct {
	Balance                 money.Money
	StoredBorrowBalance     money.Money
	AccountBorrowIndex      money.Money
	TotalUnderlyingSupplied money.Money
	TotalUnderlyingRedeemed money.Money
	TotalUnderlyingBorrowed money.Money
	TotalUnderlyingRepaid   money.Money
	Market                  Market
}

// Account holds the borrow flag and the account's positions.
type Account struct {
	HasBorrowed bool
	Positions   []Position
}

// moneyField reads an optional decimal-string field from an upstream result
// object.  A missing field is the zero amount (the paired fragment didn't
// select it); a present but malformed value is an upstream contract
// violation and fails with money.ErrInvalidDecimal.
func moneyField(obj map[string]interface{}, name string) (money.Money, error) {
	v, ok := obj[name]
	if !ok || v == nil {
		return money.Zero(), nil
	}
	switch val := v.(type) {
	case string:
		m, err := money.Parse(val)
		return m, errors.Wrapf(err, "field %s", name)
	case json.Number:
		m, err := money.Parse(val.String())
		return m, errors.Wrapf(err, "field %s", name)
	default:
		return money.Money{}, errors.Wrapf(money.ErrInvalidDecimal,
			"field %s: expected a decimal string, got %T", name, v)
	}
}

func marketFromResult(obj map[string]interface{}) (Market, error) {
	var mkt Market
	var err error
	if mkt.ExchangeRate, err = moneyField(obj, "exchangeRate"); err != nil {
		return Market{}, err
	}
	if mkt.BorrowIndex, err = moneyField(obj, "borrowIndex"); err != nil {
		return Market{}, err
	}
	if mkt.CollateralFactor, err = moneyField(obj, "collateralFactor"); err != nil {
		return Market{}, err
	}
	if mkt.UnderlyingPrice, err = moneyField(obj, "underlyingPrice"); err != nil {
		return Market{}, err
	}
	return mkt, nil
}

// PositionFromResult builds a Position from the JSON object fetched for an
// AccountCToken, including its nested market sub-selection.
func PositionFromResult(obj map[string]interface{}) (Position, error) {
	var pos Position
	var err error

	fields := []struct {
		name string
		dst  *money.Money
	}{
		{"cTokenBalance", &pos.Balance},
		{"storedBorrowBalance", &pos.StoredBorrowBalance},
		{"accountBorrowIndex", &pos.AccountBorrowIndex},
		{"totalUnderlyingSupplied", &pos.TotalUnderlyingSupplied},
		{"totalUnderlyingRedeemed", &pos.TotalUnderlyingRedeemed},
		{"totalUnderlyingBorrowed", &pos.TotalUnderlyingBorrowed},
		{"totalUnderlyingRepaid", &pos.TotalUnderlyingRepaid},
	}
	for _, f := range fields {
		if *f.dst, err = moneyField(obj, f.name); err != nil {
			return Position{}, err
		}
	}

	if raw, ok := obj["market"]; ok && raw != nil {
		mktObj, ok := raw.(map[string]interface{})
		if !ok {
			return Position{}, errors.Errorf("field market: expected an object, got %T", raw)
		}
		if pos.Market, err = marketFromResult(mktObj); err != nil {
			return Position{}, errors.Wrap(err, "market")
		}
	}

	return pos, nil
}

// AccountFromResult builds an Account from the JSON object fetched for an
// Account, including its tokens sub-selection.
func AccountFromResult(obj map[string]interface{}) (Account, error) {
	var acc Account

	if v, ok := obj["hasBorrowed"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return Account{}, errors.Errorf("field hasBorrowed: expected a boolean, got %T", v)
		}
		acc.HasBorrowed = b
	}

	raw, ok := obj["tokens"]
	if !ok || raw == nil {
		return acc, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return Account{}, errors.Errorf("field tokens: expected a list, got %T", raw)
	}
	for i, item := range list {
		posObj, ok := item.(map[string]interface{})
		if !ok {
			return Account{}, errors.Errorf("tokens[%d]: expected an object, got %T", i, item)
		}
		pos, err := PositionFromResult(posObj)
		if err != nil {
			return Account{}, errors.Wrapf(err, "tokens[%d]", i)
		}
		acc.Positions = append(acc.Positions, pos)
	}

	return acc, nil
}
