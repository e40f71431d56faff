/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/derive"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/schema"
	"github.com/Lodestar-Finance/lodestar-subgraph-wrapper/upstream"
)

const testSDL = `
	schema {
		query: Query
		subscription: Subscription
	}
	type Query {
		account(id: ID!): Account
		accounts(first: Int): [Account!]!
		markets(first: Int): [Market!]!
	}
	type Subscription {
		accounts(first: Int): [Account!]!
	}
	type Account {
		id: ID!
		hasBorrowed: Boolean!
		tokens: [AccountCToken!]!
	}
	type AccountCToken {
		id: ID!
		symbol: String!
		cTokenBalance: String!
		storedBorrowBalance: String!
		accountBorrowIndex: String!
		totalUnderlyingSupplied: String!
		totalUnderlyingRedeemed: String!
		totalUnderlyingBorrowed: String!
		totalUnderlyingRepaid: String!
		market: Market!
	}
	type Market {
		id: ID!
		name: String!
		exchangeRate: String!
		borrowIndex: String!
		collateralFactor: String!
		underlyingPrice: String!
	}
`

type fakeClient struct {
	req    *upstream.Request
	result *upstream.Result
	err    error

	subReq *upstream.Request
	stream chan *upstream.Result
	subErr error
}

func (f *fakeClient) Introspect(ctx context.Context) (*schema.IntrospectedSchema, error) {
	return nil, errors.New("not used in these tests")
}

func (f *fakeClient) Execute(ctx context.Context, req *upstream.Request) (*upstream.Result, error) {
	f.req = req
	return f.result, f.err
}

func (f *fakeClient) Subscribe(ctx context.Context, req *upstream.Request) (<-chan *upstream.Result, error) {
	f.subReq = req
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.stream, nil
}

func dataResult(s string) *upstream.Result {
	return &upstream.Result{Data: json.RawMessage(s)}
}

func testResolver(t *testing.T, client upstream.Client) *RequestResolver {
	t.Helper()
	sch, err := schema.Compose(testSDL, derive.Fields())
	require.NoError(t, err)
	return New(sch, client)
}

func TestResolveComputesPositionFields(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{
			"id": "0xabc",
			"tokens": [{
				"symbol": "lUSDC",
				"cTokenBalance": "100",
				"market": {"exchangeRate": "1.1"}
			}]
		}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts(first: 1) { id tokens { symbol supplyBalanceUnderlying } } }`,
	})

	require.Empty(t, resp.Errors)
	require.JSONEq(t, `{
		"accounts": [{
			"id": "0xabc",
			"tokens": [{"symbol": "lUSDC", "supplyBalanceUnderlying": "110.0"}]
		}]
	}`, resp.Data.String())

	// The extension field never goes upstream; its fragment does.
	require.NotContains(t, fake.req.Query, "supplyBalanceUnderlying")
	require.Contains(t, fake.req.Query, "cTokenBalance")
	require.Contains(t, fake.req.Query, "exchangeRate")
}

func TestResolveComputesAccountFields(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{
			"hasBorrowed": true,
			"tokens": [{
				"cTokenBalance": "100",
				"storedBorrowBalance": "40",
				"accountBorrowIndex": "1",
				"market": {
					"exchangeRate": "1.1",
					"borrowIndex": "1",
					"collateralFactor": "0.5",
					"underlyingPrice": "1"
				}
			}]
		}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { totalCollateralValueInEth totalBorrowValueInEth health } }`,
	})

	require.Empty(t, resp.Errors)
	require.JSONEq(t, `{
		"accounts": [{
			"totalCollateralValueInEth": "55.00",
			"totalBorrowValueInEth": "40.000000000000000000",
			"health": "1.375000000000000000"
		}]
	}`, resp.Data.String())
}

func TestResolveHealthNullForNonBorrower(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{"__typename": "Account", "hasBorrowed": false, "tokens": []}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { __typename health } }`,
	})

	require.Empty(t, resp.Errors)
	require.JSONEq(t,
		`{"accounts": [{"__typename": "Account", "health": null}]}`,
		resp.Data.String())
}

func TestResolveBadDecimalLeavesSiblingsIntact(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{
			"tokens": [
				{"symbol": "bad", "cTokenBalance": "banana", "market": {"exchangeRate": "1.1"}},
				{"symbol": "good", "cTokenBalance": "100", "market": {"exchangeRate": "1.1"}}
			]
		}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { tokens { symbol supplyBalanceUnderlying } } }`,
	})

	require.Len(t, resp.Errors, 1)
	require.Contains(t, resp.Errors[0].Message, "supplyBalanceUnderlying")
	require.Contains(t, resp.Errors[0].Path.String(), "supplyBalanceUnderlying")

	require.JSONEq(t, `{
		"accounts": [{
			"tokens": [
				{"symbol": "bad", "supplyBalanceUnderlying": null},
				{"symbol": "good", "supplyBalanceUnderlying": "110.0"}
			]
		}]
	}`, resp.Data.String())
}

func TestResolveAliasedExtensionField(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{"hasBorrowed": false, "tokens": []}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { h: health } }`,
	})

	require.Empty(t, resp.Errors)
	require.JSONEq(t, `{"accounts": [{"h": null}]}`, resp.Data.String())
}

func TestRewriteDedupesInjectedFields(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{
			"tokens": [{"cTokenBalance": "100", "market": {"exchangeRate": "1.1"}}]
		}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { tokens { cTokenBalance supplyBalanceUnderlying market { exchangeRate } } } }`,
	})
	require.Empty(t, resp.Errors)

	// User selection and the injected fragment overlap; each upstream field
	// is fetched once.
	require.Equal(t, 1, strings.Count(fake.req.Query, "cTokenBalance"))
	require.Equal(t, 1, strings.Count(fake.req.Query, "exchangeRate"))
	require.Equal(t, 1, strings.Count(fake.req.Query, "market"))
}

func TestRewriteFlattensFragments(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{
		"accounts": [{"id": "0x1", "tokens": [{"cTokenBalance": "1", "market": {"exchangeRate": "1"}}]}]
	}`)}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `
			query {
				accounts { ...accountParts }
			}
			fragment accountParts on Account {
				id
				tokens { supplyBalanceUnderlying }
			}`,
	})

	require.Empty(t, resp.Errors)
	require.NotContains(t, fake.req.Query, "accountParts",
		"fragments must be flattened before the query goes upstream")
	require.Contains(t, fake.req.Query, "cTokenBalance")
}

func TestResolvePassesThroughUpstreamErrors(t *testing.T) {
	fake := &fakeClient{result: &upstream.Result{
		Data:   json.RawMessage("null"),
		Errors: schema.AsGQLErrors(errors.New("indexing in progress")),
	}}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { id } }`,
	})

	require.Len(t, resp.Errors, 1)
	require.Equal(t, "indexing in progress", resp.Errors[0].Message)
	require.Zero(t, resp.Data.Len())
}

func TestResolveUpstreamUnavailable(t *testing.T) {
	fake := &fakeClient{err: errors.Wrap(upstream.ErrUnavailable, "connection refused")}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { id } }`,
	})

	require.Len(t, resp.Errors, 1)
	require.Contains(t, resp.Errors[0].Message, "upstream unavailable")
	require.Zero(t, resp.Data.Len())
}

func TestResolveInvalidQueryNeverGoesUpstream(t *testing.T) {
	fake := &fakeClient{}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `{ accounts { netWorth } }`,
	})

	require.NotEmpty(t, resp.Errors)
	require.Nil(t, fake.req)
}

func TestResolveSubscriptionOverHTTPRejected(t *testing.T) {
	fake := &fakeClient{}
	rr := testResolver(t, fake)

	resp := rr.Resolve(context.Background(), &schema.Request{
		Query: `subscription { accounts { id } }`,
	})

	require.NotEmpty(t, resp.Errors)
	require.Contains(t, resp.Errors[0].Message, "websocket")
	require.Nil(t, fake.req)
}

func TestSubscribeCompletesEveryEvent(t *testing.T) {
	stream := make(chan *upstream.Result, 2)
	stream <- dataResult(`{"accounts": [{"hasBorrowed": false, "tokens": []}]}`)
	stream <- dataResult(`{"accounts": [{"hasBorrowed": false, "tokens": []}, {"hasBorrowed": false, "tokens": []}]}`)
	close(stream)

	fake := &fakeClient{stream: stream}
	rr := testResolver(t, fake)

	payloads, err := rr.Subscribe(context.Background(),
		`subscription { accounts { health } }`, "", nil)
	require.NoError(t, err)

	first := <-payloads
	require.JSONEq(t,
		`{"data": {"accounts": [{"health": null}]}}`,
		string(first.(json.RawMessage)))

	second := <-payloads
	require.JSONEq(t,
		`{"data": {"accounts": [{"health": null}, {"health": null}]}}`,
		string(second.(json.RawMessage)))

	_, open := <-payloads
	require.False(t, open)

	require.NotContains(t, fake.subReq.Query, "health")
	require.Contains(t, fake.subReq.Query, "hasBorrowed")
}

func TestSubscribeRoutesQueriesToHTTP(t *testing.T) {
	fake := &fakeClient{result: dataResult(`{"accounts": [{"id": "0x1"}]}`)}
	rr := testResolver(t, fake)

	payloads, err := rr.Subscribe(context.Background(), `{ accounts { id } }`, "", nil)
	require.NoError(t, err)

	payload := <-payloads
	require.JSONEq(t,
		`{"data": {"accounts": [{"id": "0x1"}]}}`,
		string(payload.(json.RawMessage)))

	_, open := <-payloads
	require.False(t, open)

	require.Nil(t, fake.subReq, "a query must not open an upstream subscription")
	require.NotNil(t, fake.req)
}

func TestSubscribeInvalidDocument(t *testing.T) {
	rr := testResolver(t, &fakeClient{})
	_, err := rr.Subscribe(context.Background(), `subscription { nope }`, "", nil)
	require.Error(t, err)
}
