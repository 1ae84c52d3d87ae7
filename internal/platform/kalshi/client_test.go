package kalshi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func newSignedClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	c := NewClient(baseURL, "test-key-id")
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))
	return c
}

func TestEventMarketsMapsOpenMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/KXBTCD-25AUG2915", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-TIMESTAMP"))

		_, _ = w.Write([]byte(`{"markets":[
			{"ticker":"KXBTCD-25AUG2915-T90499.99","status":"open","floor_strike":90499.99,"no_bid":83,"no_ask":85},
			{"ticker":"KXBTCD-25AUG2915-T89999.99","status":"settled","floor_strike":89999.99,"no_bid":0,"no_ask":0}
		]}`))
	}))
	defer srv.Close()

	quotes, err := newSignedClient(t, srv.URL).EventMarkets(context.Background(), "KXBTCD-25AUG2915")
	require.NoError(t, err)
	require.Len(t, quotes, 1, "settled markets are dropped")
	assert.Equal(t, 90499.99, quotes[0].Strike)
	assert.Equal(t, 85.0, quotes[0].NoAsk)
	assert.Equal(t, 83.0, quotes[0].NoBid)
}

func TestBalanceConvertsCents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"balance":12345}`))
	}))
	defer srv.Close()

	bal, err := newSignedClient(t, srv.URL).Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 123.45, bal)
}

func TestCreateOrderBuildsLimitBuy(t *testing.T) {
	var captured OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"order":{"order_id":"ord-1","status":"resting"}}`))
	}))
	defer srv.Close()

	res, err := newSignedClient(t, srv.URL).CreateOrder(context.Background(), domain.OrderRequest{
		Ticker:     "KXBTCD-25AUG2915-T90499.99",
		Contracts:  5,
		PriceCents: 85,
		Action:     domain.TradeActionOpen,
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, domain.OrderStatusResting, res.Status)
	assert.Equal(t, "buy", captured.Action)
	assert.Equal(t, "no", captured.Side)
	assert.Equal(t, "limit", captured.Type)
	require.NotNil(t, captured.NoPrice)
	assert.Equal(t, int64(85), *captured.NoPrice)
	assert.NotEmpty(t, captured.ClientOrderID)
}

func TestCreateOrderBuildsMarketSell(t *testing.T) {
	var captured OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"order":{"order_id":"ord-2","status":"executed"}}`))
	}))
	defer srv.Close()

	res, err := newSignedClient(t, srv.URL).CreateOrder(context.Background(), domain.OrderRequest{
		Ticker:    "KXBTCD-25AUG2915-T90499.99",
		Contracts: 5,
		Action:    domain.TradeActionLiquidate,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusFilled, res.Status)
	assert.Equal(t, "sell", captured.Action)
	assert.Equal(t, "market", captured.Type)
	assert.Nil(t, captured.NoPrice)
}

func TestGetOrderStatusMapping(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"executed": domain.OrderStatusFilled,
		"resting":  domain.OrderStatusResting,
		"pending":  domain.OrderStatusPending,
		"canceled": domain.OrderStatusCancelled,
		"weird":    domain.OrderStatusRejected,
	}
	for apiStatus, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"order":{"order_id":"ord-3","status":"` + apiStatus + `"}}`))
		}))
		got, err := newSignedClient(t, srv.URL).GetOrder(context.Background(), "ord-3")
		srv.Close()
		require.NoError(t, err)
		assert.Equalf(t, want, got, "api status %q", apiStatus)
	}
}

func TestNotFoundMapsToDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","message":"order not found"}`))
	}))
	defer srv.Close()

	err := newSignedClient(t, srv.URL).CancelOrder(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPositionsKeepsNoSideOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"market_positions":[
			{"ticker":"NO-POS","position":-7},
			{"ticker":"YES-POS","position":3}
		]}`))
	}))
	defer srv.Close()

	positions, err := newSignedClient(t, srv.URL).Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "NO-POS", positions[0].Ticker)
	assert.Equal(t, 7, positions[0].Contracts)
}

func TestUnsignedClientRefusesPortfolioCalls(t *testing.T) {
	c := NewClient("http://unused", "key")
	_, err := c.Balance(context.Background())
	assert.ErrorContains(t, err, "RSA private key not configured")
}

func TestUnsignedClientReadsPublicQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		_, _ = w.Write([]byte(`{"markets":[
			{"ticker":"KXBTCD-25AUG2915-T90499.99","status":"open","floor_strike":90499.99,"no_bid":83,"no_ask":85}
		]}`))
	}))
	defer srv.Close()

	quotes, err := NewClient(srv.URL, "key").EventMarkets(context.Background(), "KXBTCD-25AUG2915")
	require.NoError(t, err)
	assert.Len(t, quotes, 1)
}
