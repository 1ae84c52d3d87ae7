package coinbase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/prices/BTC-USD/spot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"amount":"91234.56","currency":"USD"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "BTC-USD")
	price, err := c.SpotPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 91234.56, price)
}

func TestSpotPriceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "BTC-USD").SpotPrice(context.Background())
	assert.Error(t, err)
}

func TestSpotPriceBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"amount":"not-a-number"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "BTC-USD").SpotPrice(context.Background())
	assert.Error(t, err)
}
