// Package coinbase fetches the BTC reference price from the Coinbase spot
// price API.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client is a minimal REST client for the public spot price endpoint.
type Client struct {
	baseURL    string
	productID  string
	httpClient *http.Client
}

// NewClient creates a spot price client. baseURL is the API root, e.g.
// "https://api.coinbase.com"; productID names the pair, e.g. "BTC-USD".
func NewClient(baseURL, productID string) *Client {
	return &Client{
		baseURL:   baseURL,
		productID: productID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SpotPrice returns the current spot price in USD.
func (c *Client) SpotPrice(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/v2/prices/%s/spot", c.baseURL, c.productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("coinbase: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coinbase: spot request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("coinbase: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coinbase: spot HTTP %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("coinbase: decode spot response: %w", err)
	}

	price, err := strconv.ParseFloat(parsed.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parse amount %q: %w", parsed.Data.Amount, err)
	}
	return price, nil
}
