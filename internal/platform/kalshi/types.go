package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API. Only the
// fields the bot reads are mapped.
type Market struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	YesBid         float64 `json:"yes_bid"`
	YesAsk         float64 `json:"yes_ask"`
	NoBid          float64 `json:"no_bid"`
	NoAsk          float64 `json:"no_ask"`
	LastPrice      float64 `json:"last_price"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	StrikeType     string  `json:"strike_type"`
	FloorStrike    float64 `json:"floor_strike"`
	CapStrike      float64 `json:"cap_strike"`
	Result         string  `json:"result"` // "yes", "no", "" (unsettled)
	ExpirationTime string  `json:"expiration_time"`
	CloseTime      string  `json:"close_time"`
}

// OrderRequest is the payload for placing an order.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int64  `json:"count"`
	NoPrice       *int64 `json:"no_price,omitempty"` // limit price in cents (1-99)
	BuyMaxCost    *int64 `json:"buy_max_cost,omitempty"`
}

// Order is the order object embedded in order responses.
type Order struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
	Action         string `json:"action"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	NoPrice        int64  `json:"no_price"`
	RemainingCount int64  `json:"remaining_count"`
	TakerFillCount int64  `json:"taker_fill_count"`
	MakerFillCount int64  `json:"maker_fill_count"`
	PlacedTime     string `json:"placed_time"`
	LastUpdateTime string `json:"last_update_time"`
}

// orderEnvelope wraps single-order responses.
type orderEnvelope struct {
	Order Order `json:"order"`
}

// balanceEnvelope wraps the portfolio balance response.
type balanceEnvelope struct {
	Balance int64 `json:"balance"` // cents
}

// MarketPosition is one entry of the portfolio positions response. Position
// is the signed net contract count: positive for YES, negative for NO.
type MarketPosition struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"`
	MarketExposure int64  `json:"market_exposure"` // cents
	TotalTraded    int64  `json:"total_traded"`
	RestingOrders  int64  `json:"resting_orders_count"`
}

// ErrorResponse represents a Kalshi API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
