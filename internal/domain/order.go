package domain

// OrderStatus tracks the broker-side lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusResting   OrderStatus = "resting"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// TradeAction classifies what a confirmed fill does to the position.
type TradeAction string

const (
	TradeActionOpen      TradeAction = "open"
	TradeActionAdd       TradeAction = "add"
	TradeActionLiquidate TradeAction = "liquidate"
)

// OrderRequest describes an order to submit. All orders are on the NO side
// (pay off if the underlying stays below the strike). PriceCents == 0 means
// a market order, used only for liquidations.
type OrderRequest struct {
	Ticker     string
	Contracts  int
	PriceCents float64
	Action     TradeAction
}

// Market reports whether the request is a market order.
func (r OrderRequest) Market() bool {
	return r.PriceCents == 0
}

// OrderResult is the broker's response to a submission or status poll.
type OrderResult struct {
	OrderID string
	Status  OrderStatus
}

// BrokerPosition is a position as reported by the broker, used once at
// startup to log discrepancies against the ledger.
type BrokerPosition struct {
	Ticker    string
	Contracts int
}
