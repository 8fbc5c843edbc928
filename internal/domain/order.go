package domain

// PlaceOrderRequest is sent to the CLOB order executor.
type PlaceOrderRequest struct {
	TokenID string
	Price   float64
	Shares  float64
	Side    string // "BUY"
	NegRisk bool
}

// PlacedOrder is the response from the CLOB after placing an order.
type PlacedOrder struct {
	OrderID     string
	Status      string
	TakenAmount float64 // filled inmediatamente (taker)
	MadeAmount  float64 // resting en el book (maker)
}
