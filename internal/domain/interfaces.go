package domain

// SymbolRegistry translates (venue, symbol-string) pairs to dense ids and
// back. Registration is idempotent.
type SymbolRegistry interface {
	GetSymbolID(exchange, symbol string) (SymbolID, bool)
	RegisterSymbol(info SymbolInfo) SymbolID
	GetSymbolInfo(id SymbolID) (SymbolInfo, bool)
}

// OrderTracker is the authoritative per-order state machine. Executors call
// exactly one of these per venue-level success; venue failures and transport
// errors never advance the tracker.
type OrderTracker interface {
	OnSubmitted(order Order, exchangeOrderID, clientOrderID string)
	OnCanceled(id OrderID)
	OnReplaced(oldID OrderID, newOrder Order, exchangeOrderID, clientOrderID string)
	Get(id OrderID) (OrderState, bool)
}

// ExchangeConnector is the lifecycle surface of a venue connector.
// Start is idempotent; Stop joins all owned goroutines before returning.
type ExchangeConnector interface {
	Start() error
	Stop()
}

// OrderExecutor submits, cancels and replaces orders on a venue. All three
// return immediately; outcomes arrive asynchronously via the tracker.
type OrderExecutor interface {
	SubmitOrder(order Order)
	CancelOrder(id OrderID)
	ReplaceOrder(oldID OrderID, newOrder Order)
}
