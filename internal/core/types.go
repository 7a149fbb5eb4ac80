package core

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an order or execution report.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the lifecycle state of an order as reported by the venue.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports that this status will not transition further for its order_id.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}

// Filled reports whether qty on this report represents a real fill.
func (s OrderStatus) Filled() bool {
	return s == StatusFilled || s == StatusPartiallyFilled
}

// TimeInForce selects order expiry semantics.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFIOC TimeInForce = "IOC"
)

// TopOfBook is the best bid/ask for a symbol at a point in time.
//
// Bid, Ask, BidQty, AskQty are all >= 0. Timestamp is the Wire Client's local
// receive time, not an exchange timestamp (the venue does not provide one on
// market-data messages).
type TopOfBook struct {
	Symbol    string
	Timestamp time.Time
	Bid       float64
	Ask       float64
	BidQty    float64
	AskQty    float64
}

// Valid reports whether a TopOfBook has a complete two-sided quote.
func (q TopOfBook) Valid() bool {
	return q.Bid > 0 && q.Ask > 0
}

// ExecReport is a venue-generated lifecycle event for an order.
//
// Once Status is Terminal() for a given OrderID, no further reports for that
// order_id are expected. ExecReports are immutable once produced by the Wire
// Client and are consumed at most once per logical consumer (spec invariant:
// applying the same report twice to the Reconciler is not idempotent).
type ExecReport struct {
	Timestamp     time.Time
	Symbol        string
	Side          Side
	Price         float64
	Qty           float64
	Status        OrderStatus
	OrderID       string
	ClientOrderID string
}

// Pair links an ARS-denominated bond listing to its USD-denominated twin.
// The naming convention is fixed by the venue: the USD symbol is the ARS
// symbol with a trailing "D".
type Pair struct {
	ARSSymbol string
	USDSymbol string
}

// NewPair validates the "SYM"/"SYMD" naming convention and constructs a Pair.
func NewPair(arsSymbol, usdSymbol string) (Pair, error) {
	if usdSymbol != arsSymbol+"D" {
		return Pair{}, fmt.Errorf("core: %q is not the USD twin of %q (expected %q)", usdSymbol, arsSymbol, arsSymbol+"D")
	}
	return Pair{ARSSymbol: arsSymbol, USDSymbol: usdSymbol}, nil
}

// PairFromUSDSymbol derives a Pair from a USD-suffixed symbol, or reports ok=false
// if sym does not end in "D".
func PairFromUSDSymbol(sym string) (p Pair, ok bool) {
	if !strings.HasSuffix(sym, "D") || len(sym) < 2 {
		return Pair{}, false
	}
	ars := strings.TrimSuffix(sym, "D")
	return Pair{ARSSymbol: ars, USDSymbol: sym}, true
}

// Symbols returns the pair's two constituent symbols.
func (p Pair) Symbols() [2]string {
	return [2]string{p.ARSSymbol, p.USDSymbol}
}

// Cash holds available balances in each currency leg.
//
// Values may be negative transiently if reconciled from fills only (before
// the first authoritative account refresh arrives).
type Cash struct {
	ARS float64
	USD float64
}

// Positions is a mapping from symbol to signed integer quantity. The absence
// of a key is equivalent to a zero position; entries are removed once their
// quantity nets to zero.
type Positions map[string]int64

// Clone returns an independent copy of the position map.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
