// Package signal implements the pure decision rules that turn a pair of
// top-of-book quotes into a trade-or-not verdict: the implied MEP rate, how
// much ARS notional the book can actually absorb, and whether the implied
// rate clears the reference by the configured threshold.
package signal

import (
	"math"

	"github.com/fransolofran/mesita-go/internal/core"
)

// ImpliedA2U is the implied ARS->USD conversion rate of buying the ARS leg
// at its ask and selling the USD leg at its bid: ars.ask / usd.bid. The
// second return is false if either side has no quote yet.
func ImpliedA2U(ars, usd core.TopOfBook) (float64, bool) {
	if ars.Ask <= 0 || usd.Bid <= 0 {
		return 0, false
	}
	return ars.Ask / usd.Bid, true
}

// ImpliedU2A is the implied USD->ARS conversion rate of selling the ARS leg
// at its bid and buying the USD leg at its ask: ars.bid / usd.ask.
func ImpliedU2A(ars, usd core.TopOfBook) (float64, bool) {
	if ars.Bid <= 0 || usd.Ask <= 0 {
		return 0, false
	}
	return ars.Bid / usd.Ask, true
}

// OperableARSA2U bounds the ARS notional a round trip could move in the
// ARS->USD direction, by the smaller of the ARS-leg ask depth and the
// USD-leg bid depth converted back to ARS terms via implied.
func OperableARSA2U(ars, usd core.TopOfBook, implied float64) float64 {
	if implied <= 0 {
		return 0
	}
	return math.Min(ars.AskQty*ars.Ask, usd.BidQty*usd.Bid*implied)
}

// OperableARSU2A is the USD->ARS-direction counterpart of OperableARSA2U.
func OperableARSU2A(ars, usd core.TopOfBook, impliedRev float64) float64 {
	if impliedRev <= 0 {
		return 0
	}
	return math.Min(ars.BidQty*ars.Bid, usd.AskQty*usd.Ask*impliedRev)
}

// NomFromARS converts an ARS cash amount into a whole-unit nominal size at
// the given ARS price, floored to avoid over-committing cash.
func NomFromARS(amountARS, priceARS float64) int64 {
	if priceARS <= 0 {
		return 0
	}
	n := int64(math.Floor(amountARS / priceARS))
	if n < 0 {
		return 0
	}
	return n
}

// ARSToUSD reports whether the ARS->USD implied rate clears the reference by
// thresh (a fraction, e.g. 0.002 for 20bps) and the book can move at least
// minNotional in ARS terms.
func ARSToUSD(implied, refA2U float64, haveRef bool, operableARS, minNotional, thresh float64) bool {
	if !haveRef || operableARS < minNotional {
		return false
	}
	return implied <= refA2U*(1-thresh)
}

// USDToARS reports whether the USD->ARS implied rate clears the reference by
// thresh and the book can move at least minNotional in ARS terms.
func USDToARS(impliedRev, refU2A float64, haveRef bool, operableARS, minNotional, thresh float64) bool {
	if !haveRef || operableARS < minNotional {
		return false
	}
	return impliedRev >= refU2A*(1+thresh)
}

// SizeCap is the nominal quantity a candidate trade is capped to, and the
// reasons behind the cap, used for trace logging.
type SizeCap struct {
	CapByDepth int64
	CapByCash  int64
	Nominal    int64
}

// CapA2U sizes an ARS->USD trade: bounded by book depth on both legs and by
// available ARS cash at the ARS ask price.
func CapA2U(ars, usd core.TopOfBook, cashARS float64) SizeCap {
	capDepth := int64(math.Min(usd.BidQty, ars.AskQty))
	capCash := NomFromARS(cashARS, ars.Ask)
	return SizeCap{CapByDepth: capDepth, CapByCash: capCash, Nominal: minInt64(capDepth, capCash)}
}

// CapU2A sizes a USD->ARS trade: bounded by book depth on both legs and by
// available USD cash at the USD ask price.
func CapU2A(ars, usd core.TopOfBook, cashUSD float64) SizeCap {
	capDepth := int64(math.Min(ars.BidQty, usd.AskQty))
	capCash := int64(0)
	if usd.Ask > 0 {
		capCash = int64(math.Floor(cashUSD / usd.Ask))
	}
	if capCash < 0 {
		capCash = 0
	}
	return SizeCap{CapByDepth: capDepth, CapByCash: capCash, Nominal: minInt64(capDepth, capCash)}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
