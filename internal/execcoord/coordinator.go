// Package execcoord drives the two-leg arbitrage trade: buy the cheap leg
// IOC, wait for fills, sell the other leg, then decide whether a partial
// remainder is still worth unwinding at the original edge or must be flattened
// back out at market.
package execcoord

import (
	"context"
	"log/slog"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
	"github.com/fransolofran/mesita-go/internal/erbus"
)

// Direction identifies which leg is bought and which is sold.
type Direction string

const (
	DirARSToUSD Direction = "A2U"
	DirUSDToARS Direction = "U2A"
)

// UnwindMode controls what happens to an unsold remainder after the grace
// window expires.
type UnwindMode string

const (
	UnwindNone   UnwindMode = "none"
	UnwindAlways UnwindMode = "always"
	UnwindSmart  UnwindMode = "smart"
)

// OrderSender is the subset of the Wire Client the coordinator needs to
// place orders; it never reads execution reports directly, those arrive via
// an erbus.Subscription so the coordinator doesn't race other consumers.
type OrderSender interface {
	SendLimit(ctx context.Context, symbol string, side core.Side, qty int64, price float64, tif core.TimeInForce, iceberg bool, displayQty int64) (clientOrderID string, err error)
	SendMarket(ctx context.Context, symbol string, side core.Side, qty int64, tif core.TimeInForce) (clientOrderID string, err error)
}

// Refs is a late-bound snapshot of the reference and implied rate, fetched
// only if a remainder needs an unwind decision so it reflects the book at
// decision time, not at trade-entry time.
type Refs struct {
	Direction    Direction
	Ref          float64
	HaveRef      bool
	ImpliedNow   float64
	HaveImplied  bool
	BookOK       bool
	RemSellPrice float64
	HaveRemPrice bool
}

// RefsProvider fetches a fresh Refs snapshot at unwind-decision time.
type RefsProvider func() Refs

// Config holds the coordinator's timing and edge-tolerance parameters.
type Config struct {
	WaitDuration  time.Duration
	GraceDuration time.Duration
	EdgeTolBps    float64
	ThreshPct     float64
	UnwindMode    UnwindMode
}

// Outcome reports what happened to a two-leg trade.
type Outcome struct {
	Bought  int64
	Sold    int64
	Unwound bool
}

// Coordinator executes the buy-then-sell-then-maybe-unwind sequence.
type Coordinator struct {
	sender OrderSender
	sub    *erbus.Subscription
	cfg    Config
	logger *slog.Logger
}

// New creates a Coordinator. sub must be a non-drop-oldest bus subscription:
// every fill matters to the outcome calculation.
func New(sender OrderSender, sub *erbus.Subscription, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{sender: sender, sub: sub, cfg: cfg, logger: logger}
}

// LegBuyThenSellSmart buys buySymbol IOC at buyPrice (or at market if
// buyPrice is not set), waits up to cfg.WaitDuration for fills, sells the
// filled quantity at sellPrice (DAY) or market, waits up to
// cfg.GraceDuration for the sell to complete, then resolves any remainder
// per cfg.UnwindMode.
func (c *Coordinator) LegBuyThenSellSmart(
	ctx context.Context,
	buySymbol string, buyPrice float64, haveBuyPrice bool, buyQtyCap int64,
	sellSymbol string, sellPrice float64, haveSellPrice bool,
	getRefs RefsProvider,
) (Outcome, error) {
	if haveBuyPrice {
		if _, err := c.sender.SendLimit(ctx, buySymbol, core.SideBuy, buyQtyCap, buyPrice, core.TIFIOC, false, 0); err != nil {
			return Outcome{}, err
		}
	} else {
		if _, err := c.sender.SendMarket(ctx, buySymbol, core.SideBuy, buyQtyCap, core.TIFIOC); err != nil {
			return Outcome{}, err
		}
	}

	bought := c.accumulateFills(ctx, buySymbol, core.SideBuy, c.cfg.WaitDuration)
	if bought <= 0 {
		return Outcome{Bought: 0, Sold: 0, Unwound: false}, nil
	}

	if haveSellPrice {
		if _, err := c.sender.SendLimit(ctx, sellSymbol, core.SideSell, bought, sellPrice, core.TIFDay, false, 0); err != nil {
			return Outcome{Bought: bought}, err
		}
	} else {
		if _, err := c.sender.SendMarket(ctx, sellSymbol, core.SideSell, bought, core.TIFIOC); err != nil {
			return Outcome{Bought: bought}, err
		}
	}

	sold := c.accumulateFillsUntil(ctx, sellSymbol, core.SideSell, c.cfg.GraceDuration, bought)

	remainder := bought - sold
	if remainder <= 0 || c.cfg.UnwindMode == UnwindNone {
		return Outcome{Bought: bought, Sold: sold, Unwound: false}, nil
	}

	if c.cfg.UnwindMode == UnwindAlways {
		if _, err := c.sender.SendMarket(ctx, buySymbol, core.SideSell, remainder, core.TIFIOC); err != nil {
			return Outcome{Bought: bought, Sold: sold}, err
		}
		return Outcome{Bought: bought, Sold: sold, Unwound: true}, nil
	}

	refs := getRefs()
	stillEdge, breakEven := EdgeOK(refs, c.cfg.ThreshPct, c.cfg.EdgeTolBps)

	if refs.BookOK && (stillEdge || breakEven) {
		if refs.HaveRemPrice {
			if _, err := c.sender.SendLimit(ctx, sellSymbol, core.SideSell, remainder, refs.RemSellPrice, core.TIFIOC, false, 0); err != nil {
				return Outcome{Bought: bought, Sold: sold}, err
			}
		} else {
			if _, err := c.sender.SendMarket(ctx, sellSymbol, core.SideSell, remainder, core.TIFIOC); err != nil {
				return Outcome{Bought: bought, Sold: sold}, err
			}
		}
		return Outcome{Bought: bought, Sold: sold, Unwound: false}, nil
	}

	if _, err := c.sender.SendMarket(ctx, buySymbol, core.SideSell, remainder, core.TIFIOC); err != nil {
		return Outcome{Bought: bought, Sold: sold}, err
	}
	return Outcome{Bought: bought, Sold: sold, Unwound: true}, nil
}

// accumulateFills sums fill quantities for symbol/side matching reports
// received within duration.
func (c *Coordinator) accumulateFills(ctx context.Context, symbol string, side core.Side, duration time.Duration) int64 {
	return c.accumulateFillsUntil(ctx, symbol, side, duration, -1)
}

// accumulateFillsUntil sums fills like accumulateFills, but exits early once
// the running total reaches target (pass a negative target to disable the
// early exit).
func (c *Coordinator) accumulateFillsUntil(ctx context.Context, symbol string, side core.Side, duration time.Duration, target int64) int64 {
	deadline := time.Now().Add(duration)
	var total int64

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return total
		}
		waitCtx, cancel := context.WithTimeout(ctx, remaining)
		report, ok := c.sub.Receive(waitCtx)
		cancel()
		if !ok {
			return total
		}
		if report.Symbol == symbol && report.Side == side &&
			(report.Status == core.StatusFilled || report.Status == core.StatusPartiallyFilled) {
			total += int64(report.Qty)
			if target >= 0 && total >= target {
				return total
			}
		}
	}
}

// EdgeOK reports whether the implied rate still clears the original
// threshold plus tolerance (stillEdge), or at least breaks even within
// tolerance (breakEven), for the given direction.
func EdgeOK(refs Refs, threshPct, tolBps float64) (stillEdge, breakEven bool) {
	if !refs.HaveImplied || !refs.HaveRef || refs.ImpliedNow == 0 || refs.Ref == 0 {
		return false, false
	}
	tol := tolBps / 10000.0
	switch refs.Direction {
	case DirARSToUSD:
		return refs.ImpliedNow <= refs.Ref*(1-threshPct-tol), refs.ImpliedNow <= refs.Ref*(1-tol)
	default:
		return refs.ImpliedNow >= refs.Ref*(1+threshPct+tol), refs.ImpliedNow >= refs.Ref*(1+tol)
	}
}
