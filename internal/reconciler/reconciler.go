// Package reconciler tracks approximate cash and per-symbol positions by
// applying execution reports as they arrive. In er_reconcile balance mode it
// is the source of truth for cash; in risk_poll mode cash comes from the
// REST account report and the reconciler is consulted only for positions
// (e.g. to flatten on a force-flatten control command).
package reconciler

import (
	"strings"
	"sync"

	"github.com/fransolofran/mesita-go/internal/core"
)

// Reconciler applies execution reports to running cash and position totals.
// Safe for concurrent use from the Execution-Report Bus subscriber goroutine
// and from the trading loop reading snapshots.
type Reconciler struct {
	mu  sync.RWMutex
	ars float64
	usd float64
	pos map[string]int64
}

// New creates a Reconciler seeded with the account's starting cash balances.
func New(initialARS, initialUSD float64) *Reconciler {
	return &Reconciler{ars: initialARS, usd: initialUSD, pos: make(map[string]int64)}
}

// ApplyER folds a single execution report into cash and positions. Reports
// with a terminal status other than filled/partially-filled are ignored: a
// reject or cancel moves nothing. Qty is treated as the incremental fill
// size carried by this report, not a cumulative total.
//
// The USD leg (symbol ending in "D") is denominated in 1-USD-nominal units,
// so its cash effect is the raw quantity with no price multiplication; the
// ARS leg's cash effect is quantity times price.
func (r *Reconciler) ApplyER(er core.ExecReport) {
	if er.Status != core.StatusFilled && er.Status != core.StatusPartiallyFilled {
		return
	}
	if er.Qty <= 0 {
		return
	}
	symbol := strings.ToUpper(er.Symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	sign := int64(-1)
	if er.Side == core.SideBuy {
		sign = 1
	}
	r.pos[symbol] += sign * int64(er.Qty)
	if r.pos[symbol] == 0 {
		delete(r.pos, symbol)
	}

	if strings.HasSuffix(symbol, "D") {
		switch er.Side {
		case core.SideSell:
			r.usd += er.Qty
		case core.SideBuy:
			r.usd -= er.Qty
		}
		return
	}

	notionalARS := er.Qty * er.Price
	switch er.Side {
	case core.SideBuy:
		r.ars -= notionalARS
	case core.SideSell:
		r.ars += notionalARS
	}
}

// FullRefresh overwrites cash with a fresh value polled from the REST
// account report, used by the periodic refresh in er_reconcile balance mode
// to correct drift.
func (r *Reconciler) FullRefresh(ars, usd float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ars = ars
	r.usd = usd
}

// Cash returns the current ARS/USD balances.
func (r *Reconciler) Cash() core.Cash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return core.Cash{ARS: r.ars, USD: r.usd}
}

// SnapshotPositions returns a copy of the per-symbol position map.
func (r *Reconciler) SnapshotPositions() core.Positions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(core.Positions, len(r.pos))
	for k, v := range r.pos {
		out[k] = v
	}
	return out
}
