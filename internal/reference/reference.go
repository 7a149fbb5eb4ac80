// Package reference maintains the MEP conversion-rate estimate used to judge
// whether a quote is attractive enough to trade: an instantaneous (tick)
// value and a time-weighted EMA with a configurable half-life, combined
// conservatively in hybrid mode.
package reference

import (
	"math"
	"sync"
	"time"
)

// Mode selects which of the instantaneous and EMA estimates Ref returns.
type Mode string

const (
	// ModeTick returns the latest instantaneous ratio only.
	ModeTick Mode = "tick"
	// ModeHybrid returns the conservative (direction-dependent) combination
	// of the instantaneous and EMA ratios.
	ModeHybrid Mode = "hybrid"
)

// Estimator tracks the ARS->USD (a2u) and USD->ARS (u2a) conversion ratios
// implied by the AL30/AL30D top-of-book quotes. It is safe for concurrent
// use: both the trading loop and the latency probe's half-life retune touch
// it.
type Estimator struct {
	mu sync.Mutex

	halfLife time.Duration
	tau      float64 // halfLife / ln(2); zero means EMA is disabled (pure tick mode)

	lastTS time.Time
	haveTS bool

	instA2U, instU2A     float64
	haveInstA2U, haveInstU2A bool
	emaA2U, emaU2A       float64
	haveEMAA2U, haveEMAU2A bool
}

// New creates an Estimator with the given half-life. A non-positive half-life
// disables the EMA entirely, making Ref(ModeHybrid, ...) degenerate to the
// instantaneous value.
func New(halfLife time.Duration) *Estimator {
	e := &Estimator{halfLife: halfLife}
	e.setHalfLifeLocked(halfLife)
	return e
}

func (e *Estimator) setHalfLifeLocked(halfLife time.Duration) {
	e.halfLife = halfLife
	if halfLife <= 0 {
		e.tau = 0
		return
	}
	e.tau = halfLife.Seconds() / math.Ln2
}

// Retune changes the half-life used for future updates, used by the latency
// probe to tighten or loosen the EMA as measured round-trip time changes.
func (e *Estimator) Retune(halfLife time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setHalfLifeLocked(halfLife)
}

// HalfLife returns the half-life currently in effect.
func (e *Estimator) HalfLife() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halfLife
}

func safeRatio(num, den float64) (float64, bool) {
	if num > 0 && den > 0 {
		return num / den, true
	}
	return 0, false
}

// Update folds in a new top-of-book observation. askARS/bidUSD drive the
// ARS->USD ratio; bidARS/askUSD drive the USD->ARS ratio. Either pair may be
// zero if that side of the book has not quoted yet.
func (e *Estimator) Update(ts time.Time, askARS, bidUSD, bidARS, askUSD float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a2uNow, haveA2U := safeRatio(askARS, bidUSD)
	u2aNow, haveU2A := safeRatio(bidARS, askUSD)
	if haveA2U {
		e.instA2U, e.haveInstA2U = a2uNow, true
	}
	if haveU2A {
		e.instU2A, e.haveInstU2A = u2aNow, true
	}

	if e.tau == 0 {
		e.emaA2U, e.haveEMAA2U = e.instA2U, e.haveInstA2U
		e.emaU2A, e.haveEMAU2A = e.instU2A, e.haveInstU2A
		e.lastTS, e.haveTS = ts, true
		return
	}

	if !e.haveTS {
		e.emaA2U, e.haveEMAA2U = a2uNow, haveA2U
		e.emaU2A, e.haveEMAU2A = u2aNow, haveU2A
		e.lastTS, e.haveTS = ts, true
		return
	}

	dt := ts.Sub(e.lastTS).Seconds()
	if dt < 0 {
		dt = 0
	}
	e.lastTS = ts
	if dt == 0 || (!haveA2U && !haveU2A) {
		return
	}

	alpha := 1.0 - math.Exp(-dt/e.tau)
	if haveA2U {
		prev := a2uNow
		if e.haveEMAA2U {
			prev = e.emaA2U
		}
		e.emaA2U = (1-alpha)*prev + alpha*a2uNow
		e.haveEMAA2U = true
	}
	if haveU2A {
		prev := u2aNow
		if e.haveEMAU2A {
			prev = e.emaU2A
		}
		e.emaU2A = (1-alpha)*prev + alpha*u2aNow
		e.haveEMAU2A = true
	}
}

// RefA2U returns the ARS->USD reference ratio for the given mode, and false
// if no observation is available yet.
func (e *Estimator) RefA2U(mode Mode) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == ModeTick {
		return e.instA2U, e.haveInstA2U
	}
	// hybrid: conservative lower bound (cheap conversion assumed true)
	switch {
	case e.haveInstA2U && e.haveEMAA2U:
		return math.Min(e.instA2U, e.emaA2U), true
	case e.haveInstA2U:
		return e.instA2U, true
	case e.haveEMAA2U:
		return e.emaA2U, true
	default:
		return 0, false
	}
}

// RefU2A returns the USD->ARS reference ratio for the given mode, and false
// if no observation is available yet.
func (e *Estimator) RefU2A(mode Mode) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == ModeTick {
		return e.instU2A, e.haveInstU2A
	}
	// hybrid: conservative upper bound (expensive conversion assumed true)
	switch {
	case e.haveInstU2A && e.haveEMAU2A:
		return math.Max(e.instU2A, e.emaU2A), true
	case e.haveInstU2A:
		return e.instU2A, true
	case e.haveEMAU2A:
		return e.emaU2A, true
	default:
		return 0, false
	}
}
