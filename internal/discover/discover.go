// Package discover finds tradeable ARS/USD instrument pairs by naming
// convention and keeps the set fresh with a periodic reconciliation loop.
package discover

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fransolofran/mesita-go/internal/api"
	"github.com/fransolofran/mesita-go/internal/core"
)

// InstrumentSource lists every tradeable instrument symbol known to the
// venue. Satisfied by *api.Client in production; fakeable in tests.
type InstrumentSource interface {
	GetInstruments(ctx context.Context) ([]api.Instrument, error)
}

// BuildPairs derives ARS/USD pairs from a flat instrument list: any symbol
// ending in "D" is a USD twin, and it forms a pair with its ARS leg (the
// same symbol with the trailing "D" stripped) if that leg also exists.
// Mirrors the venue convention used across the control and wire packages.
func BuildPairs(instruments []api.Instrument) []core.Pair {
	exists := make(map[string]struct{}, len(instruments))
	for _, inst := range instruments {
		if inst.Symbol != "" {
			exists[inst.Symbol] = struct{}{}
		}
	}

	seen := make(map[core.Pair]struct{})
	var pairs []core.Pair
	for sym := range exists {
		if !strings.HasSuffix(sym, "D") {
			continue
		}
		ars := strings.TrimSuffix(sym, "D")
		if _, ok := exists[ars]; !ok {
			continue
		}
		p, err := core.NewPair(ars, sym)
		if err != nil {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ARSSymbol != pairs[j].ARSSymbol {
			return pairs[i].ARSSymbol < pairs[j].ARSSymbol
		}
		return pairs[i].USDSymbol < pairs[j].USDSymbol
	})
	return pairs
}

// Registry holds the current set of discovered pairs and refreshes it on
// a timer, in the teacher's reconciliation-loop style: fetch the full
// list, diff against what's held, and log only when something changed.
type Registry struct {
	source InstrumentSource
	logger *slog.Logger

	mu              sync.RWMutex
	pairs           []core.Pair
	refreshInterval time.Duration
}

func NewRegistry(source InstrumentSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{source: source, logger: logger}
}

// SetRefreshInterval changes the cadence Run polls on, picked up at the start
// of the next cycle. Lets the Control Channel adjust instrument_refresh_s
// without restarting the registry.
func (r *Registry) SetRefreshInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshInterval = d
}

func (r *Registry) getRefreshInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshInterval
}

// Pairs returns the current pair set.
func (r *Registry) Pairs() []core.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Pair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

// Refresh fetches the instrument list once and updates the held pair set,
// returning whether it changed.
func (r *Registry) Refresh(ctx context.Context) (changed bool, err error) {
	instruments, err := r.source.GetInstruments(ctx)
	if err != nil {
		return false, err
	}
	next := BuildPairs(instruments)

	r.mu.Lock()
	changed = !samePairs(r.pairs, next)
	if changed {
		r.pairs = next
	}
	r.mu.Unlock()

	if changed {
		r.logger.Info("instrument pairs changed", "count", len(next))
	}
	return changed, nil
}

// Run polls Refresh on interval until ctx is cancelled. Errors are logged
// and do not stop the loop, since a single failed REST call should not
// take the pair set offline. The interval is re-read before each wait, so a
// Control Channel override via SetRefreshInterval takes effect on the next
// cycle rather than requiring a restart.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	r.SetRefreshInterval(interval)

	timer := time.NewTimer(r.getRefreshInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := r.Refresh(ctx); err != nil {
				r.logger.Error("instrument refresh failed", "err", err)
			}
			timer.Reset(r.getRefreshInterval())
		}
	}
}

func samePairs(a, b []core.Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
