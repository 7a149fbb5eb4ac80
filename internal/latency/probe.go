// Package latency periodically measures round-trip time to the venue with an
// unfillable IOC order and uses the rolling median to retune the reference
// estimator's EMA half-life: a slower venue gets a longer half-life so the
// reference doesn't chase noise it can't react to in time.
package latency

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
	"github.com/fransolofran/mesita-go/internal/erbus"
	"github.com/fransolofran/mesita-go/internal/reference"
)

const ringCapacity = 120

// ring is a fixed-capacity circular buffer of millisecond RTT samples. O(1)
// insertion, no allocation on overwrite once full.
type ring struct {
	buf   [ringCapacity]float64
	count int
	head  int
}

func (r *ring) add(ms float64) {
	idx := (r.head + r.count) % ringCapacity
	r.buf[idx] = ms
	if r.count < ringCapacity {
		r.count++
	} else {
		r.head = (r.head + 1) % ringCapacity
	}
}

func (r *ring) medianMs() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	samples := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		samples[i] = r.buf[(r.head+i)%ringCapacity]
	}
	sortFloats(samples)
	mid := len(samples) / 2
	if len(samples)%2 == 1 {
		return samples[mid], true
	}
	return (samples[mid-1] + samples[mid]) / 2, true
}

func sortFloats(s []float64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// OrderSender is the subset of the Wire Client the probe needs: a way to
// fire an unfillable IOC order and learn its client order id.
type OrderSender interface {
	SendLimit(ctx context.Context, symbol string, side core.Side, qty int64, price float64, tif core.TimeInForce, iceberg bool, displayQty int64) (clientOrderID string, err error)
	SubscribedSymbols() []string
}

// Config tunes retune behavior.
type Config struct {
	ProbeInterval time.Duration
	Tune          bool
	TuneFactor    float64
	MinHalfLife   time.Duration
	MaxHalfLife   time.Duration
}

// Probe periodically measures RTT and retunes an Estimator.
type Probe struct {
	sender OrderSender
	sub    *erbus.Subscription
	ref    *reference.Estimator
	logger *slog.Logger

	cfgMu sync.RWMutex
	cfg   Config

	rtt ring
}

// New creates a Probe. sub must be a bus subscription configured with
// dropOldest=true: a stale in-flight probe's execution report is worthless
// once a newer probe has been fired.
func New(sender OrderSender, sub *erbus.Subscription, ref *reference.Estimator, cfg Config, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{sender: sender, sub: sub, ref: ref, cfg: cfg, logger: logger}
}

// SetConfig replaces the probe's tuning parameters, picked up at the start of
// the next interval and by the next retune. Lets the Control Channel adjust
// LAT_PROBE_S/REF_K/REF_MIN_HL_S/REF_MAX_HL_S/REF_TUNE without restarting
// the probe.
func (p *Probe) SetConfig(cfg Config) {
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	p.cfg = cfg
}

func (p *Probe) getConfig() Config {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

// Run fires probes on cfg.ProbeInterval until ctx is canceled, re-reading the
// interval before each wait so a Control Channel override takes effect on
// the next cycle rather than requiring a restart.
func (p *Probe) Run(ctx context.Context) {
	interval := p.getConfig().ProbeInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.fireOnce(ctx)
			interval := p.getConfig().ProbeInterval
			if interval <= 0 {
				interval = 5 * time.Second
			}
			timer.Reset(interval)
		}
	}
}

func (p *Probe) fireOnce(ctx context.Context) {
	symbol := "AL30"
	if syms := p.sender.SubscribedSymbols(); len(syms) > 0 {
		symbol = syms[0]
		for _, s := range syms {
			if s == "AL30" {
				symbol = "AL30"
				break
			}
		}
	}

	start := time.Now()
	clientOrderID, err := p.sender.SendLimit(ctx, symbol, core.SideBuy, 1, 0.01, core.TIFIOC, false, 0)
	if err != nil {
		p.logger.Debug("latency probe send failed", "error", err)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for {
		report, ok := p.sub.Receive(waitCtx)
		if !ok {
			return
		}
		if report.ClientOrderID != clientOrderID {
			continue
		}
		rttMs := float64(time.Since(start)) / float64(time.Millisecond)
		p.rtt.add(rttMs)
		p.logger.Debug("latency probe rtt", "symbol", symbol, "rtt_ms", rttMs)
		p.retune()
		return
	}
}

func (p *Probe) retune() {
	cfg := p.getConfig()
	if !cfg.Tune {
		return
	}
	medianMs, ok := p.rtt.medianMs()
	if !ok {
		return
	}
	target := time.Duration(cfg.TuneFactor * (medianMs / 1000.0) * float64(time.Second))
	hl := clampDuration(target, cfg.MinHalfLife, cfg.MaxHalfLife)
	p.ref.Retune(hl)
	p.logger.Debug("latency probe retuned half-life", "median_ms", medianMs, "new_half_life", hl)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	return time.Duration(math.Max(float64(lo), math.Min(float64(hi), float64(d))))
}

// MedianRTT exposes the current rolling median RTT, in milliseconds, for the
// metrics package to sample.
func (p *Probe) MedianRTT() (float64, bool) {
	return p.rtt.medianMs()
}
