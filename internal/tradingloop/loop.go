// Package tradingloop wires every other package into the running agent: it
// owns the per-tick sequence of polling control overrides, refreshing cash
// and quotes, updating the reference estimator, scanning both trade
// directions, and publishing the status/books/positions snapshots.
package tradingloop

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fransolofran/mesita-go/internal/api"
	"github.com/fransolofran/mesita-go/internal/control"
	"github.com/fransolofran/mesita-go/internal/core"
	"github.com/fransolofran/mesita-go/internal/discover"
	"github.com/fransolofran/mesita-go/internal/erbus"
	"github.com/fransolofran/mesita-go/internal/execcoord"
	"github.com/fransolofran/mesita-go/internal/latency"
	"github.com/fransolofran/mesita-go/internal/quotecache"
	"github.com/fransolofran/mesita-go/internal/reconciler"
	"github.com/fransolofran/mesita-go/internal/reference"
	"github.com/fransolofran/mesita-go/internal/signal"
	"github.com/fransolofran/mesita-go/internal/status"
)

// WireClient is the subset of *wire.Client the loop and its collaborators
// need, narrowed to an interface so tests can supply a fake.
type WireClient interface {
	execcoord.OrderSender
	latency.OrderSender
	Run(ctx context.Context) error
	UpdateSymbols(ctx context.Context, symbols []string) error
}

// RiskSource is the subset of *api.Client the loop needs for cash polling.
type RiskSource interface {
	GetAccountReport(ctx context.Context, account string) (*api.AccountReport, error)
}

// Config holds everything the loop needs that isn't itself a collaborator
// object: the account id, the configured reference mode and the discovery
// cadence.
type Config struct {
	Account       string
	ReferenceMode reference.Mode
	Discovery     DiscoveryConfig
}

// WireFactory rebuilds the wire client from scratch, picking up whatever
// credentials/URLs are current in tun. Used to implement force_reauth.
type WireFactory func(ctx context.Context, tun control.Snapshot) (WireClient, error)

// DiscoveryConfig parameterizes the instrument-pair refresh cadence.
type DiscoveryConfig struct {
	RefreshInterval time.Duration
}

// Loop is the top-level trading loop.
type Loop struct {
	cfg Config

	wireMu      sync.RWMutex
	wire        WireClient
	wireCancel  context.CancelFunc
	wireFactory WireFactory

	risk       RiskSource
	quotes     *quotecache.Cache
	bus        *erbus.Bus
	reconciler *reconciler.Reconciler
	ref        *reference.Estimator
	registry   *discover.Registry
	probe      *latency.Probe
	control    *control.Loop
	tunables   *control.Tunables
	statusOut  *status.Writer
	logger     *slog.Logger

	tradingEnabled atomic.Bool

	mu      sync.Mutex
	refPair core.Pair
	haveRef bool

	lastRiskPoll time.Time
	riskMu       sync.Mutex
	riskCash     core.Cash
}

// New builds a Loop from its collaborators. All collaborators must already
// be constructed and wired to the same bus/quote cache/estimator instances.
// wireFactory may be nil, in which case a force_reauth control request is
// logged and ignored instead of rebuilding the wire client.
func New(
	cfg Config,
	wireClient WireClient,
	risk RiskSource,
	quotes *quotecache.Cache,
	bus *erbus.Bus,
	rec *reconciler.Reconciler,
	ref *reference.Estimator,
	registry *discover.Registry,
	probe *latency.Probe,
	controlLoop *control.Loop,
	tunables *control.Tunables,
	statusOut *status.Writer,
	logger *slog.Logger,
	wireFactory WireFactory,
) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		cfg:         cfg,
		wire:        wireClient,
		wireFactory: wireFactory,
		risk:        risk,
		quotes:      quotes,
		bus:         bus,
		reconciler:  rec,
		ref:         ref,
		registry:    registry,
		probe:       probe,
		control:     controlLoop,
		tunables:    tunables,
		statusOut:   statusOut,
		logger:      logger,
	}
	l.tradingEnabled.Store(true)
	return l
}

// currentWire returns the wire client currently in use, safe to call
// concurrently with forceReauth swapping it out.
func (l *Loop) currentWire() WireClient {
	l.wireMu.RLock()
	defer l.wireMu.RUnlock()
	return l.wire
}

// Run starts every background component under a supervised errgroup and
// runs the tick loop until ctx is canceled or a component returns an error.
func (l *Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return l.wireRunLoop(ctx) })

	g.Go(func() error {
		l.erConsumerLoop(ctx)
		return nil
	})

	if l.tunables.Get().BalanceMode == "er_reconcile" {
		g.Go(func() error {
			l.riskFullRefreshLoop(ctx)
			return nil
		})
	}

	g.Go(func() error {
		l.registry.Run(ctx, l.cfg.Discovery.RefreshInterval)
		return nil
	})

	if l.probe != nil {
		g.Go(func() error {
			l.probe.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		return l.tickLoop(ctx)
	})

	return g.Wait()
}

// wireRunLoop runs the current wire client under a cancellable sub-context,
// re-entering with whatever client is current whenever that sub-context is
// canceled deliberately by forceReauth rather than by the parent ctx ending.
func (l *Loop) wireRunLoop(ctx context.Context) error {
	for {
		wireCtx, cancel := context.WithCancel(ctx)
		l.wireMu.Lock()
		l.wireCancel = cancel
		client := l.wire
		l.wireMu.Unlock()

		err := client.Run(wireCtx)
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			continue // swapped by forceReauth, pick up the new client
		}
		return err
	}
}

// forceReauth rebuilds the wire client via wireFactory and swaps it in,
// implementing the force_reauth control action: close the current
// connection, recreate the client with current credentials/URLs, and resume
// subscription.
func (l *Loop) forceReauth(ctx context.Context) {
	if l.wireFactory == nil {
		l.logger.Warn("force_reauth requested but no wire factory is configured")
		return
	}

	newClient, err := l.wireFactory(ctx, l.tunables.Get())
	if err != nil {
		l.logger.Error("force_reauth: rebuilding wire client failed", "error", err)
		return
	}

	l.wireMu.Lock()
	oldCancel := l.wireCancel
	l.wire = newClient
	l.wireMu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	l.logger.Info("force_reauth: wire client replaced")
}

func (l *Loop) erConsumerLoop(ctx context.Context) {
	sub := l.bus.Subscribe("reconciler", false, 0)
	defer l.bus.Unsubscribe("reconciler")
	for {
		report, ok := sub.Receive(ctx)
		if !ok {
			return
		}
		l.reconciler.ApplyER(report)
	}
}

func (l *Loop) riskFullRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(l.tunables.Get().RiskRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := l.risk.GetAccountReport(ctx, l.cfg.Account)
			if err != nil {
				l.logger.Warn("risk full refresh failed", "error", err)
				continue
			}
			ars, usd := report.Cash()
			l.reconciler.FullRefresh(ars, usd)
		}
	}
}

func (l *Loop) tickLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.tunables.Get().PollInterval):
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	outcome, err := l.control.Poll(l.tunables, time.Now())
	if err != nil {
		l.logger.Warn("control poll failed", "error", err)
	}
	if outcome.ApplyErr != nil {
		l.logger.Warn("control override rejected", "error", outcome.ApplyErr)
	}
	if outcome.PanicStop {
		if l.tradingEnabled.Swap(false) {
			l.logger.Info("trading disabled by control.panic_stop")
		}
	}
	if outcome.Resume {
		if !l.tradingEnabled.Swap(true) {
			l.logger.Info("trading resumed by control.resume")
		}
	}
	if outcome.ReloadInstrumentsNow {
		if _, err := l.registry.Refresh(ctx); err != nil {
			l.logger.Warn("forced instrument reload failed", "error", err)
		} else if err := l.currentWire().UpdateSymbols(ctx, symbolsOf(l.registry.Pairs())); err != nil {
			l.logger.Warn("resubscribe after forced reload failed", "error", err)
		}
	}
	if outcome.ForceFlatten {
		l.forceFlatten(ctx)
	}
	if outcome.ForceReauth {
		l.forceReauth(ctx)
	}

	tun := l.tunables.Get()
	if l.probe == nil || !tun.RefTune {
		// With REF_TUNE on, the latency probe sets the half-life.
		l.ref.Retune(tun.HalfLife)
	}
	if l.probe != nil {
		l.probe.SetConfig(latency.Config{
			ProbeInterval: tun.LatProbeInterval,
			Tune:          tun.RefTune,
			TuneFactor:    tun.RefK,
			MinHalfLife:   tun.RefMinHalfLife,
			MaxHalfLife:   tun.RefMaxHalfLife,
		})
	}
	l.registry.SetRefreshInterval(tun.InstrumentRefreshInterval)

	snap := l.quotes.Snapshot()
	cashARS, cashUSD := l.currentCash(ctx, tun)

	l.writeStatus(tun, cashARS, cashUSD, outcome.Applied)
	defer l.writeBooksAndPositions(snap, cashARS, cashUSD)

	if !l.tradingEnabled.Load() {
		return
	}

	pairs := l.registry.Pairs()
	if len(pairs) == 0 {
		return
	}

	refPair := l.selectRefPair(pairs)
	refARS, haveARS := snap[refPair.ARSSymbol]
	refUSD, haveUSD := snap[refPair.USDSymbol]
	if !haveARS || !haveUSD {
		return
	}

	l.ref.Update(refARS.Timestamp, refARS.Ask, refUSD.Bid, refARS.Bid, refUSD.Ask)
	mode := l.referenceMode(tun)
	refA2U, haveRefA2U := l.ref.RefA2U(mode)
	refU2A, haveRefU2A := l.ref.RefU2A(mode)

	l.scanARSToUSD(ctx, tun, pairs, snap, refA2U, haveRefA2U, cashARS)
	l.scanUSDToARS(ctx, tun, pairs, snap, refU2A, haveRefU2A, cashUSD)
}

func (l *Loop) currentCash(ctx context.Context, tun control.Snapshot) (ars, usd float64) {
	if tun.BalanceMode == "er_reconcile" {
		cash := l.reconciler.Cash()
		return cash.ARS, cash.USD
	}

	l.riskMu.Lock()
	defer l.riskMu.Unlock()
	if time.Since(l.lastRiskPoll) >= tun.RiskPollInterval {
		report, err := l.risk.GetAccountReport(ctx, l.cfg.Account)
		if err != nil {
			l.logger.Warn("risk poll failed", "error", err)
		} else {
			ars, usd := report.Cash()
			l.riskCash = core.Cash{ARS: ars, USD: usd}
		}
		l.lastRiskPoll = time.Now()
	}
	return l.riskCash.ARS, l.riskCash.USD
}

func (l *Loop) selectRefPair(pairs []core.Pair) core.Pair {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.haveRef {
		for _, p := range pairs {
			if p == l.refPair {
				return l.refPair
			}
		}
	}

	for _, p := range pairs {
		if strings.EqualFold(p.ARSSymbol, "AL30") && strings.EqualFold(p.USDSymbol, "AL30D") {
			l.refPair, l.haveRef = p, true
			return p
		}
	}
	l.refPair, l.haveRef = pairs[0], true
	return pairs[0]
}

func (l *Loop) scanARSToUSD(ctx context.Context, tun control.Snapshot, pairs []core.Pair, snap map[string]core.TopOfBook, refA2U float64, haveRef bool, cashARS float64) {
	for _, pair := range pairs {
		ars, okA := snap[pair.ARSSymbol]
		usd, okU := snap[pair.USDSymbol]
		if !okA || !okU {
			continue
		}
		implied, haveImplied := signal.ImpliedA2U(ars, usd)
		if !haveImplied {
			continue
		}
		operable := signal.OperableARSA2U(ars, usd, implied)
		if !signal.ARSToUSD(implied, refA2U, haveRef, operable, tun.MinNotionalARS, tun.ThreshPct) {
			continue
		}

		sizeCap := signal.CapA2U(ars, usd, cashARS)
		if sizeCap.Nominal <= 0 || float64(sizeCap.Nominal)*ars.Ask < tun.MinNotionalARS {
			continue
		}

		pair := pair
		getRefs := func() execcoord.Refs {
			s := l.quotes.Snapshot()
			ars2, okA2 := s[pair.ARSSymbol]
			usd2, okU2 := s[pair.USDSymbol]
			refs := execcoord.Refs{Direction: execcoord.DirARSToUSD, Ref: refA2U, HaveRef: haveRef}
			if okA2 && okU2 && ars2.Ask > 0 && usd2.Bid > 0 {
				refs.ImpliedNow, refs.HaveImplied = ars2.Ask/usd2.Bid, true
			}
			if okU2 {
				refs.BookOK = usd2.BidQty > 0
				refs.RemSellPrice, refs.HaveRemPrice = usd2.Bid, true
			}
			return refs
		}

		coord := execcoord.New(l.currentWire(), l.bus.Subscribe(execcoordSubName(pair, "a2u"), false, 0), execcoord.Config{
			WaitDuration:  tun.WaitDuration,
			GraceDuration: tun.GraceDuration,
			EdgeTolBps:    tun.EdgeTolBps,
			ThreshPct:     tun.ThreshPct,
			UnwindMode:    execcoord.UnwindMode(tun.UnwindMode),
		}, l.logger)
		defer l.bus.Unsubscribe(execcoordSubName(pair, "a2u"))

		outcome, err := coord.LegBuyThenSellSmart(ctx,
			pair.ARSSymbol, ars.Ask, true, sizeCap.Nominal,
			pair.USDSymbol, usd.Bid, true,
			getRefs,
		)
		if err != nil {
			l.logger.Warn("a2u execution failed", "pair", pair.ARSSymbol, "error", err)
			continue
		}
		l.logger.Info("a2u execution complete", "pair", pair.ARSSymbol, "bought", outcome.Bought, "sold", outcome.Sold, "unwound", outcome.Unwound)
	}
}

func (l *Loop) scanUSDToARS(ctx context.Context, tun control.Snapshot, pairs []core.Pair, snap map[string]core.TopOfBook, refU2A float64, haveRef bool, cashUSD float64) {
	type candidate struct {
		implied float64
		pair    core.Pair
		ars     core.TopOfBook
		usd     core.TopOfBook
	}

	var candidates []candidate
	for _, pair := range pairs {
		ars, okA := snap[pair.ARSSymbol]
		usd, okU := snap[pair.USDSymbol]
		if !okA || !okU {
			continue
		}
		impliedRev, haveImplied := signal.ImpliedU2A(ars, usd)
		if !haveImplied {
			continue
		}
		operable := signal.OperableARSU2A(ars, usd, impliedRev)
		if !signal.USDToARS(impliedRev, refU2A, haveRef, operable, tun.MinNotionalARS, tun.ThreshPct) {
			continue
		}
		candidates = append(candidates, candidate{implied: impliedRev, pair: pair, ars: ars, usd: usd})
	}
	if len(candidates) == 0 || cashUSD <= 0 {
		return
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.implied > best.implied {
			best = c
		}
	}

	sizeCap := signal.CapU2A(best.ars, best.usd, cashUSD)
	if sizeCap.Nominal <= 0 || float64(sizeCap.Nominal)*best.ars.Bid < tun.MinNotionalARS {
		return
	}

	pair := best.pair
	getRefs := func() execcoord.Refs {
		s := l.quotes.Snapshot()
		ars2, okA2 := s[pair.ARSSymbol]
		usd2, okU2 := s[pair.USDSymbol]
		refs := execcoord.Refs{Direction: execcoord.DirUSDToARS, Ref: refU2A, HaveRef: haveRef}
		if okA2 && okU2 && ars2.Bid > 0 && usd2.Ask > 0 {
			refs.ImpliedNow, refs.HaveImplied = ars2.Bid/usd2.Ask, true
		}
		if okA2 {
			refs.BookOK = ars2.BidQty > 0
			refs.RemSellPrice, refs.HaveRemPrice = ars2.Bid, true
		}
		return refs
	}

	coord := execcoord.New(l.currentWire(), l.bus.Subscribe(execcoordSubName(pair, "u2a"), false, 0), execcoord.Config{
		WaitDuration:  tun.WaitDuration,
		GraceDuration: tun.GraceDuration,
		EdgeTolBps:    tun.EdgeTolBps,
		ThreshPct:     tun.ThreshPct,
		UnwindMode:    execcoord.UnwindMode(tun.UnwindMode),
	}, l.logger)
	defer l.bus.Unsubscribe(execcoordSubName(pair, "u2a"))

	outcome, err := coord.LegBuyThenSellSmart(ctx,
		pair.USDSymbol, 0, false, sizeCap.Nominal,
		pair.ARSSymbol, best.ars.Bid, true,
		getRefs,
	)
	if err != nil {
		l.logger.Warn("u2a execution failed", "pair", pair.ARSSymbol, "error", err)
		return
	}
	l.logger.Info("u2a execution complete", "pair", pair.ARSSymbol, "bought", outcome.Bought, "sold", outcome.Sold, "unwound", outcome.Unwound)
}

func (l *Loop) forceFlatten(ctx context.Context) {
	positions := l.reconciler.SnapshotPositions()
	for symbol, qty := range positions {
		if qty == 0 {
			continue
		}
		side := core.SideSell
		abs := qty
		if qty < 0 {
			side = core.SideBuy
			abs = -qty
		}
		if _, err := l.currentWire().SendMarket(ctx, symbol, side, abs, core.TIFIOC); err != nil {
			l.logger.Warn("force flatten order failed", "symbol", symbol, "error", err)
		}
	}
}

func (l *Loop) writeStatus(tun control.Snapshot, cashARS, cashUSD float64, applied map[string]any) {
	if l.statusOut == nil {
		return
	}
	s := status.Status{
		Timestamp:      time.Now(),
		Environment:    tun.Environment,
		Mode:           tun.BalanceMode,
		TradingEnabled: l.tradingEnabled.Load(),
		CashARS:        cashARS,
		CashUSD:        cashUSD,
		HalfLifeMillis: l.ref.HalfLife().Milliseconds(),
		Tunables:       applied,
	}
	l.mu.Lock()
	if l.haveRef {
		s.ReferencePair = l.refPair.ARSSymbol + "/" + l.refPair.USDSymbol
	}
	l.mu.Unlock()
	mode := l.referenceMode(tun)
	if refA2U, ok := l.ref.RefA2U(mode); ok {
		s.RefA2U = &refA2U
	}
	if refU2A, ok := l.ref.RefU2A(mode); ok {
		s.RefU2A = &refU2A
	}
	if err := l.statusOut.WriteStatus(s); err != nil {
		l.logger.Warn("status write failed", "error", err)
	}
}

// referenceMode resolves the live REF_MODE override if set, falling back to
// the statically configured mode.
func (l *Loop) referenceMode(tun control.Snapshot) reference.Mode {
	switch tun.ReferenceMode {
	case string(reference.ModeTick):
		return reference.ModeTick
	case string(reference.ModeHybrid):
		return reference.ModeHybrid
	default:
		return l.cfg.ReferenceMode
	}
}

func (l *Loop) writeBooksAndPositions(snap map[string]core.TopOfBook, cashARS, cashUSD float64) {
	if l.statusOut == nil {
		return
	}
	now := time.Now()
	if err := l.statusOut.WriteBooks(status.WriteBooksFromSnapshot(snap, now)); err != nil {
		l.logger.Warn("books write failed", "error", err)
	}
	positions := l.reconciler.SnapshotPositions()
	if err := l.statusOut.WritePositions(status.PositionsSnapshot{
		Timestamp: now,
		Positions: positions,
		CashARS:   cashARS,
		CashUSD:   cashUSD,
	}); err != nil {
		l.logger.Warn("positions write failed", "error", err)
	}
}

func symbolsOf(pairs []core.Pair) []string {
	seen := make(map[string]struct{}, len(pairs)*2)
	var out []string
	for _, p := range pairs {
		for _, s := range []string{p.ARSSymbol, p.USDSymbol} {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}

func execcoordSubName(pair core.Pair, direction string) string {
	return "execcoord:" + direction + ":" + pair.ARSSymbol
}
