package tradingloop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fransolofran/mesita-go/internal/api"
	"github.com/fransolofran/mesita-go/internal/control"
	"github.com/fransolofran/mesita-go/internal/core"
	"github.com/fransolofran/mesita-go/internal/discover"
	"github.com/fransolofran/mesita-go/internal/erbus"
	"github.com/fransolofran/mesita-go/internal/quotecache"
	"github.com/fransolofran/mesita-go/internal/reconciler"
	"github.com/fransolofran/mesita-go/internal/reference"
	"github.com/fransolofran/mesita-go/internal/status"
)

type fakeWire struct {
	mu      sync.Mutex
	sent    []string
	symbols []string
}

func (f *fakeWire) SendLimit(ctx context.Context, symbol string, side core.Side, qty int64, price float64, tif core.TimeInForce, iceberg bool, displayQty int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, "limit:"+symbol+":"+string(side))
	return "cid", nil
}

func (f *fakeWire) SendMarket(ctx context.Context, symbol string, side core.Side, qty int64, tif core.TimeInForce) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, "market:"+symbol+":"+string(side))
	return "cid", nil
}

func (f *fakeWire) SubscribedSymbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.symbols...)
}

func (f *fakeWire) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeWire) UpdateSymbols(ctx context.Context, symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = symbols
	return nil
}

type fakeRisk struct {
	ars, usd float64
	calls    int
}

func (f *fakeRisk) GetAccountReport(ctx context.Context, account string) (*api.AccountReport, error) {
	f.calls++
	ars, usd := f.ars, f.usd
	return &api.AccountReport{AccountPosition: api.AccountPosition{AvailableCashARS: &ars, AvailableCashUSD: &usd}}, nil
}

func newTestLoop(t *testing.T, wireClient WireClient, risk RiskSource) (*Loop, string) {
	t.Helper()
	dir := t.TempDir()
	statusOut := status.NewWriter(filepath.Join(dir, "status.json"), filepath.Join(dir, "books.json"), filepath.Join(dir, "positions.json"))

	tun := control.New(control.Snapshot{
		WaitDuration:        50 * time.Millisecond,
		GraceDuration:       50 * time.Millisecond,
		EdgeTolBps:          1,
		ThreshPct:           0.002,
		MinNotionalARS:      1000,
		RiskPollInterval:    time.Hour,
		RiskRefreshInterval: time.Hour,
		PollInterval:        10 * time.Millisecond,
		UnwindMode:          "always",
		BalanceMode:         "risk_poll",
		HalfLife:            2 * time.Second,
		InstrumentRefreshInterval: time.Hour,
	})
	controlLoop := control.NewLoop(filepath.Join(dir, "control.json"), 10*time.Millisecond)

	loop := New(
		Config{Account: "123", ReferenceMode: reference.ModeHybrid, Discovery: DiscoveryConfig{RefreshInterval: time.Hour}},
		wireClient,
		risk,
		quotecache.New(),
		erbus.New(),
		reconciler.New(0, 0),
		reference.New(2*time.Second),
		discover.NewRegistry(&fakeSource{}, nil),
		nil,
		controlLoop,
		tun,
		statusOut,
		nil,
		nil,
	)
	return loop, dir
}

type fakeSource struct{}

func (fakeSource) GetInstruments(ctx context.Context) ([]api.Instrument, error) {
	return nil, nil
}

func TestLoop_CurrentCash_RiskPollModePollsOnFirstCall(t *testing.T) {
	risk := &fakeRisk{ars: 500, usd: 10}
	loop, _ := newTestLoop(t, &fakeWire{}, risk)

	ars, usd := loop.currentCash(context.Background(), loop.tunables.Get())
	if ars != 500 || usd != 10 {
		t.Errorf("currentCash = (%v, %v), want (500, 10)", ars, usd)
	}
	if risk.calls != 1 {
		t.Errorf("risk.calls = %d, want 1", risk.calls)
	}

	// Second call within the poll interval should not re-poll.
	loop.currentCash(context.Background(), loop.tunables.Get())
	if risk.calls != 1 {
		t.Errorf("risk.calls after second call = %d, want still 1 (throttled)", risk.calls)
	}
}

func TestLoop_CurrentCash_ERReconcileModeReadsReconciler(t *testing.T) {
	risk := &fakeRisk{ars: 999, usd: 999}
	loop, _ := newTestLoop(t, &fakeWire{}, risk)
	loop.reconciler.FullRefresh(42, 7)

	tun := loop.tunables.Get()
	tun.BalanceMode = "er_reconcile"
	ars, usd := loop.currentCash(context.Background(), tun)
	if ars != 42 || usd != 7 {
		t.Errorf("currentCash = (%v, %v), want (42, 7)", ars, usd)
	}
	if risk.calls != 0 {
		t.Errorf("risk.calls = %d, want 0 (er_reconcile mode should not poll REST)", risk.calls)
	}
}

func TestLoop_ForceFlatten_SellsLongAndBuysShortPositions(t *testing.T) {
	wire := &fakeWire{}
	loop, _ := newTestLoop(t, wire, &fakeRisk{})

	loop.reconciler.ApplyER(core.ExecReport{Symbol: "AL30", Side: core.SideBuy, Qty: 10, Price: 1000, Status: core.StatusFilled})
	loop.reconciler.ApplyER(core.ExecReport{Symbol: "AL30D", Side: core.SideSell, Qty: 5, Price: 1, Status: core.StatusFilled})

	loop.forceFlatten(context.Background())

	wire.mu.Lock()
	defer wire.mu.Unlock()
	if len(wire.sent) != 2 {
		t.Fatalf("sent = %+v, want 2 orders", wire.sent)
	}
	wantAL30 := "market:AL30:SELL"
	wantAL30D := "market:AL30D:BUY"
	found := map[string]bool{}
	for _, s := range wire.sent {
		found[s] = true
	}
	if !found[wantAL30] || !found[wantAL30D] {
		t.Errorf("sent = %+v, want %q and %q", wire.sent, wantAL30, wantAL30D)
	}
}

func TestLoop_ErConsumerLoop_AppliesReportsUntilContextCancelled(t *testing.T) {
	loop, _ := newTestLoop(t, &fakeWire{}, &fakeRisk{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.erConsumerLoop(ctx)
		close(done)
	}()

	// Give the subscriber a moment to register before publishing.
	time.Sleep(10 * time.Millisecond)
	loop.bus.Publish(core.ExecReport{Symbol: "AL30", Side: core.SideBuy, Qty: 3, Price: 100, Status: core.StatusFilled})
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("erConsumerLoop did not stop after context cancellation")
	}

	positions := loop.reconciler.SnapshotPositions()
	if positions["AL30"] != 3 {
		t.Errorf("positions[AL30] = %d, want 3", positions["AL30"])
	}
}

func TestLoop_Tick_WritesStatusEvenWithNoPairs(t *testing.T) {
	loop, dir := newTestLoop(t, &fakeWire{}, &fakeRisk{ars: 100, usd: 5})

	loop.tick(context.Background())

	data, err := os.ReadFile(filepath.Join(dir, "status.json"))
	if err != nil {
		t.Fatalf("read status.json: %v", err)
	}
	var s status.Status
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.CashARS != 100 || s.CashUSD != 5 {
		t.Errorf("status = %+v, want cash (100, 5)", s)
	}
	if !s.TradingEnabled {
		t.Error("expected trading to be enabled by default")
	}
}

func TestLoop_Tick_PanicStopDisablesTrading(t *testing.T) {
	loop, dir := newTestLoop(t, &fakeWire{}, &fakeRisk{})
	controlPath := filepath.Join(dir, "control.json")
	if err := os.WriteFile(controlPath, []byte(`{"panic_stop": true}`), 0o644); err != nil {
		t.Fatalf("write control: %v", err)
	}
	loop.control = control.NewLoop(controlPath, 0)

	loop.tick(context.Background())
	if loop.tradingEnabled.Load() {
		t.Error("expected trading to be disabled after panic_stop")
	}
}

func TestLoop_ForceReauth_SwapsWireClient(t *testing.T) {
	oldWire := &fakeWire{}
	newWire := &fakeWire{}
	loop, dir := newTestLoop(t, oldWire, &fakeRisk{})

	factoryCalls := 0
	loop.wireFactory = func(ctx context.Context, tun control.Snapshot) (WireClient, error) {
		factoryCalls++
		return newWire, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- loop.wireRunLoop(ctx) }()
	time.Sleep(10 * time.Millisecond)

	if loop.currentWire() != WireClient(oldWire) {
		t.Fatal("expected the original wire client to be current before force_reauth")
	}

	controlPath := filepath.Join(dir, "control.json")
	if err := os.WriteFile(controlPath, []byte(`{"force_reauth": true}`), 0o644); err != nil {
		t.Fatalf("write control: %v", err)
	}
	loop.control = control.NewLoop(controlPath, 0)

	loop.tick(context.Background())
	time.Sleep(10 * time.Millisecond)

	if factoryCalls != 1 {
		t.Errorf("wireFactory calls = %d, want 1", factoryCalls)
	}
	if loop.currentWire() != WireClient(newWire) {
		t.Error("expected force_reauth to swap in the wire client built by wireFactory")
	}

	cancel()
	select {
	case err := <-runDone:
		if err != context.Canceled {
			t.Errorf("wireRunLoop returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wireRunLoop did not stop after context cancellation")
	}
}

func TestLoop_ForceReauth_NoFactoryConfiguredIsANoop(t *testing.T) {
	oldWire := &fakeWire{}
	loop, dir := newTestLoop(t, oldWire, &fakeRisk{})

	controlPath := filepath.Join(dir, "control.json")
	if err := os.WriteFile(controlPath, []byte(`{"force_reauth": true}`), 0o644); err != nil {
		t.Fatalf("write control: %v", err)
	}
	loop.control = control.NewLoop(controlPath, 0)

	loop.tick(context.Background())

	if loop.currentWire() != WireClient(oldWire) {
		t.Error("expected wire client to stay unchanged with no wireFactory configured")
	}
}
