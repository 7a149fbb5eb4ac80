package discover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fransolofran/mesita-go/internal/api"
	"github.com/fransolofran/mesita-go/internal/core"
)

func TestBuildPairs_PairsARSWithItsUSDTwin(t *testing.T) {
	instruments := []api.Instrument{
		{Symbol: "AL30"},
		{Symbol: "AL30D"},
		{Symbol: "GD30"},
		{Symbol: "GD30D"},
		{Symbol: "ORPHAND"},
	}
	pairs := BuildPairs(instruments)

	want := []core.Pair{
		mustPair(t, "AL30", "AL30D"),
		mustPair(t, "GD30", "GD30D"),
	}
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %+v, want %+v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %+v, want %+v", i, pairs[i], want[i])
		}
	}
}

func TestBuildPairs_IgnoresDanglingUSDSymbol(t *testing.T) {
	pairs := BuildPairs([]api.Instrument{{Symbol: "ORPHAND"}})
	if len(pairs) != 0 {
		t.Errorf("pairs = %+v, want empty since ORPHAN has no ARS twin", pairs)
	}
}

func mustPair(t *testing.T, ars, usd string) core.Pair {
	t.Helper()
	p, err := core.NewPair(ars, usd)
	if err != nil {
		t.Fatalf("NewPair(%q, %q): %v", ars, usd, err)
	}
	return p
}

type fakeSource struct {
	instruments []api.Instrument
	err         error
	calls       int
}

func (f *fakeSource) GetInstruments(ctx context.Context) ([]api.Instrument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.instruments, nil
}

func TestRegistry_RefreshDetectsChange(t *testing.T) {
	src := &fakeSource{instruments: []api.Instrument{{Symbol: "AL30"}, {Symbol: "AL30D"}}}
	reg := NewRegistry(src, nil)

	changed, err := reg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !changed {
		t.Error("expected the first refresh to report a change")
	}
	if len(reg.Pairs()) != 1 {
		t.Fatalf("Pairs() = %+v, want 1 pair", reg.Pairs())
	}

	changed, err = reg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if changed {
		t.Error("expected the second refresh with an identical set to report no change")
	}
}

func TestRegistry_RefreshPropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	reg := NewRegistry(src, nil)

	_, err := reg.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected the source error to propagate")
	}
}

func TestRegistry_RunStopsOnContextCancel(t *testing.T) {
	src := &fakeSource{instruments: []api.Instrument{{Symbol: "AL30"}, {Symbol: "AL30D"}}}
	reg := NewRegistry(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
	if src.calls == 0 {
		t.Error("expected at least one refresh to have run")
	}
}
