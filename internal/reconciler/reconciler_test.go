package reconciler

import (
	"testing"

	"github.com/fransolofran/mesita-go/internal/core"
)

func TestApplyER_BuyARSLegDebitsCashAndAddsPosition(t *testing.T) {
	r := New(100000, 0)
	r.ApplyER(core.ExecReport{Symbol: "AL30", Side: core.SideBuy, Status: core.StatusFilled, Qty: 100, Price: 1000})

	cash := r.Cash()
	if cash.ARS != 0 {
		t.Errorf("cash.ARS = %v, want 0", cash.ARS)
	}
	pos := r.SnapshotPositions()
	if pos["AL30"] != 100 {
		t.Errorf("position AL30 = %d, want 100", pos["AL30"])
	}
}

func TestApplyER_SellUSDLegCreditsCashWithoutPriceMultiplication(t *testing.T) {
	r := New(0, 0)
	r.ApplyER(core.ExecReport{Symbol: "AL30D", Side: core.SideSell, Status: core.StatusFilled, Qty: 98, Price: 1.01})

	cash := r.Cash()
	if cash.USD != 98 {
		t.Errorf("cash.USD = %v, want 98 (no price multiplication on USD leg)", cash.USD)
	}
}

func TestApplyER_BuyUSDLegDebitsRawQuantity(t *testing.T) {
	r := New(0, 200)
	r.ApplyER(core.ExecReport{Symbol: "AL30D", Side: core.SideBuy, Status: core.StatusFilled, Qty: 50, Price: 1.0})

	cash := r.Cash()
	if cash.USD != 150 {
		t.Errorf("cash.USD = %v, want 150", cash.USD)
	}
}

func TestApplyER_IgnoresRejectedReports(t *testing.T) {
	r := New(100, 100)
	r.ApplyER(core.ExecReport{Symbol: "AL30", Side: core.SideBuy, Status: core.StatusRejected, Qty: 10, Price: 1.0})

	cash := r.Cash()
	if cash.ARS != 100 {
		t.Errorf("cash.ARS = %v, want unchanged 100", cash.ARS)
	}
}

func TestApplyER_PositionNettingRemovesZeroEntries(t *testing.T) {
	r := New(0, 0)
	r.ApplyER(core.ExecReport{Symbol: "AL30", Side: core.SideBuy, Status: core.StatusFilled, Qty: 100, Price: 1000})
	r.ApplyER(core.ExecReport{Symbol: "AL30", Side: core.SideSell, Status: core.StatusFilled, Qty: 100, Price: 1000})

	pos := r.SnapshotPositions()
	if _, ok := pos["AL30"]; ok {
		t.Error("expected fully netted position to be removed from the map")
	}
}

func TestFullRefresh_OverwritesCash(t *testing.T) {
	r := New(1, 1)
	r.FullRefresh(500, 50)

	cash := r.Cash()
	if cash.ARS != 500 || cash.USD != 50 {
		t.Errorf("Cash() = %+v, want {500 50}", cash)
	}
}
