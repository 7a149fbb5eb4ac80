package core

import "testing"

func TestNewPair(t *testing.T) {
	cases := []struct {
		name    string
		ars     string
		usd     string
		wantErr bool
	}{
		{"valid", "AL30", "AL30D", false},
		{"mismatched suffix", "AL30", "AL30", true},
		{"wrong twin", "AL30", "GD30D", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewPair(c.ars, c.usd)
			if (err != nil) != c.wantErr {
				t.Fatalf("NewPair(%q,%q) error = %v, wantErr %v", c.ars, c.usd, err, c.wantErr)
			}
		})
	}
}

func TestPairFromUSDSymbol(t *testing.T) {
	p, ok := PairFromUSDSymbol("AL30D")
	if !ok {
		t.Fatal("expected ok=true for AL30D")
	}
	if p.ARSSymbol != "AL30" || p.USDSymbol != "AL30D" {
		t.Fatalf("unexpected pair: %+v", p)
	}

	if _, ok := PairFromUSDSymbol("AL30"); ok {
		t.Fatal("expected ok=false for symbol without D suffix")
	}
}

func TestOrderStatusHelpers(t *testing.T) {
	if !StatusFilled.Terminal() || !StatusFilled.Filled() {
		t.Error("FILLED must be terminal and filled")
	}
	if StatusPartiallyFilled.Terminal() {
		t.Error("PARTIALLY_FILLED must not be terminal")
	}
	if !StatusPartiallyFilled.Filled() {
		t.Error("PARTIALLY_FILLED must report Filled()=true")
	}
	if !StatusRejected.Terminal() || StatusRejected.Filled() {
		t.Error("REJECTED must be terminal and not filled")
	}
	if StatusNew.Terminal() {
		t.Error("NEW must not be terminal")
	}
}

func TestPositionsClone(t *testing.T) {
	orig := Positions{"AL30": 10}
	clone := orig.Clone()
	clone["AL30"] = 20
	if orig["AL30"] != 10 {
		t.Fatalf("Clone mutated original: %v", orig)
	}
}
