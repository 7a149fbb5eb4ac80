package control

import (
	"errors"
	"testing"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
)

func defaultSnapshot() Snapshot {
	return Snapshot{
		WaitDuration:  120 * time.Millisecond,
		GraceDuration: 800 * time.Millisecond,
		EdgeTolBps:    1,
		ThreshPct:     0.002,
		UnwindMode:    "smart",
		BalanceMode:   "risk_poll",
	}
}

func TestApply_UpdatesRecognizedKeys(t *testing.T) {
	tun := New(defaultSnapshot())
	applied, err := tun.Apply(map[string]any{
		"WAIT_MS":    float64(200),
		"thresh_pct": 0.005,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %+v, want 2 keys", applied)
	}

	got := tun.Get()
	if got.WaitDuration != 200*time.Millisecond {
		t.Errorf("WaitDuration = %v, want 200ms", got.WaitDuration)
	}
	if got.ThreshPct != 0.005 {
		t.Errorf("ThreshPct = %v, want 0.005", got.ThreshPct)
	}
}

func TestApply_UnknownKeyIsIgnoredSilently(t *testing.T) {
	tun := New(defaultSnapshot())
	applied, err := tun.Apply(map[string]any{"NOT_A_FIELD": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %+v, want empty", applied)
	}
}

func TestApply_TypeMismatchReturnsErrorButAppliesOtherKeys(t *testing.T) {
	tun := New(defaultSnapshot())
	applied, err := tun.Apply(map[string]any{
		"WAIT_MS":      "not a number",
		"UNWIND_MODE":  "always",
	})
	if err == nil {
		t.Fatal("expected an error for the bad WAIT_MS value")
	}
	var applyErr *core.ControlApplyError
	if !errors.As(err, &applyErr) {
		t.Errorf("expected core.ControlApplyError, got %T", err)
	}
	if applied["UNWIND_MODE"] != "always" {
		t.Errorf("expected UNWIND_MODE to still apply despite the other key's error, got %+v", applied)
	}
	if tun.Get().UnwindMode != "always" {
		t.Errorf("UnwindMode = %q, want always", tun.Get().UnwindMode)
	}
}

func TestApply_ReferenceAndLatencyKeys(t *testing.T) {
	tun := New(defaultSnapshot())
	applied, err := tun.Apply(map[string]any{
		"HALF_LIFE_S":          float64(30),
		"REF_K":                4.5,
		"REF_MIN_HL_S":         float64(5),
		"REF_MAX_HL_S":         float64(120),
		"LAT_PROBE_S":          float64(10),
		"instrument_refresh_s": float64(300),
		"REF_TUNE":             true,
		"REF_MODE":             "tick",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 8 {
		t.Fatalf("applied = %+v, want 8 keys", applied)
	}

	got := tun.Get()
	if got.HalfLife != 30*time.Second {
		t.Errorf("HalfLife = %v, want 30s", got.HalfLife)
	}
	if got.RefK != 4.5 {
		t.Errorf("RefK = %v, want 4.5", got.RefK)
	}
	if got.RefMinHalfLife != 5*time.Second {
		t.Errorf("RefMinHalfLife = %v, want 5s", got.RefMinHalfLife)
	}
	if got.RefMaxHalfLife != 120*time.Second {
		t.Errorf("RefMaxHalfLife = %v, want 120s", got.RefMaxHalfLife)
	}
	if got.LatProbeInterval != 10*time.Second {
		t.Errorf("LatProbeInterval = %v, want 10s", got.LatProbeInterval)
	}
	if got.InstrumentRefreshInterval != 300*time.Second {
		t.Errorf("InstrumentRefreshInterval = %v, want 300s", got.InstrumentRefreshInterval)
	}
	if !got.RefTune {
		t.Error("RefTune = false, want true")
	}
	if got.ReferenceMode != "tick" {
		t.Errorf("ReferenceMode = %q, want tick", got.ReferenceMode)
	}
}

func TestApply_CredentialAndEnvironmentKeys(t *testing.T) {
	tun := New(defaultSnapshot())
	applied, err := tun.Apply(map[string]any{
		"environment":     "live",
		"rest_url":        "https://rest.example",
		"ws_url":          "wss://ws.example",
		"username":        "new-user",
		"password":        "new-pass",
		"account":         "acct-2",
		"proprietary_tag": "NEWTAG",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 7 {
		t.Fatalf("applied = %+v, want 7 keys", applied)
	}

	got := tun.Get()
	if got.Environment != "live" || got.RestURL != "https://rest.example" || got.WSURL != "wss://ws.example" ||
		got.Username != "new-user" || got.Password != "new-pass" || got.Account != "acct-2" || got.ProprietaryTag != "NEWTAG" {
		t.Errorf("unexpected snapshot after credential overrides: %+v", got)
	}
}
