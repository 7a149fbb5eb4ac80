// Package control implements the operator-facing control channel: a JSON
// document on disk polled once per loop iteration, carrying command flags
// (panic_stop, resume, reload_instruments_now, force_flatten, force_reauth)
// and throttled field overrides applied to a live Tunables set. Every flag
// except panic_stop is one-shot and is cleared from the file once seen;
// panic_stop is not cleared and is reported on every poll while it stays set.
//
// Overrides are applied through an explicit named-field switch, not
// reflection: the Python original used setattr with type-coercion from the
// existing field's type, which has no safe equivalent in a statically typed
// language. An override key with no matching field is ignored; a value of
// the wrong type for a recognized key produces a core.ControlApplyError for
// that key alone, and every other key in the same document still applies.
package control

import (
	"sync"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
)

// Tunables holds every runtime-adjustable parameter, seeded from Config at
// startup. It is read by the trading loop and execution coordinator on every
// iteration and written only by Apply.
type Tunables struct {
	mu sync.RWMutex

	WaitDuration     time.Duration
	GraceDuration    time.Duration
	EdgeTolBps       float64
	ThreshPct        float64
	MinNotionalARS   float64
	RiskPollInterval time.Duration
	RiskRefreshInterval time.Duration
	PollInterval     time.Duration
	UnwindMode       string
	BalanceMode      string
	TraceEnabled     bool
	TraceRaw         bool

	ReferenceMode             string
	HalfLife                  time.Duration
	RefTune                   bool
	RefK                      float64
	RefMinHalfLife            time.Duration
	RefMaxHalfLife            time.Duration
	LatProbeInterval          time.Duration
	InstrumentRefreshInterval time.Duration

	Environment    string
	RestURL        string
	WSURL          string
	Username       string
	Password       string
	Account        string
	ProprietaryTag string
}

// Snapshot is an immutable copy of Tunables safe to read without a lock.
type Snapshot struct {
	WaitDuration        time.Duration
	GraceDuration       time.Duration
	EdgeTolBps          float64
	ThreshPct           float64
	MinNotionalARS      float64
	RiskPollInterval    time.Duration
	RiskRefreshInterval time.Duration
	PollInterval        time.Duration
	UnwindMode          string
	BalanceMode         string
	TraceEnabled        bool
	TraceRaw            bool

	ReferenceMode             string
	HalfLife                  time.Duration
	RefTune                   bool
	RefK                      float64
	RefMinHalfLife            time.Duration
	RefMaxHalfLife            time.Duration
	LatProbeInterval          time.Duration
	InstrumentRefreshInterval time.Duration

	Environment    string
	RestURL        string
	WSURL          string
	Username       string
	Password       string
	Account        string
	ProprietaryTag string
}

// New seeds a Tunables set from static config values.
func New(s Snapshot) *Tunables {
	t := &Tunables{}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WaitDuration = s.WaitDuration
	t.GraceDuration = s.GraceDuration
	t.EdgeTolBps = s.EdgeTolBps
	t.ThreshPct = s.ThreshPct
	t.MinNotionalARS = s.MinNotionalARS
	t.RiskPollInterval = s.RiskPollInterval
	t.RiskRefreshInterval = s.RiskRefreshInterval
	t.PollInterval = s.PollInterval
	t.UnwindMode = s.UnwindMode
	t.BalanceMode = s.BalanceMode
	t.TraceEnabled = s.TraceEnabled
	t.TraceRaw = s.TraceRaw
	t.ReferenceMode = s.ReferenceMode
	t.HalfLife = s.HalfLife
	t.RefTune = s.RefTune
	t.RefK = s.RefK
	t.RefMinHalfLife = s.RefMinHalfLife
	t.RefMaxHalfLife = s.RefMaxHalfLife
	t.LatProbeInterval = s.LatProbeInterval
	t.InstrumentRefreshInterval = s.InstrumentRefreshInterval
	t.Environment = s.Environment
	t.RestURL = s.RestURL
	t.WSURL = s.WSURL
	t.Username = s.Username
	t.Password = s.Password
	t.Account = s.Account
	t.ProprietaryTag = s.ProprietaryTag
	return t
}

// Get returns a point-in-time copy of every tunable.
func (t *Tunables) Get() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		WaitDuration:        t.WaitDuration,
		GraceDuration:       t.GraceDuration,
		EdgeTolBps:          t.EdgeTolBps,
		ThreshPct:           t.ThreshPct,
		MinNotionalARS:      t.MinNotionalARS,
		RiskPollInterval:    t.RiskPollInterval,
		RiskRefreshInterval: t.RiskRefreshInterval,
		PollInterval:        t.PollInterval,
		UnwindMode:          t.UnwindMode,
		BalanceMode:         t.BalanceMode,
		TraceEnabled:        t.TraceEnabled,
		TraceRaw:            t.TraceRaw,

		ReferenceMode:             t.ReferenceMode,
		HalfLife:                  t.HalfLife,
		RefTune:                   t.RefTune,
		RefK:                      t.RefK,
		RefMinHalfLife:            t.RefMinHalfLife,
		RefMaxHalfLife:            t.RefMaxHalfLife,
		LatProbeInterval:          t.LatProbeInterval,
		InstrumentRefreshInterval: t.InstrumentRefreshInterval,

		Environment:    t.Environment,
		RestURL:        t.RestURL,
		WSURL:          t.WSURL,
		Username:       t.Username,
		Password:       t.Password,
		Account:        t.Account,
		ProprietaryTag: t.ProprietaryTag,
	}
}

// Apply applies every recognized key in overrides, returning the recognized
// keys that were applied (whether or not their value differs from the
// previous one) and the first error encountered (processing continues
// past a single bad key; all valid keys in the same call still apply).
func (t *Tunables) Apply(overrides map[string]any) (applied map[string]any, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	applied = make(map[string]any)
	for key, raw := range overrides {
		if setErr := t.applyOneLocked(key, raw, applied); setErr != nil && err == nil {
			err = setErr
		}
	}
	return applied, err
}

func (t *Tunables) applyOneLocked(key string, raw any, applied map[string]any) error {
	switch key {
	case "WAIT_MS":
		ms, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.WaitDuration = time.Duration(ms) * time.Millisecond
	case "GRACE_MS":
		ms, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.GraceDuration = time.Duration(ms) * time.Millisecond
	case "EDGE_TOL_BPS":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.EdgeTolBps = v
	case "thresh_pct":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.ThreshPct = v
	case "min_notional_ars":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.MinNotionalARS = v
	case "risk_poll_s":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.RiskPollInterval = time.Duration(v * float64(time.Second))
	case "risk_refresh_s":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.RiskRefreshInterval = time.Duration(v * float64(time.Second))
	case "poll_s":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.PollInterval = time.Duration(v * float64(time.Second))
	case "UNWIND_MODE":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.UnwindMode = v
	case "balance_mode":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.BalanceMode = v
	case "trace_enabled":
		v, ok := raw.(bool)
		if !ok {
			return core.NewControlApplyError(key, errNotBool)
		}
		t.TraceEnabled = v
	case "trace_raw":
		v, ok := raw.(bool)
		if !ok {
			return core.NewControlApplyError(key, errNotBool)
		}
		t.TraceRaw = v
	case "HALF_LIFE_S":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.HalfLife = time.Duration(v * float64(time.Second))
	case "REF_K":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.RefK = v
	case "REF_MIN_HL_S":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.RefMinHalfLife = time.Duration(v * float64(time.Second))
	case "REF_MAX_HL_S":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.RefMaxHalfLife = time.Duration(v * float64(time.Second))
	case "LAT_PROBE_S":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.LatProbeInterval = time.Duration(v * float64(time.Second))
	case "instrument_refresh_s":
		v, ok := asFloat(raw)
		if !ok {
			return core.NewControlApplyError(key, errNotNumeric)
		}
		t.InstrumentRefreshInterval = time.Duration(v * float64(time.Second))
	case "REF_TUNE":
		v, ok := raw.(bool)
		if !ok {
			return core.NewControlApplyError(key, errNotBool)
		}
		t.RefTune = v
	case "REF_MODE":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.ReferenceMode = v
	case "environment":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.Environment = v
	case "rest_url":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.RestURL = v
	case "ws_url":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.WSURL = v
	case "username":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.Username = v
	case "password":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.Password = v
	case "account":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.Account = v
	case "proprietary_tag":
		v, ok := raw.(string)
		if !ok {
			return core.NewControlApplyError(key, errNotString)
		}
		t.ProprietaryTag = v
	default:
		return nil // unknown keys are silently ignored, matching the original's hasattr guard
	}
	applied[key] = raw
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
