package control

import "time"

// Loop polls the control document on a throttle, one-shot command flags take
// effect immediately; tunable overrides are only re-applied once per
// ThrottleInterval, matching the operator's expectation that held-down
// edits to the file don't hammer Apply on every trading-loop tick.
type Loop struct {
	path             string
	throttleInterval time.Duration
	lastApply        time.Time
}

// NewLoop creates a Loop for the control document at path.
func NewLoop(path string, throttleInterval time.Duration) *Loop {
	return &Loop{path: path, throttleInterval: throttleInterval}
}

// Outcome reports what a single Poll call found.
type Outcome struct {
	PanicStop            bool
	Resume               bool
	ReloadInstrumentsNow bool
	ForceFlatten         bool
	ForceReauth          bool
	Applied              map[string]any
	ApplyErr             error
}

// Poll reads the control document once, clears any one-shot flags it finds
// set (panic_stop is not one of them and stays in the file), and applies
// tunable overrides if the throttle interval has elapsed.
func (l *Loop) Poll(tunables *Tunables, now time.Time) (Outcome, error) {
	doc, err := ReadDocument(l.path)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		PanicStop:            doc.PanicStop,
		Resume:               doc.Resume,
		ReloadInstrumentsNow: doc.ReloadInstrumentsNow,
		ForceFlatten:         doc.ForceFlatten,
		ForceReauth:          doc.ForceReauth,
	}

	if doc.Resume || doc.ReloadInstrumentsNow || doc.ForceFlatten || doc.ForceReauth {
		if err := ClearOneShotFlags(l.path, doc); err != nil {
			return outcome, err
		}
	}

	if len(doc.Overrides) > 0 && now.Sub(l.lastApply) > l.throttleInterval {
		applied, applyErr := tunables.Apply(doc.Overrides)
		outcome.Applied = applied
		outcome.ApplyErr = applyErr
		l.lastApply = now
	}

	return outcome, nil
}
