package config

import "time"

// Config is the root configuration for an agent instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	API       APIConfig       `yaml:"api"`
	Trading   TradingConfig   `yaml:"trading"`
	Balance   BalanceConfig   `yaml:"balance"`
	Execution ExecutionConfig `yaml:"execution"`
	Reference ReferenceConfig `yaml:"reference"`
	Latency   LatencyConfig   `yaml:"latency"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Control   ControlConfig   `yaml:"control"`
	Status    StatusConfig    `yaml:"status"`
	Trace     TraceConfig     `yaml:"trace"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this agent instance.
type InstanceConfig struct {
	ID          string `yaml:"id"`
	Environment string `yaml:"environment"` // "paper" or "live"
}

// APIConfig holds venue connectivity and credentials.
//
// Credentials are environment-scoped: the agent picks PaperUsername/Password
// or LiveUsername/Password (and the matching account) based on
// Instance.Environment, mirroring the venue's paper/live account split.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	PaperUsername  string        `yaml:"paper_username"`
	PaperPassword  string        `yaml:"paper_password"`
	LiveUsername   string        `yaml:"live_username"`
	LivePassword   string        `yaml:"live_password"`
	AccountPaper   string        `yaml:"account_paper"`
	AccountLive    string        `yaml:"account_live"`
	ProprietaryTag string        `yaml:"proprietary_tag"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// Credentials returns the username/password pair for the configured environment.
func (a APIConfig) Credentials(environment string) (username, password string) {
	if environment == "live" {
		return a.LiveUsername, a.LivePassword
	}
	return a.PaperUsername, a.PaperPassword
}

// Account returns the account identifier for the configured environment.
func (a APIConfig) Account(environment string) string {
	if environment == "live" {
		return a.AccountLive
	}
	return a.AccountPaper
}

// TradingConfig holds the signal-evaluation cadence and sizing gates.
// Every field here except CostBps and SlipBps has a Control Channel override
// of the same name (spec.md §4.8): PollInterval<->poll_s,
// MinNotionalARS<->min_notional_ars, ThreshPct<->thresh_pct.
type TradingConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	MinNotionalARS float64       `yaml:"min_notional_ars"`
	ThreshPct      float64       `yaml:"thresh_pct"`
	CostBps        float64       `yaml:"cost_bps"`
	SlipBps        float64       `yaml:"slip_bps"`
}

// BalanceConfig selects how the Reconciler's cash is kept authoritative.
type BalanceConfig struct {
	Mode                string        `yaml:"mode"` // "risk_poll" or "er_reconcile"
	RiskPollInterval    time.Duration `yaml:"risk_poll_interval"`
	RiskRefreshInterval time.Duration `yaml:"risk_refresh_interval"`
}

// ExecutionConfig parameterizes the two-leg execution coordinator.
type ExecutionConfig struct {
	WaitDuration  time.Duration `yaml:"wait_duration"`
	GraceDuration time.Duration `yaml:"grace_duration"`
	EdgeTolBps    float64       `yaml:"edge_tol_bps"`
	UnwindMode    string        `yaml:"unwind_mode"` // "smart" | "always" | "none"
}

// ReferenceConfig parameterizes the reference-rate estimator and its
// latency-driven retuning.
type ReferenceConfig struct {
	Mode        string        `yaml:"mode"` // "tick" | "hybrid"
	HalfLife    time.Duration `yaml:"half_life"`
	Tune        bool          `yaml:"tune"`
	TuneFactor  float64       `yaml:"tune_factor"` // REF_K
	MinHalfLife time.Duration `yaml:"min_half_life"`
	MaxHalfLife time.Duration `yaml:"max_half_life"`
}

// LatencyConfig parameterizes the periodic round-trip latency probe.
type LatencyConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// DiscoveryConfig parameterizes periodic instrument-pair refresh.
type DiscoveryConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ControlConfig locates the operator control document.
type ControlConfig struct {
	Path             string        `yaml:"path"`
	ThrottleInterval time.Duration `yaml:"throttle_interval"`
}

// StatusConfig locates the status/books/positions snapshot outputs.
type StatusConfig struct {
	Dir string `yaml:"dir"`
}

// TraceConfig is carried for parity with the operator dashboard's expected
// fields (spec.md §1 treats the trace/audit log format as an external
// collaborator); the agent does not implement tracing itself.
type TraceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	RotateMB int    `yaml:"rotate_mb"`
	Raw      bool   `yaml:"raw"`
}

// MetricsConfig holds the Prometheus exposition endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
