package config

import "time"

// Default values for optional configuration fields, taken from the
// original agent's Settings defaults (original_source/settings.py).
const (
	DefaultRestURLPaper = "https://api.remarkets.primary.com.ar"
	DefaultWSURLPaper   = "wss://api.remarkets.primary.com.ar/ws"
	DefaultRestURLLive  = "https://api.primary.com.ar"
	DefaultWSURLLive    = "wss://api.primary.com.ar/ws"

	DefaultProprietaryTag = "PBCP"
	DefaultAPITimeout     = 3 * time.Second
	DefaultMaxRetries     = 3

	DefaultPollInterval   = 200 * time.Millisecond
	DefaultMinNotionalARS = 40000.0
	DefaultThreshPct      = 0.002

	DefaultBalanceMode         = "risk_poll"
	DefaultRiskPollInterval    = 500 * time.Millisecond
	DefaultRiskRefreshInterval = 30 * time.Second

	DefaultWaitDuration  = 120 * time.Millisecond
	DefaultGraceDuration = 800 * time.Millisecond
	DefaultEdgeTolBps    = 1.0
	DefaultUnwindMode    = "smart"

	DefaultReferenceMode   = "hybrid"
	DefaultHalfLife        = 7 * time.Second
	DefaultRefTuneFactor   = 4.0
	DefaultMinHalfLife     = 2 * time.Second
	DefaultMaxHalfLife     = 20 * time.Second

	DefaultLatencyProbeInterval = 5 * time.Second

	DefaultDiscoveryRefreshInterval = 24 * time.Hour

	DefaultControlThrottleInterval = 250 * time.Millisecond
	DefaultControlPath             = "control.json"
	DefaultStatusDir               = "."

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.Instance.Environment == "" {
		c.Instance.Environment = "paper"
	}

	if c.API.RestURL == "" {
		if c.Instance.Environment == "live" {
			c.API.RestURL = DefaultRestURLLive
		} else {
			c.API.RestURL = DefaultRestURLPaper
		}
	}
	if c.API.WSURL == "" {
		if c.Instance.Environment == "live" {
			c.API.WSURL = DefaultWSURLLive
		} else {
			c.API.WSURL = DefaultWSURLPaper
		}
	}
	if c.API.ProprietaryTag == "" {
		c.API.ProprietaryTag = DefaultProprietaryTag
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Trading.PollInterval == 0 {
		c.Trading.PollInterval = DefaultPollInterval
	}
	if c.Trading.MinNotionalARS == 0 {
		c.Trading.MinNotionalARS = DefaultMinNotionalARS
	}
	if c.Trading.ThreshPct == 0 {
		c.Trading.ThreshPct = DefaultThreshPct
	}

	if c.Balance.Mode == "" {
		c.Balance.Mode = DefaultBalanceMode
	}
	if c.Balance.RiskPollInterval == 0 {
		c.Balance.RiskPollInterval = DefaultRiskPollInterval
	}
	if c.Balance.RiskRefreshInterval == 0 {
		c.Balance.RiskRefreshInterval = DefaultRiskRefreshInterval
	}

	if c.Execution.WaitDuration == 0 {
		c.Execution.WaitDuration = DefaultWaitDuration
	}
	if c.Execution.GraceDuration == 0 {
		c.Execution.GraceDuration = DefaultGraceDuration
	}
	if c.Execution.EdgeTolBps == 0 {
		c.Execution.EdgeTolBps = DefaultEdgeTolBps
	}
	if c.Execution.UnwindMode == "" {
		c.Execution.UnwindMode = DefaultUnwindMode
	}

	if c.Reference.Mode == "" {
		c.Reference.Mode = DefaultReferenceMode
	}
	if c.Reference.HalfLife == 0 {
		c.Reference.HalfLife = DefaultHalfLife
	}
	if c.Reference.TuneFactor == 0 {
		c.Reference.TuneFactor = DefaultRefTuneFactor
	}
	if c.Reference.MinHalfLife == 0 {
		c.Reference.MinHalfLife = DefaultMinHalfLife
	}
	if c.Reference.MaxHalfLife == 0 {
		c.Reference.MaxHalfLife = DefaultMaxHalfLife
	}

	if c.Latency.ProbeInterval == 0 {
		c.Latency.ProbeInterval = DefaultLatencyProbeInterval
	}

	if c.Discovery.RefreshInterval == 0 {
		c.Discovery.RefreshInterval = DefaultDiscoveryRefreshInterval
	}

	if c.Control.Path == "" {
		c.Control.Path = DefaultControlPath
	}
	if c.Control.ThrottleInterval == 0 {
		c.Control.ThrottleInterval = DefaultControlThrottleInterval
	}

	if c.Status.Dir == "" {
		c.Status.Dir = DefaultStatusDir
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
