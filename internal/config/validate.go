package config

import (
	"fmt"

	"github.com/fransolofran/mesita-go/internal/core"
)

// Validate checks that all required fields are set and values are valid.
// Failures are core.ConfigError: fatal, must abort startup (spec.md §7).
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return core.NewConfigError("instance.id is required")
	}
	if c.Instance.Environment != "paper" && c.Instance.Environment != "live" {
		return core.NewConfigError(fmt.Sprintf("instance.environment must be paper or live, got %q", c.Instance.Environment))
	}

	username, password := c.API.Credentials(c.Instance.Environment)
	if username == "" || password == "" {
		return core.NewConfigError(fmt.Sprintf("missing credentials for environment %q", c.Instance.Environment))
	}
	if c.API.Account(c.Instance.Environment) == "" {
		return core.NewConfigError(fmt.Sprintf("missing account for environment %q", c.Instance.Environment))
	}
	if c.API.RestURL == "" || c.API.WSURL == "" {
		return core.NewConfigError("api.rest_url and api.ws_url are required")
	}

	if c.Trading.MinNotionalARS < 0 {
		return core.NewConfigError("trading.min_notional_ars must be >= 0")
	}
	if c.Trading.ThreshPct <= 0 {
		return core.NewConfigError("trading.thresh_pct must be > 0")
	}

	switch c.Balance.Mode {
	case "risk_poll", "er_reconcile":
	default:
		return core.NewConfigError(fmt.Sprintf("balance.mode must be risk_poll or er_reconcile, got %q", c.Balance.Mode))
	}

	switch c.Execution.UnwindMode {
	case "smart", "always", "none":
	default:
		return core.NewConfigError(fmt.Sprintf("execution.unwind_mode must be smart, always, or none, got %q", c.Execution.UnwindMode))
	}

	switch c.Reference.Mode {
	case "tick", "hybrid":
	default:
		return core.NewConfigError(fmt.Sprintf("reference.mode must be tick or hybrid, got %q", c.Reference.Mode))
	}
	if c.Reference.MinHalfLife > c.Reference.MaxHalfLife {
		return core.NewConfigError("reference.min_half_life cannot exceed reference.max_half_life")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return core.NewConfigError(fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}

	return nil
}
