package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_PAPER_PASSWORD", "s3cr3t")
	path := writeTempConfig(t, `
instance:
  id: agent-1
  environment: paper
api:
  paper_username: bot
  paper_password: ${TEST_PAPER_PASSWORD}
  account_paper: "123"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.PaperPassword != "s3cr3t" {
		t.Fatalf("expected expanded password, got %q", cfg.API.PaperPassword)
	}
}

func TestLoadWithDefaultsAppliesEnvironmentSpecificURLs(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: agent-1
  environment: live
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.API.RestURL != DefaultRestURLLive {
		t.Errorf("expected live REST URL default, got %q", cfg.API.RestURL)
	}
	if cfg.Trading.ThreshPct != DefaultThreshPct {
		t.Errorf("expected default thresh_pct, got %v", cfg.Trading.ThreshPct)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: agent-1
  environment: paper
`)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error for missing credentials")
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: agent-1
  environment: paper
api:
  paper_username: bot
  paper_password: pw
  account_paper: "123"
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}
	if cfg.Balance.Mode != DefaultBalanceMode {
		t.Errorf("expected default balance mode, got %q", cfg.Balance.Mode)
	}
}

func TestValidateRejectsBadUnwindMode(t *testing.T) {
	path := writeTempConfig(t, `
instance:
  id: agent-1
  environment: paper
api:
  paper_username: bot
  paper_password: pw
  account_paper: "123"
execution:
  unwind_mode: sometimes
`)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error for invalid unwind mode")
	}
}
