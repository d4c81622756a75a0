package config

import "testing"

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := validateConfig(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestDefaultSchedulerConfig(t *testing.T) {
	sc := DefaultSchedulerConfig()

	if sc.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", sc.MaxConcurrency, DefaultMaxConcurrency)
	}
	if sc.SkipVerification {
		t.Error("SkipVerification should default to false")
	}
	if sc.PrimaryBranch != DefaultPrimaryBranch {
		t.Errorf("PrimaryBranch = %q, want %q", sc.PrimaryBranch, DefaultPrimaryBranch)
	}
}

func TestDefaultExecutorConfig(t *testing.T) {
	ec := DefaultExecutorConfig()

	if ec.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %q, want %q", ec.CacheTTL, DefaultCacheTTL)
	}
	if ec.RequirePlanApproval {
		t.Error("RequirePlanApproval should default to false")
	}
	if len(ec.PipelineSteps) != 0 {
		t.Errorf("PipelineSteps should default to empty, got %v", ec.PipelineSteps)
	}
}
