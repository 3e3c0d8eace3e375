package workers

import "testing"

func TestCountRespectsLimit(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "")

	if got := Count(100.0, 4); got != 4 {
		t.Errorf("Count(100.0, 4) = %d, want 4", got)
	}
}

func TestCountMinimumOne(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "")

	if got := Count(0.0001, 0); got != 1 {
		t.Errorf("Count(0.0001, 0) = %d, want 1", got)
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "3")

	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count with override = %d, want 3", got)
	}

	// Override still respects the hard limit.
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("Count with override and limit = %d, want 2", got)
	}
}

func TestCountInvalidOverrideIgnored(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "banana")

	if got := Count(1.0, 1); got != 1 {
		t.Errorf("Count with invalid override = %d, want 1", got)
	}
}

func TestForIOAtLeastForCPU(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "")

	if ForIO(0) < ForCPU(0) {
		t.Errorf("ForIO(0)=%d < ForCPU(0)=%d", ForIO(0), ForCPU(0))
	}
}
