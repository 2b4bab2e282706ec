package quota

import (
	"testing"

	"app/internal/model"

	"github.com/go-playground/validator/v10"
)

func testPolicy() Policy {
	return Policy{
		DailyLimit:        10000,
		WarningThreshold:  0.8,
		CriticalThreshold: 0.95,
		OperationCosts: map[model.QuotaOperation]int{
			model.OpListItems:   1,
			model.OpItemDetails: 1,
			model.OpSearch:      100,
			model.OpSourceInfo:  1,
		},
	}
}

func TestPolicyLevel(t *testing.T) {
	p := testPolicy()
	tests := []struct {
		pct  float64
		want model.WarningLevel
	}{
		{0, model.WarningLevelSafe},
		{79.9, model.WarningLevelSafe},
		{80, model.WarningLevelWarning},
		{94.9, model.WarningLevelWarning},
		{95, model.WarningLevelCritical},
		{96, model.WarningLevelCritical},
		{120, model.WarningLevelCritical},
	}
	for _, tt := range tests {
		if got := p.Level(tt.pct); got != tt.want {
			t.Errorf("Level(%.1f) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestPolicyCostDefaultsToOne(t *testing.T) {
	p := testPolicy()
	if got := p.Cost(model.OpSearch); got != 100 {
		t.Errorf("Cost(search) = %d, want 100", got)
	}
	if got := p.Cost(model.QuotaOperation("unknown_op")); got != 1 {
		t.Errorf("Cost(unknown) = %d, want 1", got)
	}
}

func TestPolicyValidate(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := testPolicy().Validate(validate); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	p := testPolicy()
	p.DailyLimit = 0
	if err := p.Validate(validate); err == nil {
		t.Error("expected error for zero daily limit")
	}

	p = testPolicy()
	p.WarningThreshold = 0.95
	p.CriticalThreshold = 0.9
	if err := p.Validate(validate); err == nil {
		t.Error("expected error when warning threshold >= critical threshold")
	}

	p = testPolicy()
	p.OperationCosts[model.OpSearch] = 0
	if err := p.Validate(validate); err == nil {
		t.Error("expected error for non-positive operation cost")
	}
}
