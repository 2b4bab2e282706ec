package quota

import (
	"fmt"

	"app/internal/config"
	"app/internal/model"

	"github.com/go-playground/validator/v10"
)

// Policy is the static per-provider quota configuration, resolved once at
// process start and injected into the tracker. Operation costs are local
// defaults, not provider-guaranteed truth.
type Policy struct {
	DailyLimit        int     `validate:"gt=0"`
	WarningThreshold  float64 `validate:"gt=0,ltfield=CriticalThreshold"`
	CriticalThreshold float64 `validate:"gt=0,lte=1"`
	OperationCosts    map[model.QuotaOperation]int
}

// PolicyFromConfig builds the quota policy from process configuration.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		DailyLimit:        cfg.QuotaDailyLimit,
		WarningThreshold:  cfg.QuotaWarningThreshold,
		CriticalThreshold: cfg.QuotaCriticalThreshold,
		OperationCosts: map[model.QuotaOperation]int{
			model.OpListItems:   cfg.QuotaCostListItems,
			model.OpItemDetails: cfg.QuotaCostItemDetails,
			model.OpSearch:      cfg.QuotaCostSearch,
			model.OpSourceInfo:  cfg.QuotaCostSourceInfo,
		},
	}
}

// Validate checks the policy invariants. A negative or zero cost is a
// configuration bug and should abort startup.
func (p Policy) Validate(validate *validator.Validate) error {
	if err := validate.Struct(&p); err != nil {
		return fmt.Errorf("quota policy invalid: %w", err)
	}
	for op, cost := range p.OperationCosts {
		if cost <= 0 {
			return fmt.Errorf("quota policy invalid: operation %s has non-positive cost %d", op, cost)
		}
	}
	return nil
}

// Cost returns the unit cost for an operation, defaulting to 1 when the
// operation has no entry in the cost table.
func (p Policy) Cost(op model.QuotaOperation) int {
	if cost, ok := p.OperationCosts[op]; ok {
		return cost
	}
	return 1
}

// Level classifies a usage percentage against the policy thresholds.
func (p Policy) Level(usagePercentage float64) model.WarningLevel {
	switch {
	case usagePercentage >= p.CriticalThreshold*100:
		return model.WarningLevelCritical
	case usagePercentage >= p.WarningThreshold*100:
		return model.WarningLevelWarning
	default:
		return model.WarningLevelSafe
	}
}
