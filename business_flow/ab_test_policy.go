package businessflow

import (
	"strings"

	"github.com/amirphl/Orochi-Mail/models"
)

const (
	MinTestGroupPercent = 10
	MaxTestGroupPercent = 50
)

// NormalizeABTest validates an A/B configuration and returns the form that is
// persisted. A disabled test never carries a variant B subject.
func NormalizeABTest(cfg models.ABTestConfig) (models.ABTestConfig, error) {
	if !cfg.Enabled {
		return models.ABTestConfig{}, nil
	}

	if cfg.TestGroupPercent < MinTestGroupPercent || cfg.TestGroupPercent > MaxTestGroupPercent {
		return models.ABTestConfig{}, ErrABTestGroupPercentOutOfRange
	}

	variantB := strings.TrimSpace(cfg.SubjectVariantB)
	if variantB == "" {
		return models.ABTestConfig{}, ErrABTestVariantBRequired
	}

	return models.ABTestConfig{
		Enabled:          true,
		SubjectVariantB:  variantB,
		TestGroupPercent: cfg.TestGroupPercent,
	}, nil
}
