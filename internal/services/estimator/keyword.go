package estimator

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// KeywordRule maps a keyword to an estimate in minutes
type KeywordRule struct {
	Keyword string
	Minutes int
}

// DefaultKeywordRules are checked in order; the first keyword contained in the
// description wins.
var DefaultKeywordRules = []KeywordRule{
	{Keyword: "short", Minutes: 30},
	{Keyword: "quick", Minutes: 30},
	{Keyword: "brief", Minutes: 30},
	{Keyword: "long", Minutes: 480},
	{Keyword: "lengthy", Minutes: 480},
	{Keyword: "complex", Minutes: 480},
}

// KeywordEstimator estimates durations from a fixed keyword table. It never fails.
type KeywordEstimator struct {
	rules  []KeywordRule
	logger *zap.Logger
}

// NewKeywordEstimator creates an estimator using DefaultKeywordRules
func NewKeywordEstimator(logger *zap.Logger) *KeywordEstimator {
	return NewKeywordEstimatorWithRules(DefaultKeywordRules, logger)
}

// NewKeywordEstimatorWithRules creates an estimator with a custom rule table
func NewKeywordEstimatorWithRules(rules []KeywordRule, logger *zap.Logger) *KeywordEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make([]KeywordRule, len(rules))
	copy(copied, rules)
	return &KeywordEstimator{rules: copied, logger: logger}
}

// EstimateMinutes returns the minutes of the first matching keyword
func (e *KeywordEstimator) EstimateMinutes(_ context.Context, description string) (int, bool, error) {
	lowered := strings.ToLower(description)
	for _, rule := range e.rules {
		if strings.Contains(lowered, rule.Keyword) {
			return rule.Minutes, true, nil
		}
	}
	e.logger.Debug("estimate_unknown",
		zap.String("estimator", "keyword"),
		zap.Int("description_length", len(description)),
	)
	return 0, false, nil
}
