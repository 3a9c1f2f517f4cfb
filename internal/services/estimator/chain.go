package estimator

import "context"

// ChainEstimator asks each estimator in order and returns the first known estimate.
// A provider error stops the chain and is returned unchanged.
type ChainEstimator struct {
	estimators []Estimator
}

// NewChainEstimator creates a chain; nil entries are skipped
func NewChainEstimator(estimators ...Estimator) *ChainEstimator {
	chain := &ChainEstimator{}
	for _, est := range estimators {
		if est != nil {
			chain.estimators = append(chain.estimators, est)
		}
	}
	return chain
}

// EstimateMinutes implements Estimator
func (c *ChainEstimator) EstimateMinutes(ctx context.Context, description string) (int, bool, error) {
	for _, est := range c.estimators {
		minutes, ok, err := est.EstimateMinutes(ctx, description)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return minutes, true, nil
		}
	}
	return 0, false, nil
}
