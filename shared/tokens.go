package shared

// TokenEstimator approximates how many model tokens a piece of text costs.
// The trimming logic in the context builder only depends on this interface,
// so a real tokenizer can be dropped in without touching the algorithm.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator is the default estimator: one token per four characters,
// rounded up. Cheap and close enough for budget trimming.
type CharEstimator struct{}

func (CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
