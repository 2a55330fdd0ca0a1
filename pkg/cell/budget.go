package cell

// Budget bounds subscriber-driven write loops within a single flush.
// Each time subscriber callbacks write back into the graph, the flush
// runs another pass (a cascade); exceeding MaxCascades invokes the
// graph's storm handler.
type Budget struct {
	// MaxCascades is the maximum number of update passes a single flush
	// may run before the graph declares an update storm.
	MaxCascades int
}

// DefaultBudget returns the default cascade budget.
func DefaultBudget() Budget {
	return Budget{MaxCascades: 100}
}
