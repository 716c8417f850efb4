package scheduler

import "github.com/bashar404/poet/coordinator/registry"

// TierTable is the per-tier quantum table, rebuilt on every admission
// over the currently arrived, non-retired nodes. For a tier with n
// active nodes whose remaining budgets sum to S, the quantum is
// ceil(S / n^2): the squared denominator damps the quantum as a tier
// crowds, so a long tier cannot monopolise the schedule.
type TierTable struct {
	tierCount int
	counts    []int
	sums      []int
	quanta    []int
}

// NewTierTable sizes the table for tiers 1..tierCount.
func NewTierTable(tierCount int) *TierTable {
	if tierCount < 1 {
		tierCount = 1
	}
	return &TierTable{
		tierCount: tierCount,
		counts:    make([]int, tierCount+1),
		sums:      make([]int, tierCount+1),
		quanta:    make([]int, tierCount+1),
	}
}

// Rebuild recomputes counts, sums and quanta from an active snapshot.
// Tiers with no budget keep a zero quantum; Quantum clamps on use.
func (tt *TierTable) Rebuild(active []registry.ActiveNode) {
	for i := 1; i <= tt.tierCount; i++ {
		tt.counts[i] = 0
		tt.sums[i] = 0
		tt.quanta[i] = 0
	}
	for _, n := range active {
		if n.Tier < 1 || n.Tier > tt.tierCount {
			continue
		}
		tt.counts[n.Tier]++
		tt.sums[n.Tier] += n.Remaining
	}
	for i := 1; i <= tt.tierCount; i++ {
		if tt.sums[i] > 0 {
			nn := tt.counts[i] * tt.counts[i]
			tt.quanta[i] = (tt.sums[i] + nn - 1) / nn
		}
	}
}

// Quantum returns the current quantum for a tier, never less than one
// tick so a dequeued node always makes progress.
func (tt *TierTable) Quantum(tier int) int {
	if tier < 1 || tier > tt.tierCount {
		return 1
	}
	if q := tt.quanta[tier]; q > 0 {
		return q
	}
	return 1
}

// ActiveNodes returns the node count currently attributed to a tier.
func (tt *TierTable) ActiveNodes(tier int) int {
	if tier < 1 || tier > tt.tierCount {
		return 0
	}
	return tt.counts[tier]
}
