package scheduler

import (
	"testing"

	"github.com/bashar404/poet/coordinator/registry"
)

type simNode struct {
	sgxt    int
	arrival int
}

func buildSim(t *testing.T, sgxtMax, totalTiers int, nodes []simNode) (*registry.Table, *Scheduler) {
	t.Helper()
	table, err := registry.NewTable(len(nodes)+1, 1, sgxtMax, totalTiers)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	for i, n := range nodes {
		if _, err := table.Insert(nil, nil, n.sgxt, n.arrival); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}
	return table, New(table)
}

func leaderSequence(s *Scheduler) []uint64 {
	var seq []uint64
	for _, e := range s.TickLog() {
		seq = append(seq, e.NodeID)
	}
	return seq
}

func TestTwoNodeSingleTier(t *testing.T) {
	// TOTAL_TIERS=1, A(0,4), B(0,4): q = ceil(8/4) = 2, so the slices
	// interleave A,A,B,B,A,A,B,B over 8 ticks, one leadership each.
	table, sched := buildSim(t, 4, 1, []simNode{{4, 0}, {4, 0}})

	steps := sched.Run()
	if steps != 4 {
		t.Errorf("Expected 4 slices, got %d", steps)
	}

	want := []uint64{0, 0, 1, 1, 0, 0, 1, 1}
	got := leaderSequence(sched)
	if len(got) != len(want) {
		t.Fatalf("Expected %d billed ticks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tick %d: expected node %d, got %d (sequence %v)", i, want[i], got[i], got)
		}
	}

	for id := uint64(0); id < 2; id++ {
		n, _ := table.Get(id)
		if n.Leadership != 1 {
			t.Errorf("Expected node %d leadership 1, got %d", id, n.Leadership)
		}
		if !n.Retired || n.Remaining != 0 {
			t.Errorf("Expected node %d retired with 0 remaining, got %+v", id, n)
		}
	}
}

func TestStaggeredArrivalsNoPreemption(t *testing.T) {
	// TOTAL_TIERS=2, A(0,6), B(2,2). A's slice is computed before B
	// arrives (tier 3, q = 6) and is not preempted; B then runs its
	// whole budget in one slice.
	table, sched := buildSim(t, 6, 2, []simNode{{6, 0}, {2, 2}})

	id, slice, ok := sched.Step()
	if !ok || id != 0 || slice != 6 {
		t.Fatalf("Expected A to run a 6-tick slice, got id=%d slice=%d ok=%v", id, slice, ok)
	}

	id, slice, ok = sched.Step()
	if !ok || id != 1 || slice != 2 {
		t.Fatalf("Expected B to run a 2-tick slice, got id=%d slice=%d ok=%v", id, slice, ok)
	}

	if _, _, ok := sched.Step(); ok {
		t.Error("Expected IDLE after both nodes retired")
	}

	want := []uint64{0, 0, 0, 0, 0, 0, 1, 1}
	got := leaderSequence(sched)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tick %d: expected node %d, got %d (sequence %v)", i, want[i], got[i], got)
		}
	}

	for id := uint64(0); id < 2; id++ {
		n, _ := table.Get(id)
		if n.Leadership != 1 {
			t.Errorf("Expected node %d leadership 1, got %d", id, n.Leadership)
		}
	}
}

func TestClockAdvancesToFutureArrival(t *testing.T) {
	// A single node arriving at tick 5: the scheduler idles the clock
	// forward rather than returning IDLE while budget exists.
	_, sched := buildSim(t, 10, 2, []simNode{{3, 5}})

	id, slice, ok := sched.Step()
	if !ok || id != 0 || slice != 3 {
		t.Fatalf("Expected node 0 to run 3 ticks, got id=%d slice=%d ok=%v", id, slice, ok)
	}

	log := sched.TickLog()
	if log[0].Tick != 5 {
		t.Errorf("Expected first billed tick at 5, got %d", log[0].Tick)
	}
	if _, _, ok := sched.Step(); ok {
		t.Error("Expected IDLE once the only node retired")
	}
}

func TestConservation(t *testing.T) {
	// Sum over nodes of (SGXt - remaining) must equal the billed ticks.
	nodes := []simNode{{7, 0}, {3, 1}, {12, 4}, {5, 2}, {9, 0}}
	table, sched := buildSim(t, 12, 3, nodes)

	for i := 0; i < 3; i++ {
		sched.Step()
		billed := 0
		for _, n := range table.All() {
			billed += n.SGXt - n.Remaining
		}
		if billed != len(sched.TickLog()) {
			t.Fatalf("After step %d: billed %d ticks but log has %d", i, billed, len(sched.TickLog()))
		}
	}

	sched.Run()
	total := 0
	for _, n := range nodes {
		total += n.sgxt
	}
	if len(sched.TickLog()) != total {
		t.Errorf("Expected %d total billed ticks, got %d", total, len(sched.TickLog()))
	}
}

func TestQueueUniquenessAndAdmitIdempotence(t *testing.T) {
	_, sched := buildSim(t, 10, 2, []simNode{{6, 0}, {4, 0}})

	// Admit repeatedly; membership must stay at most one.
	for i := 0; i < 5; i++ {
		sched.Admit(0)
		sched.Admit(1)
	}
	if depth := sched.QueueDepth(); depth != 2 {
		t.Errorf("Expected queue depth 2 after repeated admits, got %d", depth)
	}

	seen := make(map[uint64]int)
	sched.mu.Lock()
	for _, id := range sched.queue {
		seen[id]++
	}
	sched.mu.Unlock()
	for id, count := range seen {
		if count > 1 {
			t.Errorf("Node %d appears %d times in the run queue", id, count)
		}
	}
}

func TestAdmitIgnoresRetiredNodes(t *testing.T) {
	table, sched := buildSim(t, 10, 2, []simNode{{2, 0}})
	sched.Run()

	n, _ := table.Get(0)
	if !n.Retired {
		t.Fatal("Expected node 0 to retire")
	}
	sched.Admit(0)
	if depth := sched.QueueDepth(); depth != 0 {
		t.Errorf("Expected retired node to stay out of the queue, got depth %d", depth)
	}
}

func TestFairnessWithinTier(t *testing.T) {
	// Four equal nodes in one tier: leadership counts may differ by at
	// most one at any point, and end equal.
	table, sched := buildSim(t, 8, 8, []simNode{{8, 0}, {8, 0}, {8, 0}, {8, 0}})

	for {
		_, _, ok := sched.Step()
		var counts []int
		for _, n := range table.All() {
			counts = append(counts, n.Leadership)
		}
		min, max := counts[0], counts[0]
		for _, c := range counts {
			if c < min {
				min = c
			}
			if c > max {
				max = c
			}
		}
		if max-min > 1 {
			t.Fatalf("Leadership spread exceeded 1: %v", counts)
		}
		if !ok {
			break
		}
	}

	for _, n := range table.All() {
		if n.Leadership != 1 {
			t.Errorf("Expected node %d leadership 1, got %d", n.ID, n.Leadership)
		}
	}
}

func TestMidSliceAdmissionSeesFreshQuanta(t *testing.T) {
	// B arrives during A's slice; the recomputation it triggers must
	// shape B's first slice without preempting A.
	table, sched := buildSim(t, 8, 8, []simNode{{8, 0}, {8, 3}})

	id, slice, _ := sched.Step()
	if id != 0 || slice != 8 {
		t.Fatalf("Expected A to run 8 ticks alone (q=ceil(8/1)), got id=%d slice=%d", id, slice)
	}

	// B was admitted mid-slice; with A retired the rebuild at B's
	// admission still counted A's leftover, so B's slice uses the
	// quantum from that rebuild.
	id, slice, _ = sched.Step()
	if id != 1 {
		t.Fatalf("Expected B next, got %d", id)
	}
	if slice < 1 || slice > 8 {
		t.Errorf("Expected a sane slice for B, got %d", slice)
	}

	n, _ := table.Get(1)
	if n.Remaining != 8-slice {
		t.Errorf("Expected B billed %d ticks, got remaining %d", slice, n.Remaining)
	}
}

func TestTierTableQuantum(t *testing.T) {
	tt := NewTierTable(3)
	tt.Rebuild([]registry.ActiveNode{
		{ID: 0, Tier: 1, Remaining: 4},
		{ID: 1, Tier: 1, Remaining: 5},
		{ID: 2, Tier: 3, Remaining: 10},
	})

	// Tier 1: ceil(9/4) = 3; tier 3: ceil(10/1) = 10; empty tier 2
	// falls back to a single tick.
	if q := tt.Quantum(1); q != 3 {
		t.Errorf("Expected tier 1 quantum 3, got %d", q)
	}
	if q := tt.Quantum(3); q != 10 {
		t.Errorf("Expected tier 3 quantum 10, got %d", q)
	}
	if q := tt.Quantum(2); q != 1 {
		t.Errorf("Expected empty tier quantum to clamp to 1, got %d", q)
	}
	if n := tt.ActiveNodes(1); n != 2 {
		t.Errorf("Expected 2 active nodes in tier 1, got %d", n)
	}
}

func TestBudgetMonotonicity(t *testing.T) {
	table, sched := buildSim(t, 10, 2, []simNode{{10, 0}, {6, 1}, {4, 3}})

	prev := make(map[uint64]int)
	for _, n := range table.All() {
		prev[n.ID] = n.Remaining
	}
	for {
		_, _, ok := sched.Step()
		for _, n := range table.All() {
			if n.Remaining > prev[n.ID] {
				t.Fatalf("Node %d remaining grew from %d to %d", n.ID, prev[n.ID], n.Remaining)
			}
			if n.Remaining < 0 || n.Remaining > n.SGXt {
				t.Fatalf("Node %d remaining %d outside [0, %d]", n.ID, n.Remaining, n.SGXt)
			}
			prev[n.ID] = n.Remaining
		}
		if !ok {
			break
		}
	}
}
