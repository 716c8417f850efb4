package registry

import (
	"errors"
	"testing"
)

func newTestTable(t *testing.T, capacity, min, max, tiers int) *Table {
	t.Helper()
	tbl, err := NewTable(capacity, min, max, tiers)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return tbl
}

func TestInsertAllocatesMonotonicIDs(t *testing.T) {
	tbl := newTestTable(t, 10, 1, 100, 10)
	for i := 0; i < 3; i++ {
		id, err := tbl.Insert([]byte("pk"), []byte("sig"), 10+i, 0)
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		if id != uint64(i) {
			t.Errorf("Expected id %d, got %d", i, id)
		}
	}

	n, err := tbl.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n.SGXt != 11 || n.Remaining != 11 || n.Leadership != 0 {
		t.Errorf("Expected fresh record (sgxt=11, remaining=11, leadership=0), got %+v", n)
	}
}

func TestInsertBounds(t *testing.T) {
	tbl := newTestTable(t, 10, 5, 50, 10)

	if _, err := tbl.Insert(nil, nil, 4, 0); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected below lower bound, got %v", err)
	}
	if _, err := tbl.Insert(nil, nil, 51, 0); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected above upper bound, got %v", err)
	}
	if _, err := tbl.Insert(nil, nil, 5, 0); err != nil {
		t.Errorf("Expected lower bound to be inclusive, got %v", err)
	}
	if _, err := tbl.Insert(nil, nil, 50, 0); err != nil {
		t.Errorf("Expected upper bound to be inclusive, got %v", err)
	}
}

func TestInsertCapacity(t *testing.T) {
	tbl := newTestTable(t, 3, 1, 100, 10)
	for i := 0; i < 3; i++ {
		if _, err := tbl.Insert(nil, nil, 10, 0); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}
	if _, err := tbl.Insert(nil, nil, 10, 0); !errors.Is(err, ErrCapacity) {
		t.Errorf("Expected ErrCapacity on fourth insert, got %v", err)
	}
}

func TestDecrementRetiresAtZero(t *testing.T) {
	tbl := newTestTable(t, 10, 1, 100, 10)
	id, _ := tbl.Insert(nil, nil, 3, 0)

	if err := tbl.Decrement(id, 2); err != nil {
		t.Fatalf("Decrement failed: %v", err)
	}
	n, _ := tbl.Get(id)
	if n.Remaining != 1 || n.Retired {
		t.Errorf("Expected remaining 1 and not retired, got %+v", n)
	}

	if err := tbl.Decrement(id, 2); err == nil {
		t.Error("Expected billing past zero to fail")
	}

	if err := tbl.Decrement(id, 1); err != nil {
		t.Fatalf("Decrement to zero failed: %v", err)
	}
	n, _ = tbl.Get(id)
	if n.Remaining != 0 || !n.Retired {
		t.Errorf("Expected retirement at zero, got %+v", n)
	}
}

func TestSnapshotActiveFiltersArrivalAndRetired(t *testing.T) {
	tbl := newTestTable(t, 10, 1, 100, 10)
	a, _ := tbl.Insert(nil, nil, 20, 0) // tier 2
	b, _ := tbl.Insert(nil, nil, 5, 3)  // pending until tick 3
	c, _ := tbl.Insert(nil, nil, 10, 0)
	tbl.Decrement(c, 10) // retired

	snap := tbl.SnapshotActive(0)
	if len(snap) != 1 || snap[0].ID != a {
		t.Fatalf("Expected only node %d active at tick 0, got %+v", a, snap)
	}
	if snap[0].Tier != 2 {
		t.Errorf("Expected tier 2 for sgxt 20 with divisor 10, got %d", snap[0].Tier)
	}

	snap = tbl.SnapshotActive(3)
	if len(snap) != 2 {
		t.Fatalf("Expected two active nodes at tick 3, got %+v", snap)
	}
	if snap[1].ID != b || snap[1].Tier != 1 {
		t.Errorf("Expected node %d in tier 1, got %+v", b, snap[1])
	}
}

func TestTierDerivation(t *testing.T) {
	tbl := newTestTable(t, 10, 1, 100, 4)
	cases := map[int]int{1: 1, 4: 1, 5: 2, 8: 2, 9: 3, 100: 25}
	for sgxt, want := range cases {
		if got := tbl.TierOf(sgxt); got != want {
			t.Errorf("TierOf(%d): expected %d, got %d", sgxt, want, got)
		}
	}
	if got := tbl.TierCount(); got != 25 {
		t.Errorf("Expected 25 tiers, got %d", got)
	}
}

func TestAnyRemainingSeesPendingNodes(t *testing.T) {
	tbl := newTestTable(t, 10, 1, 100, 10)
	if tbl.AnyRemaining() {
		t.Error("Expected empty table to have no remaining budget")
	}
	id, _ := tbl.Insert(nil, nil, 2, 5) // arrives in the future
	if !tbl.AnyRemaining() {
		t.Error("Expected pending node to count as remaining budget")
	}
	tbl.Decrement(id, 2)
	if tbl.AnyRemaining() {
		t.Error("Expected no remaining budget after retirement")
	}
}
