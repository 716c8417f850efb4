// Package registry holds the SGX table: the mutex-guarded record of
// every node admitted to the election, keyed by a monotonic identifier.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRejected reports an SGXt outside the accepted bounds.
	ErrRejected = errors.New("registry: sgxt outside accepted bounds")

	// ErrCapacity reports a full table.
	ErrCapacity = errors.New("registry: sgx table full")

	// ErrNotFound reports an unknown node identifier.
	ErrNotFound = errors.New("registry: node not found")
)

// Node is one participant record. Identifiers are unique for the
// lifetime of the table; Remaining starts at SGXt and only decreases.
type Node struct {
	ID          uint64
	ArrivalTime int
	SGXt        int
	Remaining   int
	Leadership  int
	PublicKey   []byte
	Signature   []byte
	Retired     bool
}

// ActiveNode is a snapshot row over the arrived, non-retired records.
type ActiveNode struct {
	ID        uint64 `json:"id"`
	Tier      int    `json:"tier"`
	Remaining int    `json:"remaining"`
}

// Table is the fixed-capacity SGX table. Every operation takes the
// table lock for its whole duration and performs no I/O under it.
type Table struct {
	mu         sync.Mutex
	nodes      []*Node
	capacity   int
	sgxtMin    int
	sgxtMax    int
	totalTiers int
}

// NewTable builds a table accepting SGXt in [sgxtMin, sgxtMax] and at
// most capacity records. totalTiers is the tier divisor: a node's tier
// is ceil(SGXt / totalTiers), derived on demand rather than stored.
func NewTable(capacity, sgxtMin, sgxtMax, totalTiers int) (*Table, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("registry: capacity must be positive, got %d", capacity)
	}
	if sgxtMin < 1 || sgxtMax < sgxtMin {
		return nil, fmt.Errorf("registry: invalid sgxt bounds [%d, %d]", sgxtMin, sgxtMax)
	}
	if totalTiers < 1 {
		return nil, fmt.Errorf("registry: total tiers must be positive, got %d", totalTiers)
	}
	return &Table{
		nodes:      make([]*Node, 0, capacity),
		capacity:   capacity,
		sgxtMin:    sgxtMin,
		sgxtMax:    sgxtMax,
		totalTiers: totalTiers,
	}, nil
}

// TierOf derives the tier for a declared SGXt.
func (t *Table) TierOf(sgxt int) int {
	return (sgxt + t.totalTiers - 1) / t.totalTiers
}

// TierCount is the number of tiers the table can produce.
func (t *Table) TierCount() int {
	return t.TierOf(t.sgxtMax)
}

// Bounds returns the accepted SGXt range.
func (t *Table) Bounds() (min, max int) {
	return t.sgxtMin, t.sgxtMax
}

// Insert admits a new record with remaining = sgxt and leadership 0,
// stamped with the given arrival tick. It returns the allocated id.
func (t *Table) Insert(publicKey, signature []byte, sgxt, arrival int) (uint64, error) {
	if sgxt < t.sgxtMin || sgxt > t.sgxtMax {
		return 0, ErrRejected
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.nodes) >= t.capacity {
		return 0, ErrCapacity
	}

	id := uint64(len(t.nodes))
	t.nodes = append(t.nodes, &Node{
		ID:          id,
		ArrivalTime: arrival,
		SGXt:        sgxt,
		Remaining:   sgxt,
		PublicKey:   append([]byte(nil), publicKey...),
		Signature:   append([]byte(nil), signature...),
	})
	return id, nil
}

// Get returns a copy of the record for id.
func (t *Table) Get(id uint64) (Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return Node{}, err
	}
	return *n, nil
}

// Decrement bills delta ticks against the node's remaining budget.
// The caller must not bill past zero; hitting zero retires the record.
func (t *Table) Decrement(id uint64, delta int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return err
	}
	if delta < 0 || n.Remaining < delta {
		return fmt.Errorf("registry: node %d has %d remaining, cannot bill %d", id, n.Remaining, delta)
	}
	n.Remaining -= delta
	if n.Remaining == 0 {
		n.Retired = true
	}
	return nil
}

// IncrementLeadership bumps the node's leadership count. The scheduler
// calls this when the node completes its budget and leaves the queue.
func (t *Table) IncrementLeadership(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return err
	}
	n.Leadership++
	return nil
}

// SnapshotActive lists (id, tier, remaining) over records that have
// arrived by the given tick and are not retired.
func (t *Table) SnapshotActive(clock int) []ActiveNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ActiveNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.Retired || n.ArrivalTime > clock {
			continue
		}
		out = append(out, ActiveNode{
			ID:        n.ID,
			Tier:      t.TierOf(n.SGXt),
			Remaining: n.Remaining,
		})
	}
	return out
}

// ArrivedIDs lists ids of non-retired records with arrival <= clock,
// in ascending id order (the admission tie-break).
func (t *Table) ArrivedIDs(clock int) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]uint64, 0, len(t.nodes))
	for _, n := range t.nodes {
		if !n.Retired && n.ArrivalTime <= clock {
			out = append(out, n.ID)
		}
	}
	return out
}

// AnyRemaining reports whether any record, arrived or pending, still
// has budget to execute.
func (t *Table) AnyRemaining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, n := range t.nodes {
		if n.Remaining > 0 {
			return true
		}
	}
	return false
}

// Len is the number of records ever admitted.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// All returns a copy of every record, for reporting surfaces.
func (t *Table) All() []Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Node, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = *n
	}
	return out
}

func (t *Table) lookup(id uint64) (*Node, error) {
	if id >= uint64(len(t.nodes)) {
		return nil, ErrNotFound
	}
	return t.nodes[id], nil
}
