// Package scheduler implements the tiered adaptive round-robin that
// selects the next leader. Nodes are partitioned into tiers by declared
// SGXt; per-tier quanta are recomputed from population statistics on
// every admission, and ready nodes execute slices in arrival order.
package scheduler

import (
	"sync"

	"github.com/bashar404/poet/coordinator/registry"
)

// TickEntry records which node was billed for one logical tick.
type TickEntry struct {
	Tick   int
	NodeID uint64
}

// Scheduler owns the run queue and the logical clock. After insertion
// it is the single writer of a node's remaining and leadership fields.
type Scheduler struct {
	mu    sync.Mutex
	table *registry.Table
	tiers *TierTable

	queue    []uint64
	queued   map[uint64]bool // queue membership; the running node is tracked by running/active
	admitted map[uint64]bool
	running  uint64
	active   bool // a slice is being billed

	clock int
	log   []TickEntry
}

// New builds a scheduler over the given SGX table.
func New(table *registry.Table) *Scheduler {
	return &Scheduler{
		table:    table,
		tiers:    NewTierTable(table.TierCount()),
		queued:   make(map[uint64]bool),
		admitted: make(map[uint64]bool),
	}
}

// Clock returns the current logical tick.
func (s *Scheduler) Clock() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// QueueDepth returns the number of ready nodes.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// TickLog returns a copy of the billed-tick history.
func (s *Scheduler) TickLog() []TickEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TickEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Admit enqueues a node whose arrival time has been reached and
// triggers a quantum recomputation. It is idempotent: a node already
// queued, currently executing, or retired is left alone.
func (s *Scheduler) Admit(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admitLocked(id)
}

func (s *Scheduler) admitLocked(id uint64) {
	n, err := s.table.Get(id)
	if err != nil || n.Retired || n.Remaining == 0 {
		return
	}
	s.admitted[id] = true
	if s.queued[id] || (s.active && s.running == id) {
		return
	}
	s.tiers.Rebuild(s.table.SnapshotActive(s.clock))
	s.queued[id] = true
	s.queue = append(s.queue, id)
}

// admitArrivalsLocked admits every node whose arrival time the clock
// has reached, in ascending id order. Quanta are rebuilt once per
// arriving node; between arrivals they stay fixed.
func (s *Scheduler) admitArrivalsLocked() {
	for _, id := range s.table.ArrivedIDs(s.clock) {
		if !s.admitted[id] {
			s.admitLocked(id)
		}
	}
}

// Step advances by one scheduling decision and returns the node billed
// during it together with the slice length. ok is false when no node,
// arrived or pending, has budget left (IDLE).
//
// One step: dequeue the head, bill min(quantum, remaining) unit ticks
// against it (admitting newcomers after every tick without preempting
// the in-flight slice), then re-queue it or retire it. When the queue
// is empty but budget exists somewhere, the clock advances tick by
// tick until the next arrival.
func (s *Scheduler) Step() (id uint64, slice int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.admitArrivalsLocked()

	for {
		if !s.table.AnyRemaining() {
			return 0, 0, false
		}

		if len(s.queue) == 0 {
			s.clock++
			s.admitArrivalsLocked()
			continue
		}

		head := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, head)

		n, err := s.table.Get(head)
		if err != nil || n.Remaining == 0 {
			continue // defensive: never bill an empty record
		}

		q := s.tiers.Quantum(s.table.TierOf(n.SGXt))
		if q > n.Remaining {
			q = n.Remaining
		}

		s.running = head
		s.active = true
		for i := 0; i < q; i++ {
			s.log = append(s.log, TickEntry{Tick: s.clock, NodeID: head})
			s.clock++
			s.table.Decrement(head, 1)
			s.admitArrivalsLocked()
		}
		s.active = false

		n, _ = s.table.Get(head)
		if n.Remaining > 0 {
			s.queued[head] = true
			s.queue = append(s.queue, head)
		} else {
			s.table.IncrementLeadership(head)
		}
		return head, q, true
	}
}

// Run drives Step until IDLE and returns the number of steps taken.
// The simulator and the server call Step directly so they can report
// every decision.
func (s *Scheduler) Run() int {
	steps := 0
	for {
		if _, _, ok := s.Step(); !ok {
			return steps
		}
		steps++
	}
}
