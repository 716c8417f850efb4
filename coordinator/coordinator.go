package main

import (
	"context"
	"log"

	"github.com/bashar404/poet/coordinator/attestation"
	"github.com/bashar404/poet/coordinator/history"
	"github.com/bashar404/poet/coordinator/observability"
	"github.com/bashar404/poet/coordinator/registry"
	"github.com/bashar404/poet/coordinator/scheduler"
	"github.com/bashar404/poet/coordinator/streaming"
)

// Coordinator is the scheduler context handed to every handler. It is
// the only component that mutates the SGX table and the run queue;
// handlers go through it rather than touching shared state.
type Coordinator struct {
	cfg      *Config
	table    *registry.Table
	sched    *scheduler.Scheduler
	verifier *attestation.Verifier

	registerLimiter *scheduler.TokenBucketLimiter

	publisher streaming.Publisher
	history   history.Recorder
	hub       *EventHub
}

// NewCoordinator wires the scheduler core to its collaborators.
func NewCoordinator(cfg *Config, table *registry.Table, publisher streaming.Publisher, recorder history.Recorder, hub *EventHub) *Coordinator {
	return &Coordinator{
		cfg:             cfg,
		table:           table,
		sched:           scheduler.New(table),
		verifier:        attestation.NewVerifier(cfg.AttestationRequired),
		registerLimiter: scheduler.NewTokenBucketLimiter(cfg.RegisterRate, cfg.RegisterBurst),
		publisher:       publisher,
		history:         recorder,
		hub:             hub,
	}
}

// Register verifies a registration claim, admits the node at the
// current logical tick, and returns its identifier.
func (c *Coordinator) Register(publicKey, signature []byte, sgxt int) (uint64, error) {
	if err := c.verifier.VerifyRegistration(publicKey, signature, sgxt); err != nil {
		observability.RegistrationsTotal.WithLabelValues("attestation_failed").Inc()
		return 0, err
	}

	arrival := c.sched.Clock()
	id, err := c.table.Insert(publicKey, signature, sgxt, arrival)
	if err != nil {
		switch err {
		case registry.ErrCapacity:
			observability.RegistrationsTotal.WithLabelValues("capacity_exceeded").Inc()
		default:
			observability.RegistrationsTotal.WithLabelValues("rejected").Inc()
		}
		return 0, err
	}
	c.sched.Admit(id)

	observability.RegistrationsTotal.WithLabelValues("ok").Inc()
	observability.RegisteredNodes.Set(float64(c.table.Len()))
	observability.RunQueueDepth.Set(float64(c.sched.QueueDepth()))

	c.recordAndPublish(streaming.TopicRegistered, history.Event{
		Stage:  history.StageRegistered,
		NodeID: id,
		Tick:   arrival,
		SGXt:   sgxt,
	})
	return id, nil
}

// NextLeader advances the scheduler by one decision.
func (c *Coordinator) NextLeader() (id uint64, slice int, ok bool) {
	id, slice, ok = c.sched.Step()
	if !ok {
		observability.SchedulerSteps.WithLabelValues("idle").Inc()
		return 0, 0, false
	}

	observability.SchedulerSteps.WithLabelValues("leader").Inc()
	observability.SliceTicks.Add(float64(slice))
	observability.SliceLength.Observe(float64(slice))
	observability.RunQueueDepth.Set(float64(c.sched.QueueDepth()))

	tick := c.sched.Clock() - slice
	c.recordAndPublish(streaming.TopicLeader, history.Event{
		Stage:  history.StageLeader,
		NodeID: id,
		Tick:   tick,
		Slice:  slice,
	})

	if n, err := c.table.Get(id); err == nil && n.Retired {
		c.recordAndPublish(streaming.TopicRetired, history.Event{
			Stage:  history.StageRetired,
			NodeID: id,
			Tick:   c.sched.Clock(),
			SGXt:   n.SGXt,
		})
	}
	return id, slice, true
}

// recordAndPublish fans an event to the history recorder, the stream
// publisher and the WebSocket hub, all best-effort.
func (c *Coordinator) recordAndPublish(topic string, e history.Event) {
	ctx := context.Background()
	if c.history != nil {
		if err := c.history.Record(ctx, e); err != nil {
			log.Printf("[HISTORY] record %s failed: %v", e.Stage, err)
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, topic, e); err != nil {
			observability.EventPublishFailures.WithLabelValues(topic).Inc()
			log.Printf("[STREAMING] publish %s failed: %v", topic, err)
		}
	}
	if c.hub != nil {
		c.hub.Broadcast(topic, e)
	}
}
