package main

import (
	"encoding/hex"
	"errors"
	"log"
	"net"

	"github.com/bashar404/poet/coordinator/observability"
	"github.com/bashar404/poet/coordinator/registry"
	"github.com/bashar404/poet/coordinator/wire"
)

// handleRegister admits a node: data carries a hex public key, a hex
// signature over the registration payload, and the declared SGXt.
func handleRegister(c *Coordinator, data *wire.Value, stream net.Conn) error {
	fail := func(kind string) error {
		observability.RequestsTotal.WithLabelValues("register", "error").Inc()
		return writeError(stream, kind)
	}

	pkHex, ok := data.Field("public_key")
	if !ok {
		return fail(kindMethodError)
	}
	sigHex, ok := data.Field("signature")
	if !ok {
		return fail(kindMethodError)
	}
	sgxtVal, ok := data.Field("sgxt")
	if !ok {
		return fail(kindMethodError)
	}

	pkText, okPK := pkHex.Text()
	sigText, okSig := sigHex.Text()
	sgxt, okSGXT := sgxtVal.Int64()
	if !okPK || !okSig || !okSGXT || sgxt <= 0 {
		return fail(kindMethodError)
	}

	publicKey, err := hex.DecodeString(pkText)
	if err != nil {
		return fail(kindMethodError)
	}
	signature, err := hex.DecodeString(sigText)
	if err != nil {
		return fail(kindMethodError)
	}

	if !c.registerLimiter.Allow(peerKey(stream)) {
		observability.RegistrationsTotal.WithLabelValues("rate_limited").Inc()
		return fail(kindRateLimited)
	}

	id, err := c.Register(publicKey, signature, int(sgxt))
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrCapacity):
			return fail(kindCapacityExceeded)
		case errors.Is(err, registry.ErrRejected):
			return fail(kindRejected)
		default:
			log.Printf("[REGISTER] rejected claim from %s: %v", peerKey(stream), err)
			return fail(kindRejected)
		}
	}

	observability.RequestsTotal.WithLabelValues("register", "ok").Inc()
	return writeReply(stream, map[string]interface{}{
		"status": "ok",
		"id":     id,
	})
}

// handleRemainingTime reports a node's budget and leadership count.
func handleRemainingTime(c *Coordinator, data *wire.Value, stream net.Conn) error {
	idVal, ok := data.Field("id")
	if !ok {
		observability.RequestsTotal.WithLabelValues("remaining_time", "error").Inc()
		return writeError(stream, kindMethodError)
	}
	id, okID := idVal.Int64()
	if !okID || id < 0 {
		observability.RequestsTotal.WithLabelValues("remaining_time", "error").Inc()
		return writeError(stream, kindMethodError)
	}

	n, err := c.table.Get(uint64(id))
	if err != nil {
		observability.RequestsTotal.WithLabelValues("remaining_time", "error").Inc()
		return writeError(stream, kindMethodError)
	}

	observability.RequestsTotal.WithLabelValues("remaining_time", "ok").Inc()
	return writeReply(stream, map[string]interface{}{
		"status":     "ok",
		"id":         n.ID,
		"sgxt":       n.SGXt,
		"remaining":  n.Remaining,
		"leadership": n.Leadership,
	})
}

// handleGetNextLeader advances the election by one scheduling decision.
func handleGetNextLeader(c *Coordinator, _ *wire.Value, stream net.Conn) error {
	id, slice, ok := c.NextLeader()
	if !ok {
		observability.RequestsTotal.WithLabelValues("get_next_leader", "idle").Inc()
		return writeReply(stream, map[string]string{"status": "idle"})
	}

	observability.RequestsTotal.WithLabelValues("get_next_leader", "ok").Inc()
	return writeReply(stream, map[string]interface{}{
		"status": "ok",
		"id":     id,
		"slice":  slice,
	})
}

// handleSGXTable dumps the active set: arrived, non-retired records.
func handleSGXTable(c *Coordinator, _ *wire.Value, stream net.Conn) error {
	snapshot := c.table.SnapshotActive(c.sched.Clock())
	observability.RequestsTotal.WithLabelValues("sgx_table", "ok").Inc()
	return writeReply(stream, map[string]interface{}{
		"status": "ok",
		"nodes":  snapshot,
	})
}

// handleTerminate acknowledges and lets the worker close the stream.
func handleTerminate(_ *Coordinator, _ *wire.Value, stream net.Conn) error {
	observability.RequestsTotal.WithLabelValues("terminate", "ok").Inc()
	if err := writeReply(stream, map[string]string{"status": "ok"}); err != nil {
		return err
	}
	return errTerminate
}

// peerKey identifies a client for rate limiting; the host part keeps
// reconnecting peers in one bucket.
func peerKey(stream net.Conn) string {
	addr := stream.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
