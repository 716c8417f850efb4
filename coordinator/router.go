package main

import (
	"encoding/json"
	"errors"
	"net"

	"github.com/bashar404/poet/coordinator/observability"
	"github.com/bashar404/poet/coordinator/wire"
)

// Error kinds surfaced to clients.
const (
	kindSyntaxError      = "SYNTAX_ERROR"
	kindEnvelopeInvalid  = "ENVELOPE_INVALID"
	kindMethodError      = "METHOD_ERROR"
	kindRejected         = "REJECTED"
	kindCapacityExceeded = "CAPACITY_EXCEEDED"
	kindRateLimited      = "RATE_LIMITED"
)

// errTerminate tells the worker to close the stream after a handler
// acknowledged a termination request.
var errTerminate = errors.New("terminate connection")

// handlerFunc receives the scheduler context, the request's data value
// and the client stream. Handlers reply themselves and only return an
// error for transport failures (or errTerminate).
type handlerFunc func(c *Coordinator, data *wire.Value, stream net.Conn) error

// methodTable is the static method table. The router rejects anything
// not named here before a handler runs.
var methodTable = map[string]handlerFunc{
	"register":        handleRegister,
	"remaining_time":  handleRemainingTime,
	"get_next_leader": handleGetNextLeader,
	"sgx_table":       handleSGXTable,
	"terminate":       handleTerminate,
}

// handleMessage validates one framed message and dispatches it.
// Protocol-level failures are answered on the stream and the
// connection stays open; only transport errors propagate.
func handleMessage(c *Coordinator, payload []byte, stream net.Conn) error {
	doc, err := wire.Decode(payload)
	if err != nil {
		observability.SyntaxErrorsTotal.Inc()
		return writeError(stream, kindSyntaxError)
	}

	method, data, ok := validateEnvelope(doc)
	if !ok {
		observability.EnvelopeErrorsTotal.Inc()
		return writeError(stream, kindEnvelopeInvalid)
	}

	return methodTable[method](c, data, stream)
}

// validateEnvelope checks the {method, data} shape against the method
// table: a JSON object with at least two members, a method string that
// is a known method, and a data member of any type.
func validateEnvelope(doc *wire.Value) (method string, data *wire.Value, ok bool) {
	if doc == nil || doc.Kind != wire.KindObject || len(doc.Members) < 2 {
		return "", nil, false
	}
	methodVal, found := doc.Field("method")
	if !found {
		return "", nil, false
	}
	method, isString := methodVal.Text()
	if !isString {
		return "", nil, false
	}
	if _, known := methodTable[method]; !known {
		return "", nil, false
	}
	data, found = doc.Field("data")
	if !found {
		return "", nil, false
	}
	return method, data, true
}

func writeReply(stream net.Conn, reply interface{}) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return wire.WriteMessage(stream, payload)
}

func writeError(stream net.Conn, kind string) error {
	return writeReply(stream, map[string]string{
		"status": "error",
		"kind":   kind,
	})
}
