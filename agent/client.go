package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/bashar404/poet/coordinator/attestation"
	"github.com/bashar404/poet/coordinator/wire"
)

// Client speaks the coordinator's wire protocol over one TCP stream.
type Client struct {
	conn   net.Conn
	signer *attestation.Signer
}

type request struct {
	Method string      `json:"method"`
	Data   interface{} `json:"data"`
}

type reply struct {
	Status     string `json:"status"`
	Kind       string `json:"kind"`
	ID         uint64 `json:"id"`
	Slice      int    `json:"slice"`
	SGXt       int    `json:"sgxt"`
	Remaining  int    `json:"remaining"`
	Leadership int    `json:"leadership"`
}

// Dial connects to the coordinator.
func Dial(addr string, signer *attestation.Signer) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, signer: signer}, nil
}

func (c *Client) call(method string, data interface{}) (*reply, error) {
	payload, err := json.Marshal(request{Method: method, Data: data})
	if err != nil {
		return nil, err
	}
	if err := wire.WriteMessage(c.conn, payload); err != nil {
		return nil, err
	}
	raw, err := wire.ReadMessage(c.conn)
	if err != nil {
		return nil, err
	}
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	if r.Status == "error" {
		return &r, fmt.Errorf("server error: %s", r.Kind)
	}
	return &r, nil
}

// Register signs and submits the registration claim and returns the
// allocated node id.
func (c *Client) Register(sgxt int) (uint64, error) {
	sig, err := c.signer.SignRegistration(sgxt)
	if err != nil {
		return 0, err
	}
	r, err := c.call("register", map[string]interface{}{
		"public_key": hex.EncodeToString(c.signer.PublicKey()),
		"signature":  hex.EncodeToString(sig),
		"sgxt":       sgxt,
	})
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

// RemainingTime fetches the node's budget and leadership count.
func (c *Client) RemainingTime(id uint64) (remaining, leadership int, err error) {
	r, err := c.call("remaining_time", map[string]interface{}{"id": id})
	if err != nil {
		return 0, 0, err
	}
	return r.Remaining, r.Leadership, nil
}

// NextLeader asks the coordinator for the next scheduling decision.
// ok is false when the coordinator reports idle.
func (c *Client) NextLeader() (id uint64, slice int, ok bool, err error) {
	r, err := c.call("get_next_leader", map[string]interface{}{})
	if err != nil {
		return 0, 0, false, err
	}
	if r.Status == "idle" {
		return 0, 0, false, nil
	}
	return r.ID, r.Slice, true, nil
}

// Terminate tells the coordinator this stream is done and closes it.
func (c *Client) Terminate() error {
	_, err := c.call("terminate", map[string]interface{}{})
	c.conn.Close()
	return err
}

// Close releases the stream without the protocol goodbye.
func (c *Client) Close() error {
	return c.conn.Close()
}
