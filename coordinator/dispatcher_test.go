package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bashar404/poet/coordinator/wire"
)

func startTestServer(t *testing.T, cfg *Config) (*Coordinator, net.Addr, context.CancelFunc) {
	t.Helper()
	co := newTestCoordinator(t, cfg)
	d := NewDispatcher(cfg, co)
	if err := d.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Serve(ctx)

	t.Cleanup(func() {
		cancel()
		d.Drain()
	})
	return co, d.Addr(), cancel
}

func sendRequest(t *testing.T, conn net.Conn, raw string) map[string]interface{} {
	t.Helper()
	if err := wire.WriteMessage(conn, []byte(raw)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	payload, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var reply map[string]interface{}
	if err := json.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("Reply is not JSON: %v", err)
	}
	return reply
}

func TestDispatcherServesRequestsOverTCP(t *testing.T) {
	_, addr, _ := startTestServer(t, testConfig())

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	reply := sendRequest(t, conn, registerRequest([]byte{1}, []byte{1}, 10))
	if reply["status"] != "ok" {
		t.Fatalf("Expected ok, got %v", reply)
	}

	// Malformed JSON gets an error reply and the stream stays usable.
	reply = sendRequest(t, conn, `{"method": "register", "data": {`)
	if reply["kind"] != kindSyntaxError {
		t.Fatalf("Expected SYNTAX_ERROR, got %v", reply)
	}
	reply = sendRequest(t, conn, `{"method":"remaining_time","data":{"id":0}}`)
	if reply["status"] != "ok" {
		t.Errorf("Expected the connection to survive the syntax error, got %v", reply)
	}
}

func TestDispatcherRegistrationUnderLoad(t *testing.T) {
	// One more client than workers: the extra stream waits for a
	// worker instead of being rejected, and every register succeeds.
	cfg := testConfig()
	cfg.MaxThreads = 20
	co, addr, _ := startTestServer(t, cfg)

	const clients = 21
	var wg sync.WaitGroup
	errCh := make(chan error, clients)
	ids := make(chan float64, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr.String())
			if err != nil {
				errCh <- err
				return
			}
			defer conn.Close()

			raw := registerRequest([]byte{byte(i)}, []byte{byte(i)}, 10)
			if err := wire.WriteMessage(conn, []byte(raw)); err != nil {
				errCh <- err
				return
			}
			payload, err := wire.ReadMessage(conn)
			if err != nil {
				errCh <- err
				return
			}
			var reply map[string]interface{}
			if err := json.Unmarshal(payload, &reply); err != nil {
				errCh <- err
				return
			}
			if reply["status"] != "ok" {
				errCh <- fmt.Errorf("register %d: %v", i, reply)
				return
			}
			ids <- reply["id"].(float64)
		}(i)
	}

	wg.Wait()
	close(errCh)
	close(ids)
	for err := range errCh {
		t.Fatalf("Client failed: %v", err)
	}

	seen := make(map[float64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("Duplicate id %v", id)
		}
		seen[id] = true
	}
	if len(seen) != clients {
		t.Errorf("Expected %d distinct ids, got %d", clients, len(seen))
	}
	if co.table.Len() != clients {
		t.Errorf("Expected %d table records, got %d", clients, co.table.Len())
	}
}

func TestDispatcherReleasesWorkerOnClose(t *testing.T) {
	// A single worker serving clients strictly one after another: the
	// handle must return to the pool when a stream closes.
	cfg := testConfig()
	cfg.MaxThreads = 1
	_, addr, _ := startTestServer(t, cfg)

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", addr.String())
		if err != nil {
			t.Fatalf("Dial %d failed: %v", i, err)
		}
		reply := sendRequest(t, conn, registerRequest([]byte{byte(i)}, []byte{1}, 10))
		if reply["status"] != "ok" {
			t.Fatalf("Register %d failed: %v", i, reply)
		}
		conn.Close()
	}
}

func TestDispatcherTerminateClosesStream(t *testing.T) {
	_, addr, _ := startTestServer(t, testConfig())

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	reply := sendRequest(t, conn, `{"method":"terminate","data":{}}`)
	if reply["status"] != "ok" {
		t.Fatalf("Expected ok acknowledgement, got %v", reply)
	}

	// The server side closes after the acknowledgement.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := wire.ReadMessage(conn); err == nil {
		t.Error("Expected the stream to be closed by the worker")
	}
}

func TestDispatcherShutdownClosesListener(t *testing.T) {
	cfg := testConfig()
	_, addr, cancel := startTestServer(t, cfg)

	cancel()
	// Give the accept loop a moment to observe the closed listener.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr.String())
		if err != nil {
			return // listener gone, as expected
		}
		conn.Close()
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Expected the listener to close after cancellation")
}
