package main

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/bashar404/poet/coordinator/observability"
	"github.com/bashar404/poet/coordinator/wire"
)

// worker is one pre-allocated handle of the bounded pool. A worker is
// either sitting in the idle FIFO or bound to exactly one stream.
type worker struct {
	id int
}

// Dispatcher owns the listening endpoint and the idle-worker FIFO.
// The accept loop blocks on the FIFO when every worker is in flight,
// so waiting peers queue in the kernel backlog instead of being
// rejected; there is no busy-waiting anywhere.
type Dispatcher struct {
	cfg  *Config
	co   *Coordinator
	idle chan *worker
	wg   sync.WaitGroup

	mu sync.Mutex
	ln net.Listener
}

// NewDispatcher pre-allocates cfg.MaxThreads workers, all idle.
func NewDispatcher(cfg *Config, co *Coordinator) *Dispatcher {
	d := &Dispatcher{
		cfg:  cfg,
		co:   co,
		idle: make(chan *worker, cfg.MaxThreads),
	}
	for i := 0; i < cfg.MaxThreads; i++ {
		d.idle <- &worker{id: i}
	}
	return d
}

// Listen binds the wire endpoint. Failure here is fatal for the
// process (FATAL_INIT).
func (d *Dispatcher) Listen() error {
	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.ln = ln
	d.mu.Unlock()
	return nil
}

// Serve runs the accept loop until the context is cancelled: accept a
// stream, check a worker out of the idle FIFO, bind the stream to it.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.mu.Lock()
	ln := d.ln
	d.mu.Unlock()
	if ln == nil {
		return errors.New("dispatcher: Serve called before Listen")
	}

	// Closing the listener is what unblocks Accept on shutdown.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("[DISPATCHER] listening on %s with %d workers", ln.Addr(), d.cfg.MaxThreads)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil // orderly shutdown
			}
			log.Printf("[DISPATCHER] accept error: %v", err)
			continue
		}

		var w *worker
		select {
		case w = <-d.idle:
		case <-ctx.Done():
			conn.Close()
			return nil
		}

		d.updateSaturation()
		d.wg.Add(1)
		go d.serveStream(ctx, w, conn)
	}
}

// serveStream drives one stream through read -> route -> reply until
// it closes or fails, then releases the stream and returns the worker
// handle to the idle FIFO.
func (d *Dispatcher) serveStream(ctx context.Context, w *worker, conn net.Conn) {
	observability.ConnectedStreams.Inc()
	defer func() {
		conn.Close()
		observability.ConnectedStreams.Dec()
		d.idle <- w
		d.updateSaturation()
		d.wg.Done()
	}()

	peer := conn.RemoteAddr()
	log.Printf("[WORKER %02d] bound to %s", w.id, peer)

	for {
		if ctx.Err() != nil {
			return
		}

		if d.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
		}

		payload, err := wire.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, wire.ErrClosed) {
				log.Printf("[WORKER %02d] %s closed the connection", w.id, peer)
			} else {
				log.Printf("[WORKER %02d] transport error from %s: %v", w.id, peer, err)
			}
			return
		}

		if err := handleMessage(d.co, payload, conn); err != nil {
			if errors.Is(err, errTerminate) {
				log.Printf("[WORKER %02d] %s requested termination", w.id, peer)
			} else {
				log.Printf("[WORKER %02d] reply to %s failed: %v", w.id, peer, err)
			}
			return
		}
	}
}

// Drain waits for every in-flight worker to finish.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

func (d *Dispatcher) updateSaturation() {
	inFlight := d.cfg.MaxThreads - len(d.idle)
	observability.WorkerSaturation.Set(float64(inFlight) / float64(d.cfg.MaxThreads))
}

// Addr returns the bound listener address, for tests.
func (d *Dispatcher) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ln == nil {
		return nil
	}
	return d.ln.Addr()
}
