package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bashar404/poet/coordinator/attestation"
)

func main() {
	cfg := LoadConfig()
	log.Printf("Agent starting. Server %s, declared SGXt %d", cfg.ServerAddr, cfg.SGXt)

	signer, err := attestation.NewSigner(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to build signer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// Registration loop with exponential backoff.
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	var client *Client
	var nodeID uint64
	for {
		if ctx.Err() != nil {
			return
		}

		client, err = Dial(cfg.ServerAddr, signer)
		if err == nil {
			nodeID, err = client.Register(cfg.SGXt)
			if err == nil {
				break
			}
			client.Close()
		}

		log.Printf("Registration failed: %v. Retrying in %s...", err, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	defer client.Close()

	log.Printf("Registered as node %d", nodeID)

	// Poll the election until our budget is spent.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			client.Terminate()
			log.Println("Agent shutting down.")
			return

		case <-ticker.C:
			id, slice, ok, err := client.NextLeader()
			if err != nil {
				log.Printf("get_next_leader failed: %v", err)
				continue
			}
			if !ok {
				log.Println("Election idle: every budget is spent")
				client.Terminate()
				return
			}
			if id == nodeID {
				log.Printf("WE are the leader for a %d-tick slice", slice)
			} else {
				log.Printf("Node %d leads for %d ticks", id, slice)
			}

			remaining, leadership, err := client.RemainingTime(nodeID)
			if err != nil {
				log.Printf("remaining_time failed: %v", err)
				continue
			}
			if remaining == 0 {
				log.Printf("Budget spent after %d leaderships, terminating", leadership)
				client.Terminate()
				return
			}
		}
	}
}
