// The simulator runs the tiered election to completion over a randomly
// generated population and reports per-node waiting and elapsed times.
// Interactive prompts are skipped when any argument is given; the same
// values are then read from standard input.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/bashar404/poet/coordinator/registry"
	"github.com/bashar404/poet/coordinator/scheduler"
)

type inputs struct {
	seed           int64
	nodeCount      int
	sgxMax         int
	totalTiers     int
	arrivalTimeMax int
}

func readInputs(prompt bool) (*inputs, error) {
	in := &inputs{}

	if prompt {
		fmt.Print("Seed for pseudo-random number generator (-1 for random): ")
	}
	if _, err := fmt.Scan(&in.seed); err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	if in.seed < 0 {
		in.seed = time.Now().UnixNano()
	}

	if prompt {
		fmt.Print("Number of nodes in the network: ")
	}
	if _, err := fmt.Scan(&in.nodeCount); err != nil {
		return nil, fmt.Errorf("reading node count: %w", err)
	}
	if prompt {
		fmt.Print("SGXtime upper bound: ")
	}
	if _, err := fmt.Scan(&in.sgxMax); err != nil {
		return nil, fmt.Errorf("reading sgx upper bound: %w", err)
	}
	if prompt {
		fmt.Print("Total number of tiers: ")
	}
	if _, err := fmt.Scan(&in.totalTiers); err != nil {
		return nil, fmt.Errorf("reading total tiers: %w", err)
	}
	if prompt {
		fmt.Print("Arrival maximum time: ")
	}
	if _, err := fmt.Scan(&in.arrivalTimeMax); err != nil {
		return nil, fmt.Errorf("reading arrival maximum: %w", err)
	}

	if in.nodeCount < 1 || in.sgxMax < 1 || in.totalTiers < 1 || in.arrivalTimeMax < 0 {
		return nil, fmt.Errorf("inputs out of range: %+v", *in)
	}
	return in, nil
}

func printSGXTable(nodes []registry.Node) {
	fmt.Printf("Pass     :\tArrivaltime\tSGXtime\t#Leader\ttimeLeft\n")
	for _, n := range nodes {
		fmt.Printf("[Node%03d]:\t%5d\t%5d\t%5d\t%5d\n",
			n.ID, n.ArrivalTime, n.SGXt, n.Leadership, n.Remaining)
	}
}

func main() {
	in, err := readInputs(len(os.Args) <= 1)
	if err != nil {
		log.Printf("initialization failed: %v", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(in.seed))

	table, err := registry.NewTable(in.nodeCount, 1, in.sgxMax, in.totalTiers)
	if err != nil {
		log.Printf("initialization failed: %v", err)
		os.Exit(1)
	}
	for i := 0; i < in.nodeCount; i++ {
		sgxt := 1 + rng.Intn(in.sgxMax)
		arrival := 0
		if in.arrivalTimeMax > 0 {
			arrival = rng.Intn(in.arrivalTimeMax + 1)
		}
		if _, err := table.Insert(nil, nil, sgxt, arrival); err != nil {
			log.Printf("initialization failed: %v", err)
			os.Exit(1)
		}
	}

	sched := scheduler.New(table)
	printSGXTable(table.All())

	for {
		id, slice, ok := sched.Step()
		if !ok {
			break
		}
		fmt.Printf("CURRENT time: %d\n", sched.Clock())
		fmt.Printf("Node%d led for %d ticks\n", id, slice)
		printSGXTable(table.All())
	}

	nodes := table.All()
	tickLog := sched.TickLog()
	release := releaseTimes(tickLog, in.nodeCount)

	fmt.Println("Overall Queue:")
	fmt.Println("-------------")
	for _, e := range tickLog {
		fmt.Printf("[Node%d]", e.NodeID)
	}
	fmt.Println()

	waits := waitingTimes(nodes, release)
	fmt.Println("Waiting time:")
	fmt.Println("------------")
	for i, w := range waits {
		fmt.Printf("Waiting time for Node%d: %f\n", i, w)
	}
	avgWait, stdWait := meanStd(waits)
	fmt.Printf("Avg Waiting time: %f\n", avgWait)
	fmt.Printf("Standard Deviation for (Waiting): %f\n", stdWait)

	elapsed := elapsedTimes(nodes, release)
	fmt.Println("Elapsed time:")
	fmt.Println("------------")
	for i, e := range elapsed {
		fmt.Printf("Elapsed time for Node%d:\t%d\n", i, int(e))
	}
	avgElapsed, stdElapsed := meanStd(elapsed)
	fmt.Printf("Avg Elapsed time: %f\n", avgElapsed)
	fmt.Printf("Standard Deviation for Elapsed time: %f\n", stdElapsed)
}
