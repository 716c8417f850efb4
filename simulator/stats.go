package main

import (
	"math"

	"github.com/bashar404/poet/coordinator/registry"
	"github.com/bashar404/poet/coordinator/scheduler"
)

// releaseTimes derives, for each node, one past the tick of its last
// billed slice. Nodes that never ran report zero.
func releaseTimes(log []scheduler.TickEntry, nodeCount int) []int {
	release := make([]int, nodeCount)
	for _, e := range log {
		if int(e.NodeID) < nodeCount && e.Tick+1 > release[e.NodeID] {
			release[e.NodeID] = e.Tick + 1
		}
	}
	return release
}

// waitingTimes is release - arrival - sgxt per node. The scheduler never
// bills a node before its arrival, so releases from releaseTimes give a
// wait of at least zero; other inputs are reported as computed,
// negative values included.
func waitingTimes(nodes []registry.Node, release []int) []float64 {
	out := make([]float64, len(nodes))
	for i, n := range nodes {
		out[i] = float64(release[i] - n.ArrivalTime - n.SGXt)
	}
	return out
}

// elapsedTimes is release - arrival per node.
func elapsedTimes(nodes []registry.Node, release []int) []float64 {
	out := make([]float64, len(nodes))
	for i, n := range nodes {
		out[i] = float64(release[i] - n.ArrivalTime)
	}
	return out
}

// meanStd returns the average and the sample standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	if len(xs) < 2 {
		return mean, 0
	}
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	std = math.Sqrt(std / float64(len(xs)-1))
	return mean, std
}
