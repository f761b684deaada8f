// Package shard deterministically partitions a prompt list across parallel
// workers. Assignment is round-robin: position i belongs to shard
// i mod shardCount, which keeps every shard balanced even when input files
// are sorted by topic. The union of all shards reconstructs the original
// list exactly once each, so workers need no coordination beyond their
// assignment.
package shard

import (
	"errors"
	"fmt"
)

// ErrInvalidShard marks invalid shard parameters. Checked before any
// browser work begins; fatal to the run.
var ErrInvalidShard = errors.New("invalid shard parameters")

// Partition returns the subset of prompts owned by shard index out of
// count, preserving relative order.
func Partition(prompts []string, index, count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: shard count %d < 1", ErrInvalidShard, count)
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf("%w: shard index %d not in [0,%d)", ErrInvalidShard, index, count)
	}

	subset := make([]string, 0, (len(prompts)+count-1)/count)
	for i, p := range prompts {
		if i%count == index {
			subset = append(subset, p)
		}
	}
	return subset, nil
}
