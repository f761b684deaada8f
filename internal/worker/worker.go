// Package worker fans a harvest run out across child processes. Each child
// is this same binary re-invoked with a fixed shard assignment, its own
// browser profile directory, and its own session state directory, so workers
// never share browser state, session blobs, or output files.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chatharvest/internal/logging"
)

// Options configures a fan-out run.
type Options struct {
	Count      int      // number of workers; one shard each
	ProfileDir string   // base profile dir; each worker gets a subdirectory
	StateDir   string   // base state dir; each worker gets a subdirectory
	Args       []string // flags forwarded verbatim to every child
}

// Spawn launches Count children and waits for all of them. Children inherit
// stdout/stderr. The returned error is the first child failure; remaining
// children are cancelled through the context.
func Spawn(ctx context.Context, opts Options) error {
	if opts.Count < 1 {
		return fmt.Errorf("worker count must be positive, got %d", opts.Count)
	}

	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	runID := uuid.NewString()[:8]
	logging.Worker("spawning %d workers (run %s)", opts.Count, runID)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Count; i++ {
		index := i
		g.Go(func() error {
			cmd := exec.CommandContext(ctx, bin, childArgs(index, opts)...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr

			logging.Worker("worker %d/%d starting (run %s)", index, opts.Count, runID)
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("worker %d: %w", index, err)
			}
			logging.Worker("worker %d/%d finished (run %s)", index, opts.Count, runID)
			return nil
		})
	}
	return g.Wait()
}

// childArgs builds one worker's argument vector: the forwarded flags plus
// its shard assignment and worker-private profile and state directories.
func childArgs(index int, opts Options) []string {
	sub := fmt.Sprintf("worker%d", index)
	args := append([]string{}, opts.Args...)
	return append(args,
		"--shard-index", fmt.Sprint(index),
		"--shard-count", fmt.Sprint(opts.Count),
		"--profile-dir", filepath.Join(opts.ProfileDir, sub),
		"--state-dir", filepath.Join(opts.StateDir, sub),
	)
}
