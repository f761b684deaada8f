package worker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildArgsIsolatePerWorkerState(t *testing.T) {
	opts := Options{
		Count:      3,
		ProfileDir: filepath.Join("state", "profile"),
		StateDir:   "state",
		Args:       []string{"--site=kimi", "--headless=true"},
	}

	seenProfiles := make(map[string]struct{})
	seenStates := make(map[string]struct{})
	for index := 0; index < opts.Count; index++ {
		args := childArgs(index, opts)

		// Forwarded flags come through untouched.
		assert.Equal(t, "--site=kimi", args[0])
		assert.Equal(t, "--headless=true", args[1])

		flags := argMap(t, args[2:])
		assert.Equal(t, "3", flags["--shard-count"])
		assert.NotEmpty(t, flags["--shard-index"])

		seenProfiles[flags["--profile-dir"]] = struct{}{}
		seenStates[flags["--state-dir"]] = struct{}{}

		// Session blobs live under the worker's private directory, never
		// the shared base.
		assert.NotEqual(t, opts.StateDir, flags["--state-dir"])
		assert.True(t, strings.HasPrefix(flags["--state-dir"], opts.StateDir))
	}

	assert.Len(t, seenProfiles, opts.Count, "profile dirs must be disjoint")
	assert.Len(t, seenStates, opts.Count, "state dirs must be disjoint")
}

func TestChildArgsSingleWorker(t *testing.T) {
	args := childArgs(0, Options{Count: 1, ProfileDir: "p", StateDir: "s"})
	flags := argMap(t, args)
	assert.Equal(t, "0", flags["--shard-index"])
	assert.Equal(t, "1", flags["--shard-count"])
}

func TestSpawnRejectsNonPositiveCount(t *testing.T) {
	err := Spawn(context.Background(), Options{Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker count")

	err = Spawn(context.Background(), Options{Count: -3})
	require.Error(t, err)
}

func argMap(t *testing.T, args []string) map[string]string {
	t.Helper()
	require.Equal(t, 0, len(args)%2, "flag args must be name/value pairs: %v", args)
	m := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		m[args[i]] = args[i+1]
	}
	return m
}
