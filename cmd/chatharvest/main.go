// chatharvest drives a browser through consumer chat UIs, submits prompts
// from input files, waits for each reply to finish, and appends structured
// conversation records to append-only NDJSON ledgers. Runs are resumable and
// can be partitioned across parallel worker processes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"chatharvest/internal/browser"
	"chatharvest/internal/config"
	"chatharvest/internal/driver"
	"chatharvest/internal/ledger"
	"chatharvest/internal/logging"
	"chatharvest/internal/session"
	"chatharvest/internal/shard"
	"chatharvest/internal/task"
	"chatharvest/internal/types"
	"chatharvest/internal/worker"
)

var (
	flagConfig     string
	flagSite       string
	flagInputDir   string
	flagOutputDir  string
	flagProfileDir string
	flagStateDir   string
	flagHeadless   bool

	flagShardIndex   int
	flagShardCount   int
	flagSpawnWorkers int
)

func main() {
	root := &cobra.Command{
		Use:   "chatharvest",
		Short: "Harvest prompt/response conversations from browser chat UIs",
		Long: `chatharvest submits prompts from *_input_prompts.txt files to a chat site
through an automated browser, detects when each streamed reply has finished,
and appends one JSON record per exchange to an append-only NDJSON ledger.

Completed prompts are skipped on re-run, so an interrupted harvest resumes
where it stopped. The workload can be partitioned with --shard-index and
--shard-count, or fanned out across local processes with --spawn-workers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVar(&flagConfig, "config", "", "YAML config file (defaults used when absent)")
	root.Flags().StringVar(&flagSite, "site", "", "site profile to harvest (deepseek, kimi, doubao)")
	root.Flags().StringVar(&flagInputDir, "input-dir", "", "directory holding *_input_prompts.txt files")
	root.Flags().StringVar(&flagOutputDir, "output-dir", "", "directory for ledgers, transcripts, and logs")
	root.Flags().StringVar(&flagProfileDir, "profile-dir", "", "browser user-data directory")
	root.Flags().StringVar(&flagStateDir, "state-dir", "", "directory for session cookie/storage blobs")
	root.Flags().BoolVar(&flagHeadless, "headless", false, "run the browser headless")

	root.Flags().IntVar(&flagShardIndex, "shard-index", 0, "this worker's shard index")
	root.Flags().IntVar(&flagShardCount, "shard-count", 1, "total number of shards")
	root.Flags().IntVar(&flagSpawnWorkers, "spawn-workers", 0, "fan out across N local worker processes")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatharvest: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if err := logging.Initialize(cfg.Paths.OutputDir, logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return err
	}
	defer logging.CloseAll()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := cfg.Profile()
	if err != nil {
		return err
	}

	// Shard parameters are validated before any browser work so a typo
	// fails in milliseconds, not after a login.
	assignment := types.ShardAssignment{Index: flagShardIndex, Count: flagShardCount}
	if _, err := shard.Partition(nil, assignment.Index, assignment.Count); err != nil {
		return err
	}

	if flagSpawnWorkers > 0 {
		return spawnWorkers(ctx, cmd, cfg)
	}

	return harvest(ctx, cfg, profile, assignment)
}

// applyFlags overlays explicitly-set CLI flags on the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if flagSite != "" {
		cfg.Site = flagSite
	}
	if flagInputDir != "" {
		cfg.Paths.InputDir = flagInputDir
	}
	if flagOutputDir != "" {
		cfg.Paths.OutputDir = flagOutputDir
	}
	if flagProfileDir != "" {
		cfg.Paths.ProfileDir = flagProfileDir
	}
	if flagStateDir != "" {
		cfg.Paths.StateDir = flagStateDir
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
}

// spawnWorkers re-invokes this binary once per shard and waits for all of
// them. Sharding flags and the per-worker directories are owned by the
// parent; everything else forwards.
func spawnWorkers(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if flagShardCount > 1 {
		return fmt.Errorf("--spawn-workers and --shard-count are mutually exclusive")
	}

	var forward []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "spawn-workers", "shard-index", "shard-count", "profile-dir", "state-dir":
			return
		}
		forward = append(forward, "--"+f.Name+"="+f.Value.String())
	})

	return worker.Spawn(ctx, worker.Options{
		Count:      flagSpawnWorkers,
		ProfileDir: cfg.Paths.ProfileDir,
		StateDir:   cfg.Paths.StateDir,
		Args:       forward,
	})
}

// harvest runs this process's share of every discovered task.
func harvest(ctx context.Context, cfg *config.Config, profile config.SiteProfile, assignment types.ShardAssignment) error {
	tasks, err := task.Discover(cfg.Paths.InputDir)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no *_input_prompts.txt files in %s", cfg.Paths.InputDir)
	}
	logging.Boot("site=%s tasks=%d shard=%d/%d", cfg.Site, len(tasks), assignment.Index, assignment.Count)

	engine := browser.NewEngine(cfg.Browser, cfg.Paths.ProfileDir)
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Close()

	sess := session.NewManager(engine, profile, cfg.Timing, cfg.Paths.StateDir)
	if err := sess.Acquire(ctx); err != nil {
		return err
	}

	var totalOK, totalFailed int
	for _, t := range tasks {
		ok, failed, err := harvestTask(ctx, cfg, profile, engine, t, assignment)
		if err != nil {
			return err
		}
		totalOK += ok
		totalFailed += failed
	}

	if err := sess.Persist(ctx); err != nil {
		logging.Get(logging.CategorySession).Warn("final session persist failed: %v", err)
	}

	logging.Boot("run complete: %d ok, %d failed", totalOK, totalFailed)
	if totalFailed > 0 {
		fmt.Fprintf(os.Stderr, "chatharvest: %d prompt(s) failed; re-run to retry\n", totalFailed)
	}
	return nil
}

// harvestTask processes one input file's shard slice against its ledger.
func harvestTask(ctx context.Context, cfg *config.Config, profile config.SiteProfile, surface browser.Surface, t types.PromptTask, assignment types.ShardAssignment) (int, int, error) {
	subset, err := shard.Partition(t.Prompts, assignment.Index, assignment.Count)
	if err != nil {
		return 0, 0, err
	}

	led, err := ledger.Open(cfg.Paths.OutputDir, profile.Name, t.Name, assignment.Qualifier())
	if err != nil {
		return 0, 0, err
	}
	defer led.Close()

	pending := ledger.Filter(subset, led.Completed())
	logging.Ledger("task %s: %d prompts, %d in shard, %d pending",
		t.Name, len(t.Prompts), len(subset), len(pending))
	if len(pending) == 0 {
		return 0, 0, nil
	}

	d := driver.New(surface, profile, cfg.Timing, led)
	return d.Run(ctx, pending)
}
