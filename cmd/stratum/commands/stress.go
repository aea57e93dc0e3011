package commands

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stratumdb/stratum/internal/logger"
	"github.com/stratumdb/stratum/pkg/concurrency"
	"github.com/stratumdb/stratum/pkg/concurrency/tracker"
	"github.com/stratumdb/stratum/pkg/config"
)

var (
	stressWorkers    int
	stressDuration   time.Duration
	stressDatabases  int
	stressWriteRatio float64
	stressBatchEvery time.Duration
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run a concurrent lock workload against an in-process lock table",
	Long: `Run a mixed read/write lock workload to exercise the lock manager.

Each worker owns a lock context and loops taking database and collection
guards in intent modes, occasionally relocking, temporarily yielding its
locks, and probing the systemwide try-locks. A coordinator periodically
raises the batch barrier so the exclusive/shared interaction is exercised
too. At the end a per-mode summary table is printed.

Examples:
  # Default workload
  stratum stress

  # Heavier write mix across more databases
  stratum stress --workers 32 --databases 8 --write-ratio 0.5 --duration 30s`,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().IntVar(&stressWorkers, "workers", 8, "Number of concurrent lock contexts")
	stressCmd.Flags().DurationVar(&stressDuration, "duration", 10*time.Second, "How long to run the workload")
	stressCmd.Flags().IntVar(&stressDatabases, "databases", 4, "Number of databases in the workload")
	stressCmd.Flags().Float64Var(&stressWriteRatio, "write-ratio", 0.25, "Fraction of operations that take write locks")
	stressCmd.Flags().DurationVar(&stressBatchEvery, "batch-every", 2*time.Second, "Interval between batch barrier cycles (0 disables)")
}

// stressStats counts outcomes per mode across all workers. operations
// counts completed guard operations (unbounded guards cannot fail);
// timedOut counts bounded try-lock attempts that ran out of time.
type stressStats struct {
	operations [5]atomic.Uint64 // indexed by LockMode
	timedOut   [5]atomic.Uint64
	yields     atomic.Uint64
	relocks    atomic.Uint64
	batches    atomic.Uint64
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	concurrency.SetCollectionLockingEnabled(cfg.Lock.CollectionLocking)
	concurrency.SetDocumentLockingEnabled(cfg.Lock.DocumentLocking)

	var registry prometheus.Registerer
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
	}
	table := tracker.NewTable(tracker.NewMetrics(registry))
	barrier := concurrency.NewBatchBarrier()

	logger.Info("starting lock stress workload",
		"workers", stressWorkers,
		"databases", stressDatabases,
		"write_ratio", stressWriteRatio,
		"duration", stressDuration.String())

	ctx, cancel := context.WithTimeout(cmd.Context(), stressDuration)
	defer cancel()

	stats := &stressStats{}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < stressWorkers; i++ {
		seed := int64(i + 1)
		g.Go(func() error {
			return stressWorker(ctx, table, barrier, cfg.Lock.DefaultTimeout, seed, stats)
		})
	}
	if stressBatchEvery > 0 {
		g.Go(func() error {
			return batchCoordinator(ctx, barrier, stats)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("stress workload failed: %w", err)
	}

	printStressSummary(stats, time.Since(start))
	return nil
}

// stressWorker loops over the guard surface until the context expires. Each
// worker owns its LockContext; only the table behind it is shared.
func stressWorker(ctx context.Context, table *tracker.Table, barrier *concurrency.BatchBarrier, tryTimeout time.Duration, seed int64, stats *stressStats) error {
	rng := rand.New(rand.NewSource(seed))
	lc := tracker.NewLockContext(table, barrier)
	lc.MarkBatchParticipant()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		db := fmt.Sprintf("db%d", rng.Intn(stressDatabases))
		ns := fmt.Sprintf("%s.coll%d", db, rng.Intn(4))

		switch {
		case rng.Float64() < stressWriteRatio:
			writeOp(lc, ns, db, rng, stats)
		case rng.Intn(20) == 0:
			tryOps(lc, tryTimeout, stats)
		default:
			readOp(lc, ns, db, rng, stats)
		}
	}
}

// readOp takes the IS path down to a collection, occasionally yielding its
// locks mid-operation the way a long scan would.
func readOp(lc *tracker.LockContext, ns, db string, rng *rand.Rand, stats *stressStats) {
	dbLock := concurrency.NewDBLock(lc, db, concurrency.ModeIS)
	stats.operations[concurrency.ModeIS].Add(1)
	defer dbLock.Close()

	collLock := concurrency.NewCollectionLock(lc, ns, concurrency.ModeIS)
	stats.operations[concurrency.ModeIS].Add(1)
	defer collLock.Close()

	if rng.Intn(10) == 0 {
		tr := concurrency.NewTempRelease(lc)
		if tr.Released() {
			stats.yields.Add(1)
		}
		tr.Close()
	}
}

// writeOp takes the IX path, sometimes escalating the collection to X via a
// relock while the database intent stays put.
func writeOp(lc *tracker.LockContext, ns, db string, rng *rand.Rand, stats *stressStats) {
	dbLock := concurrency.NewDBLock(lc, db, concurrency.ModeIX)
	stats.operations[concurrency.ModeIX].Add(1)
	defer dbLock.Close()

	collLock := concurrency.NewCollectionLock(lc, ns, concurrency.ModeIX)
	stats.operations[concurrency.ModeIX].Add(1)
	defer collLock.Close()

	if rng.Intn(5) == 0 {
		collLock.RelockWithMode(concurrency.ModeX, dbLock)
		stats.relocks.Add(1)
		stats.operations[concurrency.ModeX].Add(1)
	}
}

// tryOps probes the bounded-wait systemwide locks.
func tryOps(lc *tracker.LockContext, timeout time.Duration, stats *stressStats) {
	rd := concurrency.NewReadLockTry(lc, timeout)
	if rd.Got() {
		stats.operations[concurrency.ModeS].Add(1)
	} else {
		stats.timedOut[concurrency.ModeS].Add(1)
	}
	rd.Close()

	wr := concurrency.NewWriteLockTry(lc, timeout)
	if wr.Got() {
		stats.operations[concurrency.ModeX].Add(1)
	} else {
		stats.timedOut[concurrency.ModeX].Add(1)
	}
	wr.Close()
}

// batchCoordinator periodically raises the batch barrier, excluding every
// participant's guard scopes for a short window.
func batchCoordinator(ctx context.Context, barrier *concurrency.BatchBarrier, stats *stressStats) error {
	ticker := time.NewTicker(stressBatchEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			excl := barrier.Exclusive("batch-coordinator")
			time.Sleep(10 * time.Millisecond)
			excl.Close()
			stats.batches.Add(1)
		}
	}
}

func printStressSummary(stats *stressStats, elapsed time.Duration) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Mode", "Operations", "Timed out"})

	var totalOps, totalTimeout uint64
	for _, mode := range []concurrency.LockMode{concurrency.ModeIS, concurrency.ModeIX, concurrency.ModeS, concurrency.ModeX} {
		ops := stats.operations[mode].Load()
		timedOut := stats.timedOut[mode].Load()
		totalOps += ops
		totalTimeout += timedOut
		table.Append([]string{
			mode.String(),
			fmt.Sprintf("%d", ops),
			fmt.Sprintf("%d", timedOut),
		})
	}
	table.SetFooter([]string{"total", fmt.Sprintf("%d", totalOps), fmt.Sprintf("%d", totalTimeout)})
	table.Render()

	fmt.Printf("\nelapsed: %s  relocks: %d  yields: %d  batch cycles: %d\n",
		elapsed.Round(time.Millisecond), stats.relocks.Load(), stats.yields.Load(), stats.batches.Load())
}
