package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/YAtOff/s3rsync/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	var (
		flagPrefix string
		flagOnce   bool
		flagPIDDir string
	)

	cmd := &cobra.Command{
		Use:   "sync <root-folder>",
		Short: "Continuously synchronize a local directory with the S3 object store",
		Long: `Run the sync daemon: scan the local root, the stored DB, and the remote
history, reconcile the three, and execute the resulting actions (upload,
download, delete, conflict) on a fixed interval (SPEC_FULL.md section 4.J).

SIGINT/SIGTERM trigger a clean shutdown: the worker finishes its in-flight
action, then exits. Pass --once to run a single pass and exit, without
entering the scheduling loop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], flagPrefix, flagOnce, flagPIDDir)
		},
	}

	cmd.Flags().StringVar(&flagPrefix, "prefix", "", "S3 content key prefix (required)")
	cmd.Flags().BoolVar(&flagOnce, "once", false, "run a single reconciliation pass and exit")
	cmd.Flags().StringVar(&flagPIDDir, "pid-dir", "", "directory for the daemon's PID/lock file (default: the sync root)")

	cmd.MarkFlagRequired("prefix") //nolint:errcheck // cobra validates at parse time

	return cmd
}

func runSync(cmd *cobra.Command, rootFolder, prefix string, once bool, pidDir string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	session, closer, err := buildSession(cmd.Context(), cc.Cfg, rootFolder, prefix, logger)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck // best-effort close on the way out

	recorder := &storeConflictRecorder{store: session.Store}
	producer := syncengine.NewProducer(session)
	executor := syncengine.NewExecutor(session, recorder)

	if once {
		worker := syncengine.NewWorker(session, producer, executor, 0)
		return worker.RunOnce(cmd.Context())
	}

	interval, err := syncInterval(cc.Cfg)
	if err != nil {
		return err
	}

	if pidDir == "" {
		pidDir = session.RootFolder
	}

	cleanup, err := writePIDFile(pidFilePathFor(pidDir))
	if err != nil {
		return err
	}
	defer cleanup()

	worker := syncengine.NewWorker(session, producer, executor, interval)

	ctx := shutdownContext(context.Background(), logger)

	cc.Statusf("s3rsync: syncing %s -> s3://%s/%s (interval %s)\n", session.RootFolder, session.StorageBucket, prefix, interval)

	runDone := make(chan error, 1)
	go func() { runDone <- worker.Run(ctx) }()

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), worker.Interval+5*time.Second)
	defer cancel()

	if err := worker.Stop(stopCtx); err != nil {
		logger.Warn("worker did not stop cleanly", "error", err)
	}

	if runErr := <-runDone; runErr != nil {
		return fmt.Errorf("sync worker stopped: %w", runErr)
	}

	return nil
}

// pidFilePathFor returns the lock-file path for a daemon instance running
// against dir, matching writePIDFile/readPIDFile's expectations.
func pidFilePathFor(dir string) string {
	return filepath.Join(dir, ".s3rsync.pid")
}
