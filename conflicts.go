package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/YAtOff/s3rsync/internal/store"
)

func newConflictsCmd() *cobra.Command {
	var flagPrefix string

	cmd := &cobra.Command{
		Use:   "conflicts <root-folder>",
		Short: "List recorded sync conflicts",
		Long: `Display every conflict recorded for this sync root (SPEC_FULL.md section
4.G: record/report only — s3rsync never auto-merges a conflict).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflicts(cmd, args[0], flagPrefix)
		},
	}

	cmd.Flags().StringVar(&flagPrefix, "prefix", "", "S3 content key prefix (required)")
	cmd.MarkFlagRequired("prefix") //nolint:errcheck // cobra validates at parse time

	return cmd
}

// conflictJSON is the JSON-serializable representation of a conflict.
type conflictJSON struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	RemoteETag  string `json:"remote_etag,omitempty"`
	LocalETag   string `json:"local_etag,omitempty"`
	Description string `json:"description,omitempty"`
	DetectedAt  string `json:"detected_at"`
}

func runConflicts(cmd *cobra.Command, rootFolder, prefix string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	session, closer, err := buildSession(ctx, cc.Cfg, rootFolder, prefix, cc.Logger)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck // best-effort close on the way out

	conflicts, err := session.Store.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("listing conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		cc.Statusf("No recorded conflicts.\n")
		return nil
	}

	if cc.JSON {
		return printConflictsJSON(conflicts)
	}

	printConflictsTable(conflicts)

	return nil
}

func printConflictsJSON(conflicts []store.ConflictRow) error {
	items := make([]conflictJSON, len(conflicts))
	for i := range conflicts {
		c := &conflicts[i]
		items[i] = conflictJSON{
			ID:          c.ID,
			Key:         c.Key,
			RemoteETag:  c.RemoteETag,
			LocalETag:   c.LocalETag,
			Description: c.Description,
			DetectedAt:  time.Unix(0, c.DetectedAt).UTC().Format(time.RFC3339),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printConflictsTable(conflicts []store.ConflictRow) {
	headers := []string{"ID", "KEY", "DETECTED", "DESCRIPTION"}
	rows := make([][]string, len(conflicts))

	for i := range conflicts {
		c := &conflicts[i]
		detected := time.Unix(0, c.DetectedAt).UTC().Format(time.RFC3339)
		rows[i] = []string{strconv.FormatInt(c.ID, 10), c.Key, detected, c.Description}
	}

	printTable(os.Stdout, headers, rows)
}
