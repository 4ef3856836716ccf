package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newClearLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-local <root-folder>",
		Short: "Reset local sync state for a root folder",
		Long: `Drop every stored_node_history row for this root folder and remove its
signature cache, forcing the next sync to re-derive all state from the local
filesystem and the remote history (ported from original_source/scripts/
clear.py's clear_local). Unlike the original script, this does not delete
the root folder's file contents — wiping a user's synced files from a CLI
reset command is out of scope here (see DESIGN.md).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClearLocal(cmd, args[0])
		},
	}

	return cmd
}

func runClearLocal(cmd *cobra.Command, rootFolder string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	// clear-local never talks to S3, so the session's content prefix is
	// irrelevant; pass a placeholder that is never read.
	session, closer, err := buildSession(ctx, cc.Cfg, rootFolder, "unused", cc.Logger)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck // best-effort close on the way out

	n, err := session.Store.DeleteByRoot(ctx, session.RootFolderID)
	if err != nil {
		return fmt.Errorf("clearing stored history rows: %w", err)
	}

	if err := os.RemoveAll(session.SignatureFolder); err != nil {
		return fmt.Errorf("removing signature folder %s: %w", session.SignatureFolder, err)
	}

	cc.Statusf("Cleared %d stored row(s) and the signature cache for %s\n", n, session.RootFolder)

	return nil
}
