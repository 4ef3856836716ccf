package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YAtOff/s3rsync/internal/objectstore"
)

func newClearRemoteCmd() *cobra.Command {
	var flagPrefix string

	cmd := &cobra.Command{
		Use:   "clear-remote",
		Short: "Delete every object version under a prefix in both buckets",
		Long: `Delete every version (including delete markers) of every object under
--prefix in the storage bucket, and under --prefix/<sync_metadata_prefix> in
the internal bucket (ported from original_source/scripts/celar_all.py's
clear_remote — the typo in that script's filename is not preserved here).

This is irreversible: it removes the entire version history for the prefix,
not just the latest version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClearRemote(cmd, flagPrefix)
		},
	}

	cmd.Flags().StringVar(&flagPrefix, "prefix", "", "S3 content key prefix (required)")
	cmd.MarkFlagRequired("prefix") //nolint:errcheck // cobra validates at parse time

	return cmd
}

func runClearRemote(cmd *cobra.Command, prefix string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	client, err := objectstore.New(ctx, cc.Logger)
	if err != nil {
		return fmt.Errorf("connecting to object store: %w", err)
	}

	storageDeleted, err := client.DeleteAllVersions(ctx, cc.Cfg.StorageBucket, prefix+"/")
	if err != nil {
		return fmt.Errorf("clearing storage bucket: %w", err)
	}

	metadataPrefix := prefix + "/" + cc.Cfg.SyncMetadataPrefix
	internalDeleted, err := client.DeleteAllVersions(ctx, cc.Cfg.InternalBucket, metadataPrefix+"/")
	if err != nil {
		return fmt.Errorf("clearing internal bucket: %w", err)
	}

	cc.Statusf("Deleted %d version(s) from %s/%s and %d version(s) from %s/%s\n",
		storageDeleted, cc.Cfg.StorageBucket, prefix, internalDeleted, cc.Cfg.InternalBucket, metadataPrefix)

	return nil
}
