package main

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, matches localnode's etag scheme
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/YAtOff/s3rsync/internal/history"
	"github.com/YAtOff/s3rsync/internal/localnode"
	"github.com/YAtOff/s3rsync/internal/objectstore"
	"github.com/YAtOff/s3rsync/internal/rsyncdelta"
	"github.com/YAtOff/s3rsync/internal/transfer"
)

func newRebuildFullVersionCmd() *cobra.Command {
	var flagPrefix string

	cmd := &cobra.Command{
		Use:   "rebuild-full-version <root-folder> <path>",
		Short: "Write a fresh whole version for a file, collapsing its delta chain",
		Long: `Walk a file's entire remote history, reconstruct its current content from
the base blob and every subsequent delta, then append a fresh "whole" entry
(a full base upload plus a delta against the immediately preceding entry) so
future diffs need not replay the whole chain (ported from
original_source/lambda/build_full_version.py; peripheral to the sync hot
path, per SPEC_FULL.md section 6).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuildFullVersion(cmd, args[0], args[1], flagPrefix)
		},
	}

	cmd.Flags().StringVar(&flagPrefix, "prefix", "", "S3 content key prefix (required)")
	cmd.MarkFlagRequired("prefix") //nolint:errcheck // cobra validates at parse time

	return cmd
}

func runRebuildFullVersion(cmd *cobra.Command, rootFolder, relPath, prefix string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	session, closer, err := buildSession(ctx, cc.Cfg, rootFolder, prefix, cc.Logger)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck // best-effort close on the way out

	key := localnode.HashPath(relPath)

	handle := history.NewHandle(session.HistoryStore, key, "")
	if err := handle.Load(ctx); err != nil {
		return fmt.Errorf("loading history for %s: %w", relPath, err)
	}

	body := handle.Body()

	prevEntry, err := body.Last()
	if err != nil {
		return fmt.Errorf("reading current version of %s: %w", relPath, err)
	}

	entries, _, err := body.Diff(nil)
	if err != nil {
		return fmt.Errorf("computing full chain for %s: %w", relPath, err)
	}

	contentPath, cleanup, err := reconstructContent(ctx, session.Client, session.StorageBucket,
		session.InternalBucket, session.Prefix, session.MetadataPrefix, relPath, entries)
	defer cleanup()

	if err != nil {
		return fmt.Errorf("reconstructing content for %s: %w", relPath, err)
	}

	newKey := newFullVersionEntryKey()

	versionID, size, err := uploadWholeBase(ctx, session.Client, session.StorageBucket, session.Prefix, relPath, contentPath)
	if err != nil {
		return err
	}

	etag, err := fileMD5(contentPath)
	if err != nil {
		return err
	}

	sigPath, err := rsyncdelta.Signature(contentPath)
	if err != nil {
		return fmt.Errorf("computing signature for %s: %w", relPath, err)
	}
	defer os.Remove(sigPath)

	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("reading computed signature for %s: %w", relPath, err)
	}

	if err := transfer.UploadMetadata(ctx, session.Client, session.InternalBucket, session.MetadataPrefix, newKey, "signature", sigData); err != nil {
		return err
	}

	deltaSize, err := uploadWholeDelta(ctx, session.Client, session.InternalBucket, session.MetadataPrefix, prevEntry.Key, contentPath, newKey)
	if err != nil {
		return err
	}

	body.AddEntry(history.NodeHistoryEntry{
		Key:         newKey,
		ETag:        etag,
		BaseVersion: versionID,
		BaseSize:    size,
		HasDelta:    true,
		DeltaSize:   deltaSize,
	})

	if err := handle.Save(ctx); err != nil {
		return fmt.Errorf("saving rebuilt history for %s: %w", relPath, err)
	}

	cc.Statusf("Rebuilt full version for %s: %d entries collapsed into a fresh whole entry (%d bytes)\n",
		relPath, len(entries), size)

	return nil
}

// reconstructContent downloads relPath's base blob and replays every
// subsequent delta in entries (spec.md section 4.D's chain materialization),
// returning the path to the reconstructed file and a cleanup func the caller
// must defer.
func reconstructContent(ctx context.Context, client *objectstore.Client, storageBucket, internalBucket, prefix, metadataPrefix, relPath string, entries []history.NodeHistoryEntry) (string, func(), error) {
	if len(entries) == 0 {
		return "", func() {}, fmt.Errorf("empty history chain")
	}

	base := entries[0]
	if !base.HasBase() {
		return "", func() {}, fmt.Errorf("chain for %s has no base entry to start from", relPath)
	}

	basePath, err := downloadContentVersion(ctx, client, storageBucket, prefix, relPath, base.BaseVersion)
	if err != nil {
		return "", func() {}, err
	}

	current := basePath
	cleanupPaths := []string{basePath}

	cleanup := func() {
		for _, p := range cleanupPaths {
			os.Remove(p)
		}
	}

	for _, entry := range entries[1:] {
		deltaData, err := transfer.DownloadMetadata(ctx, client, internalBucket, metadataPrefix, entry.Key, "delta")
		if err != nil {
			return "", cleanup, err
		}

		deltaFile, err := os.CreateTemp("", "s3rsync-rebuild-delta-*")
		if err != nil {
			return "", cleanup, fmt.Errorf("creating temp delta file: %w", err)
		}

		if _, err := deltaFile.Write(deltaData); err != nil {
			deltaFile.Close()
			os.Remove(deltaFile.Name())
			return "", cleanup, fmt.Errorf("writing temp delta file: %w", err)
		}
		deltaFile.Close()
		cleanupPaths = append(cleanupPaths, deltaFile.Name())

		patched, err := rsyncdelta.Patch(current, deltaFile.Name())
		if err != nil {
			return "", cleanup, fmt.Errorf("applying entry %s: %w", entry.Key, err)
		}

		cleanupPaths = append(cleanupPaths, patched)
		current = patched
	}

	return current, cleanup, nil
}

// downloadContentVersion fetches relPath at the given object-store version
// into a temp file, without touching the sync root (rebuild-full-version
// operates purely on remote history, independent of any local checkout).
func downloadContentVersion(ctx context.Context, client *objectstore.Client, bucket, prefix, relPath, version string) (string, error) {
	body, _, err := client.GetStream(ctx, bucket, prefix+"/"+filepath.ToSlash(relPath), version)
	if err != nil {
		return "", fmt.Errorf("downloading base version %s: %w", version, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "s3rsync-rebuild-base-*")
	if err != nil {
		return "", fmt.Errorf("creating temp base file: %w", err)
	}

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing temp base file: %w", err)
	}

	tmp.Close()

	return tmp.Name(), nil
}

// uploadWholeBase uploads contentPath as a fresh full version of relPath,
// returning the object store's version id and the content's size.
func uploadWholeBase(ctx context.Context, client *objectstore.Client, bucket, prefix, relPath, contentPath string) (versionID string, size int64, err error) {
	f, err := os.Open(contentPath)
	if err != nil {
		return "", 0, fmt.Errorf("opening reconstructed content: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stating reconstructed content: %w", err)
	}

	result, err := client.PutStream(ctx, bucket, prefix+"/"+filepath.ToSlash(relPath), f, info.Size(), "")
	if err != nil {
		return "", 0, fmt.Errorf("uploading rebuilt base: %w", err)
	}

	versionID = result.VersionID
	if versionID == "" {
		head, err := client.Head(ctx, bucket, prefix+"/"+filepath.ToSlash(relPath))
		if err != nil {
			return "", 0, fmt.Errorf("heading rebuilt base: %w", err)
		}

		versionID = head.ETag
	}

	return versionID, info.Size(), nil
}

// uploadWholeDelta computes and uploads a delta from prevEntryKey's signature
// to contentPath under newKey, returning the delta's size. The delta lets a
// client that already holds prevEntryKey's version patch forward to the
// rebuilt entry instead of redownloading the fresh base.
func uploadWholeDelta(ctx context.Context, client *objectstore.Client, internalBucket, metadataPrefix, prevEntryKey, contentPath, newKey string) (int64, error) {
	prevSigData, err := transfer.DownloadMetadata(ctx, client, internalBucket, metadataPrefix, prevEntryKey, "signature")
	if err != nil {
		return 0, fmt.Errorf("downloading prior signature %s: %w", prevEntryKey, err)
	}

	prevSigFile, err := os.CreateTemp("", "s3rsync-rebuild-prevsig-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp prior-signature file: %w", err)
	}
	defer os.Remove(prevSigFile.Name())

	if _, err := prevSigFile.Write(prevSigData); err != nil {
		prevSigFile.Close()
		return 0, fmt.Errorf("writing temp prior-signature file: %w", err)
	}
	prevSigFile.Close()

	deltaPath, err := rsyncdelta.Delta(prevSigFile.Name(), contentPath)
	if err != nil {
		return 0, fmt.Errorf("computing delta against %s: %w", prevEntryKey, err)
	}
	defer os.Remove(deltaPath)

	deltaData, err := os.ReadFile(deltaPath)
	if err != nil {
		return 0, fmt.Errorf("reading computed delta: %w", err)
	}

	if err := transfer.UploadMetadata(ctx, client, internalBucket, metadataPrefix, newKey, "delta", deltaData); err != nil {
		return 0, err
	}

	return int64(len(deltaData)), nil
}

// newFullVersionEntryKey returns a fresh lowercase-hex entry key, matching
// the upload action's key scheme (spec.md section 3: "Entry key").
func newFullVersionEntryKey() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// fileMD5 returns the hex MD5 checksum of the file at path, matching the
// content-etag scheme used throughout the history model.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // content fingerprint, not a security boundary

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
