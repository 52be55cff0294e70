package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gcs-go/internal/storage"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <gs://bucket/object> [local-path]",
		Short: "Download a bucket object to a local file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	remoteURI := args[0]
	cc := mustCLIContext(cmd.Context())

	ref, err := parseObjectURI(remoteURI)
	if err != nil {
		return err
	}

	localPath := filepath.Base(ref.Object)
	if len(args) > 1 {
		localPath = args[1]
	}

	partialPath := localPath + ".partial"

	f, err := os.Create(partialPath)
	if err != nil {
		return fmt.Errorf("creating partial file: %w", err)
	}

	req := storage.ReadRequest{Object: ref, Range: storage.AllRange()}
	req.WithReadResumePolicy(storage.MaxAttemptsResumePolicy{MaxAttempts: cc.Cfg.Read.ResumeAttempts})

	progress := newProgressFunc(fmt.Sprintf("Downloading %s:", filepath.Base(localPath)), 0)
	progress(0)

	highlights, err := cc.Client.ReadObject(cmd.Context(), req, f)

	closeErr := f.Close()

	if progressEnabled() {
		fmt.Fprintln(os.Stderr)
	}

	if err != nil {
		os.Remove(partialPath)
		return fmt.Errorf("downloading %q: %w", remoteURI, err)
	}

	if closeErr != nil {
		return fmt.Errorf("closing partial file: %w", closeErr)
	}

	if err := os.Rename(partialPath, localPath); err != nil {
		return fmt.Errorf("renaming download to %q: %w", localPath, err)
	}

	cc.Logger.Debug("download complete", "uri", remoteURI, "generation", highlights.Generation, "size", highlights.Size)
	statusf("Downloaded %s (%s)\n", localPath, humanizeSize(highlights.Size))

	return nil
}
